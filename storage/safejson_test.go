package storage

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type node struct {
	Name string `json:"name"`
	Next *node  `json:"next"`
}

func TestSafeMarshal_CyclicStruct(t *testing.T) {
	a := &node{Name: "a"}
	b := &node{Name: "b", Next: a}
	a.Next = b

	data := SafeMarshal(a)

	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, data)
	}
	if !strings.Contains(string(data), "[circular]") {
		t.Fatalf("expected circular marker in %s", data)
	}
	if out["name"] != "a" {
		t.Fatalf("expected name a, got %v", out["name"])
	}
}

func TestSafeMarshal_CyclicMap(t *testing.T) {
	m := map[string]interface{}{"label": "root"}
	m["self"] = m

	data := SafeMarshal(m)

	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, data)
	}
	if out["self"] != "[circular]" {
		t.Fatalf("expected circular marker for self, got %v", out["self"])
	}
}

func TestSafeMarshal_ErrorValues(t *testing.T) {
	detail := struct {
		Err  error  `json:"err"`
		Note string `json:"note"`
	}{
		Err:  errors.New("connection refused"),
		Note: "during fetch",
	}

	data := SafeMarshal(detail)
	if !strings.Contains(string(data), "connection refused") {
		t.Fatalf("expected error text in %s", data)
	}
}

func TestSafeMarshal_NilAndBytes(t *testing.T) {
	if string(SafeMarshal(nil)) != "null" {
		t.Fatalf("expected null for nil, got %s", SafeMarshal(nil))
	}

	detail := struct {
		Body []byte `json:"body"`
	}{Body: []byte(`{"a":1}`)}

	data := SafeMarshal(detail)
	if !strings.Contains(string(data), `{\"a\":1}`) {
		t.Fatalf("expected byte slice rendered as string, got %s", data)
	}
}
