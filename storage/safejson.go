package storage

import (
	"encoding/json"
	"fmt"
	"reflect"
)

const maxSafeDepth = 32

// SafeMarshal renders an arbitrary diagnostic value as JSON without ever
// failing on it. Already-visited pointers, maps and slices are replaced with
// a "[circular]" marker so cyclic error graphs serialize instead of
// recursing forever.
func SafeMarshal(v interface{}) []byte {
	repr := safeValue(reflect.ValueOf(v), make(map[uintptr]bool), 0)
	data, err := json.MarshalIndent(repr, "", "  ")
	if err != nil {
		return []byte(fmt.Sprintf("%q", fmt.Sprint(v)))
	}
	return data
}

func safeValue(v reflect.Value, seen map[uintptr]bool, depth int) interface{} {
	if !v.IsValid() {
		return nil
	}
	if depth > maxSafeDepth {
		return "[max depth]"
	}

	if v.CanInterface() && v.Kind() != reflect.Struct {
		if v.Kind() != reflect.Ptr || !v.IsNil() {
			if err, ok := v.Interface().(error); ok {
				return err.Error()
			}
		}
	}

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		addr := v.Pointer()
		if seen[addr] {
			return "[circular]"
		}
		seen[addr] = true
		return safeValue(v.Elem(), seen, depth+1)

	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return safeValue(v.Elem(), seen, depth+1)

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		addr := v.Pointer()
		if seen[addr] {
			return "[circular]"
		}
		seen[addr] = true
		out := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = safeValue(iter.Value(), seen, depth+1)
		}
		return out

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return string(v.Bytes())
		}
		addr := v.Pointer()
		if seen[addr] {
			return "[circular]"
		}
		seen[addr] = true
		return safeSeq(v, seen, depth)

	case reflect.Array:
		return safeSeq(v, seen, depth)

	case reflect.Struct:
		t := v.Type()
		out := make(map[string]interface{})
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			out[fieldName(t.Field(i))] = safeValue(v.Field(i), seen, depth+1)
		}
		if len(out) == 0 && v.CanInterface() {
			if err, ok := v.Interface().(error); ok {
				return err.Error()
			}
		}
		return out

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("[%s]", v.Type())

	default:
		if v.CanInterface() {
			return v.Interface()
		}
		return fmt.Sprint(v)
	}
}

func safeSeq(v reflect.Value, seen map[uintptr]bool, depth int) []interface{} {
	out := make([]interface{}, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = safeValue(v.Index(i), seen, depth+1)
	}
	return out
}

func fieldName(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("json"); ok && tag != "" && tag != "-" {
		for i := 0; i < len(tag); i++ {
			if tag[i] == ',' {
				tag = tag[:i]
				break
			}
		}
		if tag != "" {
			return tag
		}
	}
	return f.Name
}
