package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"homewatch/config"
	"homewatch/models"
)

var (
	// ErrNotFound means no artifact exists for the key.
	ErrNotFound = errors.New("raw artifact not found")
	// ErrCorruptPayload means the stored bytes do not parse as the expected
	// structured format.
	ErrCorruptPayload = errors.New("raw artifact does not parse")
	// ErrPayloadTooLarge means the payload exceeds the configured ceiling.
	ErrPayloadTooLarge = errors.New("payload exceeds configured ceiling")
)

// RawStore persists success and error artifacts in S3-compatible object
// storage, addressed by job key. Objects are write-once; error objects carry
// a timestamp suffix so repeated failures for one key never overwrite each
// other.
type RawStore struct {
	client     *s3.Client
	bucket     string
	maxPayload int64
	now        func() time.Time
}

func NewRawStore(ctx context.Context, cfg config.RawStoreConfig) (*RawStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &RawStore{
		client:     client,
		bucket:     cfg.Bucket,
		maxPayload: cfg.MaxPayloadBytes,
		now:        time.Now,
	}, nil
}

// PutResult writes the canonical success artifact for a job and returns its
// locator.
func (r *RawStore) PutResult(ctx context.Context, key string, payload *models.SearchResults, sourceTag string, initialRun bool) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal result %s: %w", key, err)
	}
	if r.maxPayload > 0 && int64(len(data)) > r.maxPayload {
		return "", fmt.Errorf("result %s is %d bytes: %w", key, len(data), ErrPayloadTooLarge)
	}

	locator := resultKey(key)
	tags := url.Values{
		"status": {"success"},
		"date":   {r.now().UTC().Format("2006-01-02")},
		"source": {sourceTag},
	}
	if initialRun {
		tags.Set("run_mode", "initial")
	}

	if err := r.put(ctx, locator, data, tags); err != nil {
		return "", err
	}
	return locator, nil
}

// PutError writes a diagnostic artifact for a failed attempt. The detail is
// serialized cycle-safely, so any error graph is accepted.
func (r *RawStore) PutError(ctx context.Context, key string, detail interface{}, sourceTag string) (string, error) {
	data := SafeMarshal(detail)

	locator := fmt.Sprintf("error/%s_%d.json", key, r.now().UTC().Unix())
	tags := url.Values{
		"status":  {"error"},
		"date":    {r.now().UTC().Format("2006-01-02")},
		"source":  {sourceTag},
		"job_key": {key},
	}

	if err := r.put(ctx, locator, data, tags); err != nil {
		return "", err
	}
	return locator, nil
}

// GetResult reads back the success artifact for a job key.
func (r *RawStore) GetResult(ctx context.Context, key string) (*models.SearchResults, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(resultKey(key)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("result %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("get result %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read result %s: %w", key, err)
	}

	var payload models.SearchResults
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("result %s: %v: %w", key, err, ErrCorruptPayload)
	}
	return &payload, nil
}

func (r *RawStore) put(ctx context.Context, key string, data []byte, tags url.Values) error {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Tagging:     aws.String(tags.Encode()),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func resultKey(key string) string {
	return fmt.Sprintf("results/%s.json", key)
}
