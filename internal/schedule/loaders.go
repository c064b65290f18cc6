/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

//go:embed default_schedule.json
var defaultSchedule []byte

// maxScheduleBytes caps how much a loader reads from any backend.
const maxScheduleBytes = 1 << 20

// EmbeddedLoader serves the timetable compiled into the binary.
type EmbeddedLoader struct{}

func (EmbeddedLoader) Name() string { return "embedded" }

func (EmbeddedLoader) Load(context.Context) (*Schedule, error) {
	return Decode(defaultSchedule)
}

// FileLoader reads a JSON or YAML timetable from disk.
type FileLoader struct {
	Path string
}

func (l FileLoader) Name() string { return "file:" + l.Path }

func (l FileLoader) Load(context.Context) (*Schedule, error) {
	raw, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read schedule file: %w", err)
	}
	return DecodeFile(l.Path, raw)
}

// HTTPLoader fetches a JSON timetable from a URL.
type HTTPLoader struct {
	URL    string
	Client *http.Client
}

func (l HTTPLoader) Name() string { return l.URL }

func (l HTTPLoader) Load(ctx context.Context) (*Schedule, error) {
	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build schedule request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch schedule: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch schedule: unexpected status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxScheduleBytes))
	if err != nil {
		return nil, fmt.Errorf("read schedule body: %w", err)
	}
	return DecodeFile(req.URL.Path, raw)
}

// S3Options configures the object storage client used by S3Loader.
type S3Options struct {
	Region          string
	Endpoint        string // for S3-compatible services (MinIO etc.)
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3Loader reads the timetable object from S3-compatible storage.
type S3Loader struct {
	Bucket string
	Key    string
	client *s3.Client
}

// NewS3Loader builds the S3 client from opts, falling back to the default
// AWS credential chain when no static keys are given.
func NewS3Loader(ctx context.Context, bucket, key string, opts S3Options) (*S3Loader, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	return &S3Loader{Bucket: bucket, Key: key, client: client}, nil
}

func (l *S3Loader) Name() string { return "s3://" + l.Bucket + "/" + l.Key }

func (l *S3Loader) Load(ctx context.Context) (*Schedule, error) {
	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.Bucket),
		Key:    aws.String(l.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("get schedule object: %w", err)
	}
	defer out.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(out.Body, maxScheduleBytes))
	if err != nil {
		return nil, fmt.Errorf("read schedule object: %w", err)
	}
	return DecodeFile(l.Key, raw)
}

// NewLoader picks a loader for location: "" (embedded), a file path, an
// http(s) URL or s3://bucket/key.
func NewLoader(ctx context.Context, location string, s3opts S3Options, client *http.Client) (Loader, error) {
	location = strings.TrimSpace(location)
	switch {
	case location == "":
		return EmbeddedLoader{}, nil
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return HTTPLoader{URL: location, Client: client}, nil
	case strings.HasPrefix(location, "s3://"):
		u, err := url.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("parse s3 location: %w", err)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("s3 location %q must be s3://bucket/key", location)
		}
		return NewS3Loader(ctx, u.Host, key, s3opts)
	default:
		return FileLoader{Path: location}, nil
	}
}
