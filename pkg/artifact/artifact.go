// Package artifact writes gate run artifacts (report documents, record
// streams, metric textfiles) to a local path or an S3 bucket.
//
// Destinations are given as a bare path, a file:// URI or an s3:// URI:
//
//	reports/perfgate.json
//	file:///var/ci/perfgate.json
//	s3://ci-artifacts/perfgate/build-42.json
package artifact

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Scheme identifies the kind of destination.
type Scheme string

const (
	SchemeFile Scheme = "file"
	SchemeS3   Scheme = "s3"
)

// Sentinel errors for artifact writes.
var (
	// ErrInvalidDestination indicates a destination that cannot be parsed.
	ErrInvalidDestination = errors.New("invalid artifact destination")

	// ErrAccessDenied indicates insufficient permissions.
	ErrAccessDenied = errors.New("access denied")

	// ErrBucketNotFound indicates the bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrInvalidCredentials indicates rejected credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrThrottled indicates the store is rate limiting requests.
	ErrThrottled = errors.New("request throttled")

	// ErrUnavailable indicates the store is temporarily unavailable.
	ErrUnavailable = errors.New("storage unavailable")
)

// Error wraps a failed artifact write with its destination.
type Error struct {
	Op   string
	Dest string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("artifact %s %s: %v", e.Op, e.Dest, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Sink stores one artifact.
type Sink interface {
	// Put writes data, replacing any previous content.
	Put(ctx context.Context, data []byte) error

	// String returns the destination in URI form.
	String() string
}

// Destination is a parsed artifact location.
type Destination struct {
	Scheme Scheme

	// Path is the local file path (file scheme).
	Path string

	// Bucket and Key locate the object (s3 scheme).
	Bucket string
	Key    string
}

// String renders the destination in URI form.
func (d Destination) String() string {
	if d.Scheme == SchemeS3 {
		return "s3://" + d.Bucket + "/" + d.Key
	}
	return d.Path
}

// ParseDestination parses a bare path, file:// URI or s3:// URI.
func ParseDestination(raw string) (Destination, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Destination{}, fmt.Errorf("%w: empty destination", ErrInvalidDestination)
	}

	scheme, rest, hasScheme := strings.Cut(raw, "://")
	if !hasScheme {
		if path, ok := strings.CutPrefix(raw, "file:"); ok {
			if path == "" {
				return Destination{}, fmt.Errorf("%w: file destination %q has no path", ErrInvalidDestination, raw)
			}
			return Destination{Scheme: SchemeFile, Path: path}, nil
		}
		return Destination{Scheme: SchemeFile, Path: raw}, nil
	}

	switch strings.ToLower(scheme) {
	case string(SchemeFile):
		u, err := url.Parse(raw)
		if err != nil {
			return Destination{}, fmt.Errorf("%w: %v", ErrInvalidDestination, err)
		}
		if u.Path == "" {
			return Destination{}, fmt.Errorf("%w: file URI %q has no path", ErrInvalidDestination, raw)
		}
		return Destination{Scheme: SchemeFile, Path: u.Path}, nil
	case string(SchemeS3):
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return Destination{}, fmt.Errorf("%w: s3 URI %q has no bucket", ErrInvalidDestination, raw)
		}
		if key == "" || strings.HasSuffix(key, "/") {
			return Destination{}, fmt.Errorf("%w: s3 URI %q must name an object key", ErrInvalidDestination, raw)
		}
		return Destination{Scheme: SchemeS3, Bucket: bucket, Key: key}, nil
	default:
		return Destination{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidDestination, scheme)
	}
}

// Open returns a Sink for raw. S3 destinations use s3cfg for everything
// except the bucket, which comes from the URI.
func Open(ctx context.Context, raw string, s3cfg S3Config) (Sink, error) {
	dest, err := ParseDestination(raw)
	if err != nil {
		return nil, err
	}
	if dest.Scheme == SchemeS3 {
		s3cfg.Bucket = dest.Bucket
		return NewS3Sink(ctx, s3cfg, dest.Key)
	}
	return NewFileSink(dest.Path), nil
}
