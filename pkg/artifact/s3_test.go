package artifact

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateAWS keeps the SDK away from the developer's AWS configuration.
func isolateAWS(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
}

type capturedPut struct {
	mu          sync.Mutex
	method      string
	path        string
	contentType string
	body        []byte
}

func newS3Server(t *testing.T, status int, respBody string) (*httptest.Server, *capturedPut) {
	t.Helper()
	captured := &capturedPut{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured.mu.Lock()
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.contentType = r.Header.Get("Content-Type")
		captured.body = body
		captured.mu.Unlock()

		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, respBody)
			return
		}
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func testS3Config(endpoint string) S3Config {
	return S3Config{
		Bucket:          "ci-artifacts",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "AKIDTEST",
		SecretAccessKey: "secret",
		ForcePathStyle:  true,
		ContentType:     "application/json",
	}
}

func TestS3Config_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     S3Config
		wantErr string
	}{
		{name: "valid", cfg: S3Config{Bucket: "b"}},
		{name: "explicit creds", cfg: S3Config{Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s"}},
		{name: "missing bucket", cfg: S3Config{}, wantErr: "s3 config: Bucket: bucket name is required"},
		{name: "half creds", cfg: S3Config{Bucket: "b", AccessKeyID: "a"}, wantErr: "both access key ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveRegion(t *testing.T) {
	assert.Equal(t, "eu-west-1", resolveRegion("", "eu-west-1"))
	assert.Equal(t, DefaultAWSRegion, resolveRegion("", ""))
	assert.Equal(t, "", resolveRegion("http://localhost:9000", ""))
}

func TestS3Sink_Put(t *testing.T) {
	isolateAWS(t)
	srv, captured := newS3Server(t, http.StatusOK, "")

	sink, err := NewS3Sink(context.Background(), testS3Config(srv.URL), "perfgate/42.json")
	require.NoError(t, err)
	assert.Equal(t, "s3://ci-artifacts/perfgate/42.json", sink.String())

	require.NoError(t, sink.Put(context.Background(), []byte(`{"passed":true}`)))

	captured.mu.Lock()
	defer captured.mu.Unlock()
	assert.Equal(t, http.MethodPut, captured.method)
	assert.Equal(t, "/ci-artifacts/perfgate/42.json", captured.path)
	assert.Equal(t, "application/json", captured.contentType)
	assert.Contains(t, string(captured.body), `{"passed":true}`)
}

func TestS3Sink_PutAccessDenied(t *testing.T) {
	isolateAWS(t)
	srv, _ := newS3Server(t, http.StatusForbidden,
		`<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)

	sink, err := NewS3Sink(context.Background(), testS3Config(srv.URL), "report.json")
	require.NoError(t, err)

	err = sink.Put(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccessDenied)

	var artErr *Error
	require.True(t, errors.As(err, &artErr))
	assert.Equal(t, "put", artErr.Op)
	assert.Equal(t, "s3://ci-artifacts/report.json", artErr.Dest)
}

func TestOpen_S3(t *testing.T) {
	isolateAWS(t)
	srv, captured := newS3Server(t, http.StatusOK, "")

	cfg := testS3Config(srv.URL)
	cfg.Bucket = "ignored"
	sink, err := Open(context.Background(), "s3://reports/run.jsonl", cfg)
	require.NoError(t, err)
	require.NoError(t, sink.Put(context.Background(), []byte("line\n")))

	captured.mu.Lock()
	defer captured.mu.Unlock()
	assert.Equal(t, "/reports/run.jsonl", captured.path)
}

func TestNewS3Sink_InvalidConfig(t *testing.T) {
	_, err := NewS3Sink(context.Background(), S3Config{}, "k")
	var cfgErr *ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}
