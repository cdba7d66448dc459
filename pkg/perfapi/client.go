package perfapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/perfgate/pkg/gate"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Client talks to the optimization API. It is safe for concurrent use.
type Client struct {
	http       *http.Client
	base       *url.URL
	apiKey     string
	userAgent  string
	limiter    *rate.Limiter
	maxRetries int
	retryWait  time.Duration
	log        *zap.Logger
}

// Ensure Client implements gate.Client.
var _ gate.Client = (*Client)(nil)

// New creates a client with the given configuration.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	base, err := url.Parse(endpoint)
	if err != nil {
		return nil, &ConfigError{Field: "Endpoint", Message: err.Error()}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	maxRetries := cfg.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = DefaultMaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}

	retryWait := cfg.RetryWait
	if retryWait <= 0 {
		retryWait = DefaultRetryWait
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		http:       httpClient,
		base:       base,
		apiKey:     cfg.APIKey,
		userAgent:  cfg.UserAgent,
		maxRetries: maxRetries,
		retryWait:  retryWait,
		log:        logger,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c, nil
}

// CheckConnection lists a single test, which succeeds only with a valid key.
func (c *Client) CheckConnection(ctx context.Context) error {
	q := url.Values{}
	q.Set("p.per_page", "1")
	return c.get(ctx, "CheckConnection", "tests", q, nil)
}

// CheckTest verifies that a test exists.
func (c *Client) CheckTest(ctx context.Context, testID int) error {
	return c.get(ctx, "CheckTest", testPath(testID), nil, nil)
}

// SubmitJob creates a new snapshot for a test. A non-empty tagName is added
// as a low-priority tag at creation.
func (c *Client) SubmitJob(ctx context.Context, testID int, tagName string) (gate.Snapshot, error) {
	req := snapshotCreateRequest{Tags: []tagJSON{}}
	if tagName != "" {
		req.Tags = toTagJSON([]gate.Tag{{Name: tagName, Priority: gate.PriorityLow}})
	}

	var resp snapshotResponse
	if err := c.do(ctx, "SubmitJob", http.MethodPost, testPath(testID)+"/snapshots", nil, req, &resp); err != nil {
		return gate.Snapshot{}, err
	}
	return resp.toSnapshot(), nil
}

// FetchJob returns the current state of a snapshot.
func (c *Client) FetchJob(ctx context.Context, testID, snapshotID int) (gate.Snapshot, error) {
	var resp snapshotResponse
	if err := c.get(ctx, "FetchJob", snapshotPath(testID, snapshotID), nil, &resp); err != nil {
		return gate.Snapshot{}, err
	}
	return resp.toSnapshot(), nil
}

// UpdateJobTags adds tags to a snapshot.
func (c *Client) UpdateJobTags(ctx context.Context, testID, snapshotID int, tags []gate.Tag) error {
	req := snapshotUpdateRequest{
		TagUpdate:   tagUpdateAdd,
		SnapshotIDs: []int{snapshotID},
		Tags:        toTagJSON(tags),
	}
	return c.do(ctx, "UpdateJobTags", http.MethodPut, testPath(testID)+"/snapshots", nil, req, nil)
}

// UpdateTestTags adds tags to a test definition.
func (c *Client) UpdateTestTags(ctx context.Context, testID int, tags []gate.Tag) error {
	req := testUpdateRequest{TagUpdate: tagUpdateAdd, Tags: toTagJSON(tags)}
	return c.do(ctx, "UpdateTestTags", http.MethodPut, testPath(testID), nil, req, nil)
}

// FetchCriticalDefects lists the critical defects found on a snapshot,
// excluding third-party content.
func (c *Client) FetchCriticalDefects(ctx context.Context, testID, snapshotID int) ([]gate.Defect, error) {
	q := url.Values{}
	q.Set("f.show_tpc", "No")
	q.Set("f.severity", "Critical")

	var resp defectListResponse
	if err := c.get(ctx, "FetchCriticalDefects", snapshotPath(testID, snapshotID)+"/defects", q, &resp); err != nil {
		return nil, err
	}
	return resp.toDefects(), nil
}

// FetchDefectsByID returns the defects among ids that were found on a
// snapshot. The page size is raised to len(ids) so none are cut off.
func (c *Client) FetchDefectsByID(ctx context.Context, testID, snapshotID int, ids []int) ([]gate.Defect, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}

	q := url.Values{}
	q.Set("f.show_tpc", "No")
	q.Set("f.defect_ids", strings.Join(parts, ","))
	q.Set("p.per_page", strconv.Itoa(len(ids)))

	var resp defectListResponse
	if err := c.get(ctx, "FetchDefectsByID", snapshotPath(testID, snapshotID)+"/defects", q, &resp); err != nil {
		return nil, err
	}
	return resp.toDefects(), nil
}

// get performs an idempotent read, retrying throttled, unavailable and
// transport failures with exponential backoff.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	if c.maxRetries == 0 {
		return c.do(ctx, op, http.MethodGet, path, query, nil, out)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.retryWait
	expBackoff.MaxElapsedTime = 0

	operation := func() error {
		err := c.do(ctx, op, http.MethodGet, path, query, nil, out)
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		c.log.Debug("Retrying API request",
			zap.String("op", op),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	b := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(c.maxRetries)), ctx)
	return backoff.RetryNotify(operation, b, notify)
}

// do sends one request. Only HTTP 200 counts as success.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	u := c.base.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("API-KEY", c.apiKey)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &APIError{Op: op, Err: ErrUnavailable, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr errorResponse
		_ = json.Unmarshal(data, &apiErr)
		return statusError(op, resp.StatusCode, apiErr.Message)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Op: op, Err: ErrMalformedResponse, Cause: err}
	}
	return nil
}

func testPath(testID int) string {
	return "tests/" + strconv.Itoa(testID)
}

func snapshotPath(testID, snapshotID int) string {
	return testPath(testID) + "/snapshots/" + strconv.Itoa(snapshotID)
}
