package backend

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stemworks/mediakit/errors"
	"github.com/stemworks/mediakit/mediatypes"
)

const maxErrorBody = 512

// Client is the HTTP implementation of the API interface.
// Every call carries its own deadline, independent of any polling cadence.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend: base url %q must be absolute", baseURL)
	}
	return &Client{
		base:    base,
		http:    httpClient,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Verify that the HTTP client implements the backend interface
var _ API = (*Client)(nil)

// DiscoverCapability fetches the advertised upload protocol from GET /uploads/tus.
func (c *Client) DiscoverCapability(ctx context.Context) (*mediatypes.UploadCapability, error) {
	var resp capabilityResponse
	if err := c.getJSON(ctx, "/uploads/tus", &resp); err != nil {
		return nil, err
	}

	cap := &mediatypes.UploadCapability{
		Method:             mediatypes.UploadMethod(resp.Method),
		Endpoint:           resp.TusEndpoint,
		ChunkSize:          resp.Metadata.ChunkSize,
		MaxConcurrent:      resp.Metadata.MaxConcurrent,
		MaxSize:            resp.Metadata.MaxSize,
		MultipartSupported: resp.MultipartSupported,
	}
	// Local deployments answer with a bare tus endpoint and no method field.
	if cap.Method == "" {
		cap.Method = mediatypes.MethodTus
	}
	return cap, nil
}

// InitiateMultipart creates a multipart upload via POST /uploads/s3/initiate.
func (c *Client) InitiateMultipart(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	var resp InitiateResponse
	if err := c.postJSON(ctx, "/uploads/s3/initiate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PutPart uploads raw part bytes to a presigned URL. The response must carry
// an ETag header; its absence is fatal for the part.
func (c *Client) PutPart(ctx context.Context, partURL string, body []byte) (string, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, partURL, bytes.NewReader(body))
	if err != nil {
		return "", errors.NewError("putPart", err)
	}
	req.ContentLength = int64(len(body))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Code: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}
	etag := strings.Trim(resp.Header.Get("ETag"), `"`)
	if etag == "" {
		return "", errors.NewError("putPart", errors.ErrMissingETag)
	}
	return etag, nil
}

// CompleteMultipart submits the ordered part list via POST /uploads/s3/complete.
func (c *Client) CompleteMultipart(ctx context.Context, req CompleteRequest) (*CompleteResult, error) {
	var resp CompleteResult
	if err := c.postJSON(ctx, "/uploads/s3/complete", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AbortMultipart releases server-side multipart state via POST /uploads/s3/abort.
func (c *Client) AbortMultipart(ctx context.Context, key, uploadID string) error {
	q := url.Values{}
	q.Set("key", key)
	q.Set("upload_id", uploadID)
	return c.postJSON(ctx, "/uploads/s3/abort?"+q.Encode(), nil, nil)
}

// SubmitJob posts one job of the given kind and returns the opaque job id.
// Submission is a single best-effort call with no internal retry.
func (c *Client) SubmitJob(ctx context.Context, kind mediatypes.JobKind, payload any) (string, error) {
	var resp submitResponse
	if err := c.postJSON(ctx, "/"+string(kind), payload, &resp); err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("backend: submission response missing task_id")
	}
	return resp.TaskID, nil
}

// JobStatus fetches one snapshot via GET /jobs/{task_id}. State tokens are
// normalized to the canonical enum here, at the wire boundary.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*mediatypes.JobSnapshot, error) {
	var resp jobStatusResponse
	if err := c.getJSON(ctx, "/jobs/"+url.PathEscape(jobID), &resp); err != nil {
		var se *StatusError
		if stderrors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, errors.NewJobError("jobStatus", jobID, errors.ErrJobNotFound)
		}
		return nil, err
	}

	state, cancelled, err := NormalizeState(resp.State)
	if err != nil {
		return nil, errors.NewJobError("jobStatus", jobID, err)
	}

	snap := &mediatypes.JobSnapshot{
		ID:       jobID,
		State:    state,
		Error:    resp.Error,
		Observed: time.Now(),
	}
	if cancelled && snap.Error == "" {
		snap.Error = "cancelled by backend"
	}
	if state == mediatypes.JobSucceeded && len(resp.Result) > 0 {
		snap.Result = &mediatypes.JobResult{Raw: resp.Result}
	}
	return snap, nil
}

// NormalizeState maps a backend state token to the canonical enum. Tokens
// arrive in inconsistent casings and spellings across endpoints; matching is
// case-insensitive. The second return reports backend-side cancellation,
// which is folded into the failed state.
func NormalizeState(token string) (mediatypes.JobState, bool, error) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "PENDING", "QUEUED":
		return mediatypes.JobQueued, false, nil
	case "STARTED", "RUNNING":
		return mediatypes.JobStarted, false, nil
	case "SUCCESS", "SUCCEEDED", "COMPLETED":
		return mediatypes.JobSucceeded, false, nil
	case "FAILURE", "FAILED", "ERROR":
		return mediatypes.JobFailed, false, nil
	case "REVOKED", "CANCELLED", "CANCELED":
		return mediatypes.JobFailed, true, nil
	default:
		return "", false, fmt.Errorf("backend: unknown job state token %q", token)
	}
}

// withDeadline attaches the per-request deadline when one is configured.
func (c *Client) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("backend: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("backend: parse path %q: %w", path, err)
	}
	target := c.base.ResolveReference(&url.URL{Path: c.base.Path + ref.Path, RawQuery: ref.RawQuery})

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("backend: build %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("backend request failed", "method", method, "path", path, "status", resp.StatusCode)
		return &StatusError{Code: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: decode %s %s: %w", method, path, err)
	}
	return nil
}

func readErrorBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
