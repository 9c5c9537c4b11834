// Package habitica is the adapter for the Habitica v3 REST API. It lists
// and creates tasks for the authenticated user and normalizes failures
// into *APIError values.
package habitica

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Jayphen/habisnooze/internal/types"
)

const (
	// DefaultBaseURL is the public Habitica API.
	DefaultBaseURL = "https://habitica.com/api/v3"
	// DefaultClientName is appended to the user id in the x-client header.
	DefaultClientName = "habisnooze"
	// DefaultTimeout bounds each request.
	DefaultTimeout = 30 * time.Second
	// DefaultRequestsPerMinute follows Habitica's published rate limit.
	DefaultRequestsPerMinute = 30

	maxErrorBody = 4 << 10
)

// Config holds the adapter settings.
type Config struct {
	BaseURL    string
	UserID     string
	APIKey     string
	ClientName string
	Timeout    time.Duration

	// RequestsPerMinute paces outgoing calls. Zero or less disables pacing.
	RequestsPerMinute int

	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client talks to the Habitica API on behalf of one user.
type Client struct {
	baseURL string
	userID  string
	apiKey  string
	xClient string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client. UserID and APIKey are required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.UserID == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: user id and api key are required", ErrInvalidConfig)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	clientName := cfg.ClientName
	if clientName == "" {
		clientName = DefaultClientName
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute)
	}

	return &Client{
		baseURL: baseURL,
		userID:  cfg.UserID,
		apiKey:  cfg.APIKey,
		xClient: cfg.UserID + "-" + clientName,
		client:  httpClient,
		limiter: limiter,
	}, nil
}

// envelope is the wrapper around every successful Habitica response.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// FetchTasksByType lists the user's tasks of one list type, e.g.
// types.ListDailys. A null data field is treated as an empty list.
func (c *Client) FetchTasksByType(ctx context.Context, listType string) ([]types.Task, error) {
	query := url.Values{}
	if listType != "" {
		query.Set("type", listType)
	}

	tasks, err := call[[]types.Task](ctx, c, "list tasks", http.MethodGet, "/tasks/user", query, nil)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []types.Task{}
	}
	return tasks, nil
}

// CreateTask creates a task and returns Habitica's copy of it, including
// the id the server assigned.
func (c *Client) CreateTask(ctx context.Context, task types.Task) (*types.Task, error) {
	const op = "create task"

	created, err := call[*types.Task](ctx, c, op, http.MethodPost, "/tasks/user", nil, task)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, &APIError{Kind: KindUnknown, Op: op, Message: "response carried no task"}
	}
	return created, nil
}

// call performs one request and unwraps the response envelope.
func call[T any](ctx context.Context, c *Client, op, method, path string, query url.Values, body any) (T, error) {
	var zero T

	if err := c.limiter.Wait(ctx); err != nil {
		return zero, &APIError{Kind: KindTransport, Op: op, Err: err}
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("habitica %s: failed to marshal request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return zero, fmt.Errorf("habitica %s: failed to create request: %w", op, err)
	}

	req.Header.Set("x-api-user", c.userID)
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("x-client", c.xClient)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return zero, &APIError{Kind: KindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, &APIError{Kind: KindTransport, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return zero, statusError(op, resp, raw)
	}

	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return zero, &APIError{Kind: KindDecode, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if !env.Success {
		if env.Message == "" && env.Error == "" {
			return zero, &APIError{Kind: KindUnknown, Op: op, StatusCode: resp.StatusCode}
		}
		return zero, &APIError{
			Kind:       KindStatus,
			Op:         op,
			StatusCode: resp.StatusCode,
			Code:       env.Error,
			Message:    env.Message,
		}
	}

	return env.Data, nil
}

// statusError builds the error for a non-2xx response. When the body is not
// Habitica's error JSON the raw status line and body are kept instead.
func statusError(op string, resp *http.Response, raw []byte) *APIError {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil {
		return &APIError{
			Kind:       KindDecode,
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    rawMessage(resp, raw),
			Err:        err,
		}
	}

	if eb.Message == "" && eb.Error == "" {
		return &APIError{
			Kind:       KindUnknown,
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
		}
	}

	return &APIError{
		Kind:       KindStatus,
		Op:         op,
		StatusCode: resp.StatusCode,
		Code:       eb.Error,
		Message:    eb.Message,
	}
}

func rawMessage(resp *http.Response, raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	if text == "" {
		return resp.Status
	}
	return resp.Status + ": " + text
}
