package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/pkg/api"
)

// DefaultTimeout таймаут одного HTTP запроса
const DefaultTimeout = 30 * time.Second

// Client представляет HTTP клиент для взаимодействия с сервером данных
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
	baseURL    string
	token      string
}

// Option configures a Client
type Option func(*Client)

// WithToken sets an opaque bearer token forwarded on every request
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request logging
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient создает новый API клиент
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  slog.Default(),
		now:     time.Now,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Transport = newLoggingTransport(http.DefaultTransport, c.logger)
	return c
}

// BaseURL returns the server base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Apply sends one operation. It matches the queue dispatcher contract:
// true means the server applied the change permanently.
func (c *Client) Apply(ctx context.Context, op *models.Operation) (bool, error) {
	req := toOperationRequest(op)

	var resp api.ApplyResponse
	path := fmt.Sprintf(api.PathEntityOperations, url.PathEscape(op.Entity))
	if err := c.doRequest(ctx, http.MethodPost, path, req, &resp); err != nil {
		return false, fmt.Errorf("apply %s/%s failed: %w", op.Entity, op.ID, err)
	}
	return resp.Applied, nil
}

// ApplyBatch sends a group of operations of one entity atomically
func (c *Client) ApplyBatch(ctx context.Context, ops []*models.Operation) (bool, error) {
	if len(ops) == 0 {
		return true, nil
	}

	entity := ops[0].Entity
	req := api.BatchRequest{Operations: make([]api.OperationRequest, 0, len(ops))}
	for _, op := range ops {
		if op.Entity != entity {
			return false, fmt.Errorf("batch mixes entities %q and %q", entity, op.Entity)
		}
		req.Operations = append(req.Operations, toOperationRequest(op))
	}

	var resp api.ApplyResponse
	path := fmt.Sprintf(api.PathEntityBatch, url.PathEscape(entity))
	if err := c.doRequest(ctx, http.MethodPost, path, req, &resp); err != nil {
		return false, fmt.Errorf("apply batch of %d %s failed: %w", len(ops), entity, err)
	}
	return resp.Applied, nil
}

// FetchAll returns the full current record set of an entity
func (c *Client) FetchAll(ctx context.Context, entity string) ([]models.Record, error) {
	var resp api.RecordsResponse
	path := fmt.Sprintf(api.PathEntityRecords, url.PathEscape(entity))
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch %s failed: %w", entity, err)
	}
	return toRecords(resp.Records), nil
}

// FetchSince returns records of an entity changed after since
func (c *Client) FetchSince(ctx context.Context, entity string, since time.Time) ([]models.Record, error) {
	var resp api.RecordsResponse
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339Nano))
	path := fmt.Sprintf(api.PathEntityRecords, url.PathEscape(entity)) + "?" + q.Encode()
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch %s since %s failed: %w", entity, since.Format(time.RFC3339), err)
	}
	return toRecords(resp.Records), nil
}

// Ping performs a lightweight round trip against path and returns its latency
func (c *Client) Ping(ctx context.Context, path string) (time.Duration, error) {
	start := time.Now()
	if err := c.doRequest(ctx, http.MethodGet, path, nil, nil); err != nil {
		return 0, fmt.Errorf("ping %s failed: %w", path, err)
	}
	return time.Since(start), nil
}

// Bandwidth downloads size bytes and returns the estimated throughput
// in bytes per second together with the round-trip time
func (c *Client) Bandwidth(ctx context.Context, size int) (float64, time.Duration, error) {
	if size <= 0 {
		return 0, 0, errors.New("bandwidth probe size must be positive")
	}

	q := url.Values{}
	q.Set("bytes", strconv.Itoa(size))
	req, err := c.newRequest(ctx, http.MethodGet, api.PathBandwidth+"?"+q.Encode(), nil)
	if err != nil {
		return 0, 0, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	n, err := io.Copy(io.Discard, resp.Body)
	rtt := time.Since(start)
	if err != nil {
		return 0, rtt, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, rtt, &HTTPError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if rtt <= 0 {
		rtt = time.Nanosecond
	}
	return float64(n) / rtt.Seconds(), rtt, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := c.newRequest(ctx, method, path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %w", ErrNetwork, err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), c.now()),
		}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && (errResp.Error != "" || errResp.Message != "") {
			httpErr.Code = errResp.Code
			httpErr.Message = errResp.Message
			if httpErr.Message == "" {
				httpErr.Message = errResp.Error
			}
		} else {
			httpErr.Message = strings.TrimSpace(string(respBody))
		}
		return httpErr
	}

	// Декодируем успешный ответ
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func toOperationRequest(op *models.Operation) api.OperationRequest {
	return api.OperationRequest{
		ID:        op.ID,
		Action:    string(op.Action),
		Payload:   op.Payload,
		Timestamp: op.Timestamp,
	}
}

func toRecords(in []api.Record) []models.Record {
	out := make([]models.Record, 0, len(in))
	for _, r := range in {
		out = append(out, models.Record{
			ID:        r.ID,
			UpdatedAt: r.UpdatedAt,
			Data:      r.Data,
			Deleted:   r.Deleted,
		})
	}
	return out
}
