package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/common"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/common/telemetry"
)

// Session carries the per-request identity headers every backend call
// requires: the mandatory Session-UUID plus the optional OpenAI API key and
// display language.
type Session struct {
	ID       string
	APIKey   string
	Language string
}

// StatusError is a non-2xx backend response, carrying the decoded {error}
// body when the backend supplied one.
type StatusError struct {
	StatusCode int
	Operation  string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s failed with status %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s failed with status %d", e.Operation, e.StatusCode)
}

// Client talks to the parsing server and the graph/conversion backend. One
// pooled transport serves both; streaming calls use a dedicated http.Client
// without an overall timeout so long-running NDJSON responses are not cut
// off mid-stream.
type Client struct {
	cfg          Config
	httpClient   *http.Client
	streamClient *http.Client
	transport    *http.Transport

	parserBase  string
	backendBase string
}

// New constructs a client from the provided configuration.
func New(cfg Config) *Client {
	logger := common.Logger()
	logger.Info(
		"gateway: initializing backend clients",
		"parser", cfg.ParserEndpoint,
		"backend", cfg.BackendEndpoint,
		"timeout", cfg.Timeout,
	)
	transport := &http.Transport{
		MaxIdleConns:        cfg.HTTPMaxIdleConns,
		MaxIdleConnsPerHost: cfg.HTTPMaxIdlePerHost,
		MaxConnsPerHost:     cfg.HTTPMaxConnsPerHost,
		IdleConnTimeout:     cfg.HTTPIdleConnTimeout,
	}
	return &Client{
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: cfg.Timeout, Transport: transport},
		streamClient: &http.Client{Transport: transport},
		transport:    transport,
		parserBase:   strings.TrimRight(cfg.ParserEndpoint, "/"),
		backendBase:  strings.TrimRight(cfg.BackendEndpoint, "/"),
	}
}

// NewFromEnv loads configuration and constructs a client.
func NewFromEnv() (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

// Close releases pooled transport resources.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	return nil
}

func (c *Client) decorate(req *http.Request, sess Session) {
	req.Header.Set("Session-UUID", sess.ID)
	if sess.APIKey != "" {
		req.Header.Set("OpenAI-Api-Key", sess.APIKey)
	}
	language := sess.Language
	if language == "" {
		language = c.cfg.AcceptLanguage
	}
	if language != "" {
		req.Header.Set("Accept-Language", language)
	}
}

// doJSON issues a request/response call and decodes the JSON reply. Non-2xx
// responses become a StatusError with the backend's {error} message when it
// sent one.
func (c *Client) doJSON(ctx context.Context, sess Session, method, operation, endpoint string, body, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.decorate(req, sess)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	telemetry.RecordGatewayRequest(operation, time.Since(start))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusErrorFromResponse(operation, resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// openStream issues a streaming POST and hands back the response body. The
// caller owns the body and must close it; cancellation happens by aborting
// the context, which closes the underlying reader.
func (c *Client) openStream(ctx context.Context, sess Session, operation, endpoint string, body interface{}) (io.ReadCloser, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")
	c.decorate(req, sess)

	start := time.Now()
	resp, err := c.streamClient.Do(req)
	telemetry.RecordGatewayRequest(operation, time.Since(start))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := statusErrorFromResponse(operation, resp)
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func statusErrorFromResponse(operation string, resp *http.Response) error {
	statusErr := &StatusError{StatusCode: resp.StatusCode, Operation: operation}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Error != "" {
			statusErr.Message = payload.Error
		} else if payload.Message != "" {
			statusErr.Message = payload.Message
		}
	}
	if statusErr.Message == "" {
		statusErr.Message = strings.TrimSpace(string(data))
	}
	return statusErr
}
