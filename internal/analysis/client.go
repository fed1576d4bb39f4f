// Package analysis talks to the remote resume analysis service.
package analysis

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
	"unicode/utf8"

	"resumeform/internal/config"
	"resumeform/internal/errors"
	"resumeform/internal/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Multipart field names expected by the service
const (
	FieldResume         = "resume"
	FieldJobDescription = "jobDescription"
)

const defaultContentType = "application/octet-stream"

// Client posts resumes to the analysis endpoint
type Client struct {
	endpoint        string
	authToken       string
	timeout         time.Duration
	maxResponseSize int64
	httpClient      *http.Client
	breaker         *CircuitBreaker
	logger          *errors.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the traced default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger
func WithLogger(l *errors.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a client from the analysis configuration
func NewClient(cfg config.AnalysisConfig, opts ...Option) *Client {
	c := &Client{
		endpoint:        cfg.Endpoint,
		authToken:       cfg.AuthToken,
		timeout:         cfg.Timeout,
		maxResponseSize: cfg.MaxResponseSize,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = errors.Discard()
	}
	if c.httpClient == nil {
		// No client-level timeout; deadlines come from the request context only.
		c.httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if c.maxResponseSize <= 0 {
		c.maxResponseSize = 1024 * 1024
	}
	c.breaker = NewCircuitBreaker("analysis", cfg.CircuitBreaker, c.logger)

	return c
}

// Analyze sends file and jobDescription and decodes the service's JSON answer.
// Any transport failure, non-2xx status or malformed body is returned as an AppError.
func (c *Client) Analyze(ctx context.Context, file types.SelectedFile, jobDescription string) (*types.AnalysisResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	return c.breaker.Execute(func() (*types.AnalysisResult, error) {
		return c.post(ctx, file, jobDescription)
	})
}

// Stats reports the breaker state
func (c *Client) Stats() map[string]any {
	return map[string]any{
		"endpoint":        c.endpoint,
		"timeout":         c.timeout.String(),
		"circuit_breaker": c.breaker.Stats(),
	}
}

// Healthy reports whether the breaker lets calls through
func (c *Client) Healthy() bool {
	return c.breaker.IsHealthy()
}

func (c *Client) post(ctx context.Context, file types.SelectedFile, jobDescription string) (*types.AnalysisResult, error) {
	body, contentType, err := encodeForm(file, jobDescription)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidRequest, "failed to encode upload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidRequest, "failed to build analysis request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.NewNetworkError(errors.ErrCodeNetworkTimeout, "analysis request timed out", err).
				WithContext("timeout", c.timeout.String())
		}
		return nil, errors.NewNetworkError(errors.ErrCodeRequestFailed, "analysis request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeRequestFailed, "failed to read analysis response", err)
	}

	c.logger.Debug("Analysis service responded",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"body_bytes", len(data))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewSubmissionError(errors.ErrCodeUnexpectedStatus,
			fmt.Sprintf("analysis service returned status %d", resp.StatusCode), nil).
			WithContext("status", resp.StatusCode).
			WithContext("body", snippet(data))
	}

	if int64(len(data)) > c.maxResponseSize {
		return nil, errors.NewSubmissionError(errors.ErrCodeResponseTooLarge,
			"analysis response exceeds the configured size limit", nil).
			WithContext("max_bytes", c.maxResponseSize)
	}

	result, err := types.DecodeAnalysisResult(data)
	if err != nil {
		return nil, errors.NewSubmissionError(errors.ErrCodeInvalidResponse, "analysis response is malformed", err).
			WithContext("body", snippet(data))
	}

	return result, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeForm builds the multipart body. The resume part keeps its file name
// and declared content type.
func encodeForm(file types.SelectedFile, jobDescription string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	contentType := file.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		FieldResume, quoteEscaper.Replace(file.Name)))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file.Reader()); err != nil {
		return nil, "", err
	}

	if err := writer.WriteField(FieldJobDescription, jobDescription); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return &buf, writer.FormDataContentType(), nil
}

func snippet(data []byte) string {
	const limit = 256
	if len(data) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(data[cut]) {
			cut--
		}
		return string(data[:cut]) + "..."
	}
	return string(data)
}
