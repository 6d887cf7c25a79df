// Package gateway posts generated replies back to the messaging gateway.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// DefaultTimeout bounds one outbound call when none is configured.
const DefaultTimeout = 15 * time.Second

// APIKeyHeader carries the gateway credential.
const APIKeyHeader = "apikey"

// Config configures the dispatcher.
type Config struct {
	// URL is the gateway's send-text endpoint.
	URL string

	// APIKey is sent in the apikey header.
	APIKey string

	Timeout time.Duration
}

// Reply is the outbound payload.
type Reply struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// StatusError is returned when the gateway answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.Code, e.Body)
}

// Dispatcher sends replies to the gateway. It holds no session state.
type Dispatcher struct {
	config Config
	client *fasthttp.Client
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(config Config, logger *zap.Logger) *Dispatcher {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Dispatcher{
		config: config,
		client: &fasthttp.Client{
			Name:         "relay",
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
		},
		logger: logger,
	}
}

// Send posts text to the conversation identified by key.
func (d *Dispatcher) Send(ctx context.Context, key, text string) error {
	body, err := json.Marshal(Reply{Number: key, Text: text})
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(d.config.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set(APIKeyHeader, d.config.APIKey)
	req.SetBody(body)

	deadline := time.Now().Add(d.config.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	start := time.Now()
	if err := d.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("post reply: %w", err)
	}

	code := resp.StatusCode()
	if code < 200 || code > 299 {
		return &StatusError{Code: code, Body: string(resp.Body())}
	}

	d.logger.Debug("reply delivered",
		zap.String("key", key),
		zap.Int("status", code),
		zap.Duration("duration", time.Since(start)),
	)

	return nil
}
