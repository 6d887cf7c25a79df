// Package inference calls a language model once per request to turn a
// composed prompt into reply text.
package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/logger"
)

var (
	// ErrInference wraps any failure reported by the provider: timeouts,
	// quota errors, transport errors.
	ErrInference = errors.New("inference failed")

	// ErrEmptyReply is returned when the provider answers without text.
	ErrEmptyReply = errors.New("inference returned no reply")
)

// DefaultTimeout bounds one inference call when none is configured.
const DefaultTimeout = 60 * time.Second

// Generator is the part of a langchaingo llms.Model the invoker needs.
type Generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Invoker turns prompt turns into a reply. There is no retry and no cache:
// every call reaches the provider exactly once.
type Invoker struct {
	model   Generator
	options llm.Options
	timeout time.Duration
	logger  *zap.Logger
}

// NewInvoker creates an Invoker over model.
func NewInvoker(model Generator, options llm.Options, timeout time.Duration, log *zap.Logger) *Invoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Invoker{
		model:   model,
		options: options,
		timeout: timeout,
		logger:  log,
	}
}

// Call sends turns to the model and returns the reply text.
func (i *Invoker) Call(ctx context.Context, turns []llm.Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	start := time.Now()
	resp, err := i.model.GenerateContent(ctx, toMessages(turns), callOptions(i.options)...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInference, err)
	}

	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", ErrEmptyReply
	}

	reply := resp.Choices[0].Content
	if strings.TrimSpace(reply) == "" {
		return "", ErrEmptyReply
	}

	i.logger.Debug("inference complete",
		zap.Int("prompt_turns", len(turns)),
		zap.String("stop_reason", resp.Choices[0].StopReason),
		zap.String("reply_preview", logger.Truncate(reply, 100)),
		zap.Duration("duration", time.Since(start)),
	)

	return reply, nil
}

func toMessages(turns []llm.Turn) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, llms.TextParts(messageType(t.Role), t.Content))
	}
	return messages
}

func messageType(role llm.Role) llms.ChatMessageType {
	switch role {
	case llm.RoleSystem:
		return llms.ChatMessageTypeSystem
	case llm.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func callOptions(o llm.Options) []llms.CallOption {
	var opts []llms.CallOption
	if o.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*o.Temperature))
	}
	if o.TopP != nil {
		opts = append(opts, llms.WithTopP(*o.TopP))
	}
	if o.Seed != nil {
		opts = append(opts, llms.WithSeed(*o.Seed))
	}
	if o.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*o.MaxTokens))
	}
	if len(o.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(o.Stop))
	}
	return opts
}
