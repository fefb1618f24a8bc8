package claude

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/phrazzld/scry-studio/internal/config"
	"github.com/phrazzld/scry-studio/internal/generation"
)

// ErrEmptyPrompt is returned when a prompt has no user text.
var ErrEmptyPrompt = errors.New("prompt text cannot be empty")

// Streamer implements generation.TextStreamer using the Anthropic Messages API.
type Streamer struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	logger    *slog.Logger
}

var _ generation.TextStreamer = (*Streamer)(nil)

// NewStreamer creates an Anthropic client from the LLM configuration.
// Extra request options are appended after the API key, which lets tests
// point the client at a local server.
func NewStreamer(logger *slog.Logger, cfg config.LLMConfig, opts ...option.RequestOption) (*Streamer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("%w: anthropic API key cannot be empty", generation.ErrInvalidConfig)
	}

	model := anthropic.Model(cfg.AnthropicModel)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_5_20250929
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	opts = append([]option.RequestOption{option.WithAPIKey(cfg.AnthropicAPIKey)}, opts...)

	return &Streamer{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		logger:    logger.With("component", "claude_streamer", "model", string(model)),
	}, nil
}

// Stream implements generation.TextStreamer.
func (s *Streamer) Stream(ctx context.Context, prompt generation.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if strings.TrimSpace(prompt.User) == "" {
			yield("", ErrEmptyPrompt)
			return
		}

		params := anthropic.MessageNewParams{
			Model:     s.model,
			MaxTokens: s.maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User)),
			},
		}
		if prompt.System != "" {
			params.System = []anthropic.TextBlockParam{{Text: prompt.System}}
		}

		stream := s.client.Messages.NewStreaming(ctx, params)
		defer func() { _ = stream.Close() }()

		chunks := 0
		for stream.Next() {
			event := stream.Current()

			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				delta, ok := ev.Delta.AsAny().(anthropic.TextDelta)
				if !ok || delta.Text == "" {
					continue
				}
				chunks++
				if !yield(delta.Text, nil) {
					return
				}
			case anthropic.MessageDeltaEvent:
				if ev.Delta.StopReason == anthropic.StopReasonRefusal {
					yield("", fmt.Errorf("%w: model refused the request", generation.ErrContentBlocked))
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			s.logger.ErrorContext(ctx, "Claude stream error", "error", err, "chunks", chunks)
			yield("", err)
			return
		}

		s.logger.DebugContext(ctx, "Claude stream finished", "chunks", chunks)
	}
}
