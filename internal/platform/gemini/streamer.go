package gemini

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/phrazzld/scry-studio/internal/config"
	"github.com/phrazzld/scry-studio/internal/generation"
	"google.golang.org/genai"
)

// streamFunc matches genai.Models.GenerateContentStream.
type streamFunc func(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) iter.Seq2[*genai.GenerateContentResponse, error]

// Streamer implements generation.TextStreamer using the Gemini API.
type Streamer struct {
	logger    *slog.Logger
	model     string
	maxTokens int32
	stream    streamFunc
}

var _ generation.TextStreamer = (*Streamer)(nil)

// NewStreamer creates a Gemini client from the LLM configuration.
func NewStreamer(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Streamer, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.GeminiModel == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newStreamer(logger, cfg.GeminiModel, cfg.MaxTokens, client.Models.GenerateContentStream), nil
}

func newStreamer(logger *slog.Logger, model string, maxTokens int, stream streamFunc) *Streamer {
	return &Streamer{
		logger:    logger.With("component", "gemini_streamer", "model", model),
		model:     model,
		maxTokens: int32(maxTokens),
		stream:    stream,
	}
}

// Stream implements generation.TextStreamer.
func (s *Streamer) Stream(ctx context.Context, prompt generation.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if strings.TrimSpace(prompt.User) == "" {
			yield("", ErrEmptyPrompt)
			return
		}

		cfg := &genai.GenerateContentConfig{MaxOutputTokens: s.maxTokens}
		if prompt.System != "" {
			cfg.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
		}
		contents := []*genai.Content{genai.NewContentFromText(prompt.User, genai.RoleUser)}

		s.logger.DebugContext(ctx, "starting Gemini stream", "prompt_length", len(prompt.User))

		chunks := 0
		for resp, err := range s.stream(ctx, s.model, contents, cfg) {
			if err != nil {
				s.logger.ErrorContext(ctx, "Gemini stream error", "error", err, "chunks", chunks)
				yield("", err)
				return
			}

			text, err := responseText(resp)
			if err != nil {
				yield("", err)
				return
			}
			if text == "" {
				continue
			}
			chunks++
			if !yield(text, nil) {
				return
			}
		}

		s.logger.DebugContext(ctx, "Gemini stream finished", "chunks", chunks)
	}
}

// responseText extracts the text of the first candidate of a streamed
// response, skipping thought parts. A safety stop becomes ErrContentBlocked.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", nil
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked: %s", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", nil
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String(), nil
}
