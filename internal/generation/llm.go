package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/platform/logger"
)

// TextStreamer is a language model backend that streams plain text.
type TextStreamer interface {
	// Stream sends the prompt and yields text chunks as they arrive.
	Stream(ctx context.Context, prompt Prompt) iter.Seq2[string, error]
}

// ErrNilStreamer is returned when NewLLMGenerator is given no backend.
var ErrNilStreamer = errors.New("text streamer cannot be nil")

// LLMGenerator implements Generator on top of any TextStreamer.
type LLMGenerator struct {
	streamer TextStreamer
	prompts  *prompts
	logger   *slog.Logger
}

var _ Generator = (*LLMGenerator)(nil)

// NewLLMGenerator creates a generator that prompts streamer.
func NewLLMGenerator(streamer TextStreamer, logger *slog.Logger) (*LLMGenerator, error) {
	if streamer == nil {
		return nil, ErrNilStreamer
	}
	if logger == nil {
		logger = slog.Default()
	}

	p, err := loadPrompts()
	if err != nil {
		return nil, err
	}

	return &LLMGenerator{
		streamer: streamer,
		prompts:  p,
		logger:   logger.With("component", "llm_generator"),
	}, nil
}

// Generate implements Generator.
func (g *LLMGenerator) Generate(ctx context.Context, in Input, opts Options) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		if strings.TrimSpace(in.Text) == "" {
			yield(Event{}, ErrNoContent)
			return
		}

		data := promptData{Title: in.Title, Text: in.Text, Options: opts.WithDefaults()}

		switch in.Kind {
		case domain.OutputKindMindMap:
			g.streamGraph(ctx, "mindmap", data, nil, yield)
		case domain.OutputKindSummary:
			g.streamSnapshot(ctx, "summary", data, decodeSummary, yield)
		case domain.OutputKindFlashcards:
			g.streamSnapshot(ctx, "flashcards", data, decodeFlashcards, yield)
		default:
			yield(Event{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, in.Kind))
		}
	}
}

// ExplainNode implements Generator.
func (g *LLMGenerator) ExplainNode(ctx context.Context, req NodeRequest) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		data := promptData{
			Text:    req.SourceText,
			Options: req.Options.WithDefaults(),
			Node:    req.Node,
			Outline: outline(req.MindMap),
		}

		decode := func(text string) (json.RawMessage, error) {
			text = strings.TrimSpace(text)
			if text == "" {
				return nil, fmt.Errorf("%w: empty explanation", ErrInvalidResponse)
			}
			return json.Marshal(domain.Explanation{NodeID: req.Node.ID, Text: text})
		}
		g.streamSnapshot(ctx, "explain", data, decode, yield)
	}
}

// ExpandNode implements Generator.
func (g *LLMGenerator) ExpandNode(ctx context.Context, req NodeRequest) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		data := promptData{
			Text:    req.SourceText,
			Options: req.Options.WithDefaults(),
			Node:    req.Node,
			Outline: outline(req.MindMap),
		}
		parent := req.Node
		g.streamGraph(ctx, "expand", data, &parent, yield)
	}
}

// streamGraph prompts for newline-delimited nodes and edges and yields them
// as soon as each line is complete.
func (g *LLMGenerator) streamGraph(
	ctx context.Context,
	name string,
	data promptData,
	parent *domain.Node,
	yield func(Event, error) bool,
) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	prompt, err := g.prompts.render(name, data)
	if err != nil {
		yield(Event{}, err)
		return
	}

	parser := &graphParser{defaultParent: parent}
	for chunk, err := range g.streamer.Stream(ctx, prompt) {
		if err != nil {
			yield(Event{}, wrapStreamError(err))
			return
		}
		for _, ev := range parser.Feed(chunk) {
			if !yield(ev, nil) {
				return
			}
		}
	}
	for _, ev := range parser.Flush() {
		if !yield(ev, nil) {
			return
		}
	}

	if parser.skipped > 0 {
		log.Warn("skipped malformed graph lines",
			"prompt", name,
			"skipped", parser.skipped,
			"nodes", parser.nodes)
	}
	if parser.nodes == 0 {
		yield(Event{}, fmt.Errorf("%w: response contained no nodes", ErrInvalidResponse))
	}
}

// streamSnapshot yields every chunk as a token event, then decodes the whole
// response into the payload of a complete event.
func (g *LLMGenerator) streamSnapshot(
	ctx context.Context,
	name string,
	data promptData,
	decode func(string) (json.RawMessage, error),
	yield func(Event, error) bool,
) {
	prompt, err := g.prompts.render(name, data)
	if err != nil {
		yield(Event{}, err)
		return
	}

	var buf strings.Builder
	for chunk, err := range g.streamer.Stream(ctx, prompt) {
		if err != nil {
			yield(Event{}, wrapStreamError(err))
			return
		}
		if chunk == "" {
			continue
		}
		buf.WriteString(chunk)
		if !yield(TokenEvent(chunk), nil) {
			return
		}
	}

	payload, err := decode(buf.String())
	if err != nil {
		logger.FromContextOrDefault(ctx, g.logger).Warn("failed to decode model response",
			"prompt", name,
			"response_length", buf.Len(),
			"error", err)
		yield(Event{}, err)
		return
	}
	yield(CompleteEvent(payload), nil)
}

func wrapStreamError(err error) error {
	if errors.Is(err, ErrContentBlocked) || errors.Is(err, ErrGenerationFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrGenerationFailed, err)
}
