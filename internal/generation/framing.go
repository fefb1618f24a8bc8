package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/phrazzld/scry-studio/internal/domain"
)

// graphLine is one line of the newline-delimited graph format.
type graphLine struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	ParentID    string `json:"parent_id"`
	Level       int    `json:"level"`
	Source      string `json:"source"`
	Target      string `json:"target"`
}

// graphParser turns streamed text into node and edge events. Text is buffered
// until a newline completes a line. Lines that are not valid graph objects are
// counted and skipped.
type graphParser struct {
	buf     strings.Builder
	nodes   int
	skipped int

	// defaultParent is assigned to nodes that arrive without a parent.
	defaultParent *domain.Node
}

// Feed consumes a chunk of model output and returns the events completed by it.
func (p *graphParser) Feed(chunk string) []Event {
	p.buf.WriteString(chunk)
	text := p.buf.String()

	last := strings.LastIndexByte(text, '\n')
	if last < 0 {
		return nil
	}

	complete, rest := text[:last], text[last+1:]
	p.buf.Reset()
	p.buf.WriteString(rest)

	var events []Event
	for _, line := range strings.Split(complete, "\n") {
		events = append(events, p.parseLine(line)...)
	}
	return events
}

// Flush parses whatever remains in the buffer.
func (p *graphParser) Flush() []Event {
	rest := p.buf.String()
	p.buf.Reset()
	return p.parseLine(rest)
}

func (p *graphParser) parseLine(line string) []Event {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "```") {
		return nil
	}
	line = strings.TrimSuffix(line, ",")

	var gl graphLine
	if err := json.Unmarshal([]byte(line), &gl); err != nil {
		p.skipped++
		return nil
	}

	switch gl.Type {
	case "node":
		if gl.ID == "" || gl.Label == "" {
			p.skipped++
			return nil
		}
		node := domain.Node{
			ID:          gl.ID,
			Label:       gl.Label,
			Description: gl.Description,
			ParentID:    gl.ParentID,
			Level:       gl.Level,
		}
		if node.ParentID == "" && p.defaultParent != nil && node.ID != p.defaultParent.ID {
			node.ParentID = p.defaultParent.ID
			if node.Level <= p.defaultParent.Level {
				node.Level = p.defaultParent.Level + 1
			}
		}
		p.nodes++

		events := []Event{NodeEvent(node)}
		if node.ParentID != "" {
			events = append(events, EdgeEvent(domain.Edge{Source: node.ParentID, Target: node.ID}))
		}
		return events
	case "edge":
		if gl.Source == "" || gl.Target == "" {
			p.skipped++
			return nil
		}
		return []Event{EdgeEvent(domain.Edge{Source: gl.Source, Target: gl.Target, Label: gl.Label})}
	default:
		p.skipped++
		return nil
	}
}

// extractJSON returns the outermost JSON object in text, tolerating code
// fences and prose around it.
func extractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON object in response", ErrInvalidResponse)
	}
	return text[start : end+1], nil
}

// decodeSummary parses and validates a summary response.
func decodeSummary(text string) (json.RawMessage, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var s domain.Summary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("%w: failed to parse summary: %v", ErrInvalidResponse, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return json.Marshal(s)
}

// decodeFlashcards parses and validates a flashcard deck response.
func decodeFlashcards(text string) (json.RawMessage, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var d domain.FlashcardDeck
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("%w: failed to parse flashcards: %v", ErrInvalidResponse, err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return json.Marshal(d)
}
