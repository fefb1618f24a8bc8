package domain

import "fmt"

// SummarySection is one titled part of a summary.
type SummarySection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Summary is the structured result of a summary generation.
type Summary struct {
	Title       string           `json:"title"`
	Overview    string           `json:"overview"`
	KeyFindings []string         `json:"key_findings"`
	Sections    []SummarySection `json:"sections,omitempty"`
}

// Validate checks that the summary has content.
func (s *Summary) Validate() error {
	if s.Overview == "" && len(s.KeyFindings) == 0 && len(s.Sections) == 0 {
		return fmt.Errorf("%w: summary is empty", ErrEmptyContent)
	}
	return nil
}

// Describe returns a short human readable summary.
func (s *Summary) Describe() string {
	return fmt.Sprintf("%d key findings", len(s.KeyFindings))
}

// Flashcard is a single question/answer pair.
type Flashcard struct {
	Front string   `json:"front"`
	Back  string   `json:"back"`
	Hint  string   `json:"hint,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// FlashcardDeck is the structured result of a flashcards generation.
type FlashcardDeck struct {
	Title string      `json:"title,omitempty"`
	Cards []Flashcard `json:"cards"`
}

// Validate checks that every card has both sides.
func (d *FlashcardDeck) Validate() error {
	if len(d.Cards) == 0 {
		return fmt.Errorf("%w: deck has no cards", ErrEmptyContent)
	}
	for i, c := range d.Cards {
		if c.Front == "" {
			return fmt.Errorf("%w: card %d missing front side", ErrValidation, i)
		}
		if c.Back == "" {
			return fmt.Errorf("%w: card %d missing back side", ErrValidation, i)
		}
	}
	return nil
}

// Describe returns a short human readable summary.
func (d *FlashcardDeck) Describe() string {
	return fmt.Sprintf("%d cards", len(d.Cards))
}

// Explanation is the text produced when a mind map node is explained.
type Explanation struct {
	NodeID string `json:"node_id"`
	Text   string `json:"text"`
}

// Describe returns a short human readable summary.
func (e *Explanation) Describe() string {
	return fmt.Sprintf("%d characters", len(e.Text))
}
