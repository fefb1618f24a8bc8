package generation

import (
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
)

// BuildInput concatenates the non-empty documents into generation input.
// Returns ErrNoContent if no document has usable text.
func BuildInput(kind domain.OutputKind, title string, docs []*domain.Document) (Input, error) {
	var b strings.Builder
	ids := make([]uuid.UUID, 0, len(docs))

	for _, doc := range docs {
		if doc == nil {
			continue
		}
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if doc.Title != "" {
			b.WriteString("# ")
			b.WriteString(doc.Title)
			b.WriteString("\n\n")
		}
		b.WriteString(content)
		ids = append(ids, doc.ID)
	}

	if b.Len() == 0 {
		return Input{}, ErrNoContent
	}

	return Input{
		Kind:        kind,
		Title:       title,
		Text:        b.String(),
		DocumentIDs: ids,
	}, nil
}
