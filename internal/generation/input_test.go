package generation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInput(t *testing.T) {
	t.Parallel()

	a := &domain.Document{ID: uuid.New(), Title: "Intro", Content: "First text."}
	empty := &domain.Document{ID: uuid.New(), Content: "   "}
	b := &domain.Document{ID: uuid.New(), Content: "Second text."}

	in, err := BuildInput(domain.OutputKindSummary, "Notes", []*domain.Document{a, nil, empty, b})
	require.NoError(t, err)
	assert.Equal(t, domain.OutputKindSummary, in.Kind)
	assert.Equal(t, "Notes", in.Title)
	assert.Equal(t, "# Intro\n\nFirst text.\n\nSecond text.", in.Text)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, in.DocumentIDs)

	_, err = BuildInput(domain.OutputKindSummary, "", []*domain.Document{empty})
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = BuildInput(domain.OutputKindSummary, "", nil)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestOptionsWithDefaults(t *testing.T) {
	t.Parallel()

	o := Options{CardCount: 5}.WithDefaults()
	assert.Equal(t, DefaultLanguage, o.Language)
	assert.Equal(t, DefaultMaxNodes, o.MaxNodes)
	assert.Equal(t, DefaultMaxDepth, o.MaxDepth)
	assert.Equal(t, 5, o.CardCount)
}
