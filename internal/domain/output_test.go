package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutputKind(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input    string
		expected OutputKind
		wantErr  bool
	}{
		{input: "mindmap", expected: OutputKindMindMap},
		{input: "Summary", expected: OutputKindSummary},
		{input: " flashcards ", expected: OutputKindFlashcards},
		{input: "podcast", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			kind, err := ParseOutputKind(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				assert.True(t, errors.Is(err, ErrInvalidOutputKind))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, kind)
		})
	}
}

func TestNewOutput(t *testing.T) {
	t.Parallel()

	projectID := uuid.New()
	docs := []uuid.UUID{uuid.New(), uuid.New()}

	t.Run("valid output", func(t *testing.T) {
		output, err := NewOutput(projectID, OutputKindSummary, docs, "")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, output.ID)
		assert.Equal(t, OutputStatusGenerating, output.Status)
		assert.Equal(t, "Summary", output.Title)
		assert.Equal(t, docs, output.SourceDocumentIDs)

		// The caller's slice must not alias the output's
		docs[0] = uuid.Nil
		assert.NotEqual(t, uuid.Nil, output.SourceDocumentIDs[0])
	})

	t.Run("missing project", func(t *testing.T) {
		output, err := NewOutput(uuid.Nil, OutputKindSummary, nil, "x")
		assert.ErrorIs(t, err, ErrInvalidID)
		assert.Nil(t, output)
	})

	t.Run("invalid kind", func(t *testing.T) {
		output, err := NewOutput(projectID, OutputKind("bogus"), nil, "x")
		assert.ErrorIs(t, err, ErrInvalidOutputKind)
		assert.Nil(t, output)
	})
}

func TestOutputTransitions(t *testing.T) {
	t.Parallel()

	newOutput := func(t *testing.T, kind OutputKind) *Output {
		t.Helper()
		o, err := NewOutput(uuid.New(), kind, nil, "title")
		require.NoError(t, err)
		return o
	}

	t.Run("generating to complete", func(t *testing.T) {
		o := newOutput(t, OutputKindSummary)
		require.NoError(t, o.Complete(json.RawMessage(`{"overview":"x"}`), "New title"))
		assert.Equal(t, OutputStatusComplete, o.Status)
		assert.Equal(t, "New title", o.Title)

		// never reversed
		assert.ErrorIs(t, o.Fail("boom"), ErrInvalidTransition)
		assert.ErrorIs(t, o.Complete(json.RawMessage(`{}`), ""), ErrInvalidTransition)
		assert.Equal(t, OutputStatusComplete, o.Status)
	})

	t.Run("generating to error", func(t *testing.T) {
		o := newOutput(t, OutputKindSummary)
		require.NoError(t, o.Fail("no content"))
		assert.Equal(t, OutputStatusError, o.Status)
		assert.Equal(t, "no content", o.ErrorMessage)
		assert.ErrorIs(t, o.Complete(json.RawMessage(`{}`), ""), ErrInvalidTransition)
	})

	t.Run("complete requires data", func(t *testing.T) {
		o := newOutput(t, OutputKindSummary)
		assert.ErrorIs(t, o.Complete(nil, ""), ErrEmptyContent)
		assert.Equal(t, OutputStatusGenerating, o.Status)
	})

	t.Run("replace data only on complete mind maps", func(t *testing.T) {
		summary := newOutput(t, OutputKindSummary)
		require.NoError(t, summary.Complete(json.RawMessage(`{"overview":"x"}`), ""))
		assert.ErrorIs(t, summary.ReplaceData(json.RawMessage(`{}`)), ErrValidation)

		mindmap := newOutput(t, OutputKindMindMap)
		assert.ErrorIs(t, mindmap.ReplaceData(json.RawMessage(`{}`)), ErrInvalidTransition)

		require.NoError(t, mindmap.Complete(json.RawMessage(`{"nodes":[],"edges":[]}`), ""))
		require.NoError(t, mindmap.ReplaceData(json.RawMessage(`{"nodes":[{"id":"a","label":"A","level":0}],"edges":[]}`)))

		m, err := mindmap.MindMap()
		require.NoError(t, err)
		assert.Len(t, m.Nodes, 1)
	})
}
