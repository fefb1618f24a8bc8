package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMindMap_AddNode(t *testing.T) {
	t.Parallel()

	var m MindMap
	assert.True(t, m.AddNode(Node{ID: "root", Label: "Root"}))
	assert.True(t, m.AddNode(Node{ID: "a", Label: "A", ParentID: "root", Level: 1}))
	assert.False(t, m.AddNode(Node{Label: "no id"}))

	// Upsert keeps the original position
	assert.True(t, m.AddNode(Node{ID: "root", Label: "Renamed"}))
	require.Len(t, m.Nodes, 2)
	assert.Equal(t, "Renamed", m.Nodes[0].Label)
	assert.Equal(t, "a", m.Nodes[1].ID)
}

func TestMindMap_AddEdge(t *testing.T) {
	t.Parallel()

	var m MindMap
	assert.True(t, m.AddEdge(Edge{Source: "root", Target: "a"}))
	assert.True(t, m.AddEdge(Edge{Source: "root", Target: "a", Label: "has"}))
	assert.False(t, m.AddEdge(Edge{Source: "root"}))

	require.Len(t, m.Edges, 1)
	assert.Equal(t, "root->a", m.Edges[0].ID)
	assert.Equal(t, "has", m.Edges[0].Label)
}

func TestMindMap_FindNodeAndClone(t *testing.T) {
	t.Parallel()

	m := &MindMap{}
	m.AddNode(Node{ID: "root", Label: "Root"})

	n, err := m.FindNode("root")
	require.NoError(t, err)
	assert.Equal(t, "Root", n.Label)

	_, err = m.FindNode("missing")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	c := m.Clone()
	c.AddNode(Node{ID: "child", Label: "Child"})
	assert.Len(t, m.Nodes, 1)
	assert.Len(t, c.Nodes, 2)
	assert.Equal(t, "2 nodes, 0 edges", c.Describe())
}

func TestFlashcardDeck_Validate(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, (&FlashcardDeck{}).Validate(), ErrEmptyContent)
	assert.ErrorIs(t, (&FlashcardDeck{Cards: []Flashcard{{Front: "q"}}}).Validate(), ErrValidation)

	deck := &FlashcardDeck{Cards: []Flashcard{{Front: "q", Back: "a"}}}
	assert.NoError(t, deck.Validate())
	assert.Equal(t, "1 cards", deck.Describe())
}
