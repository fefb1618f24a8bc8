package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/store"
)

// MockDocumentStore is an in-memory implementation of store.DocumentStore
type MockDocumentStore struct {
	// Custom behavior functions; when set they replace the in-memory logic
	CreateFn  func(ctx context.Context, doc *domain.Document) error
	GetByIDFn func(ctx context.Context, id uuid.UUID) (*domain.Document, error)

	mu   sync.Mutex
	docs map[uuid.UUID]*domain.Document
}

var _ store.DocumentStore = (*MockDocumentStore)(nil)

// NewMockDocumentStore creates a MockDocumentStore holding the given documents
func NewMockDocumentStore(docs ...*domain.Document) *MockDocumentStore {
	m := &MockDocumentStore{docs: make(map[uuid.UUID]*domain.Document)}
	for _, d := range docs {
		c := *d
		m.docs[d.ID] = &c
	}
	return m
}

// Create implements store.DocumentStore
func (m *MockDocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, doc)
	}
	if err := doc.Validate(); err != nil {
		return store.NewStoreError("document", "create", "invalid document", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[doc.ID]; exists {
		return store.ErrDuplicate
	}
	c := *doc
	m.docs[doc.ID] = &c
	return nil
}

// GetByID implements store.DocumentStore
func (m *MockDocumentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, store.ErrDocumentNotFound
	}
	c := *d
	return &c, nil
}

// ListByProject implements store.DocumentStore
func (m *MockDocumentStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*domain.Document
	for _, d := range m.docs {
		if d.ProjectID == projectID {
			c := *d
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
