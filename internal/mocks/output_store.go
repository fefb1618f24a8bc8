package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/store"
)

// MockOutputStore is an in-memory implementation of store.OutputStore.
// Stored outputs are copied on the way in and out.
type MockOutputStore struct {
	// Custom behavior functions; when set they replace the in-memory logic
	CreateFn  func(ctx context.Context, output *domain.Output) error
	GetByIDFn func(ctx context.Context, id uuid.UUID) (*domain.Output, error)
	UpdateFn  func(ctx context.Context, output *domain.Output) error

	mu      sync.Mutex
	outputs map[uuid.UUID]*domain.Output
	updates []domain.Output
}

var _ store.OutputStore = (*MockOutputStore)(nil)

// NewMockOutputStore creates an empty MockOutputStore
func NewMockOutputStore() *MockOutputStore {
	return &MockOutputStore{outputs: make(map[uuid.UUID]*domain.Output)}
}

// Create implements store.OutputStore
func (m *MockOutputStore) Create(ctx context.Context, output *domain.Output) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, output)
	}
	if err := output.Validate(); err != nil {
		return store.NewStoreError("output", "create", "invalid output", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.outputs[output.ID]; exists {
		return store.ErrDuplicate
	}
	m.outputs[output.ID] = copyOutput(output)
	return nil
}

// GetByID implements store.OutputStore
func (m *MockOutputStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Output, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.outputs[id]
	if !ok {
		return nil, store.ErrOutputNotFound
	}
	return copyOutput(o), nil
}

// Update implements store.OutputStore. Like the database store it refuses to
// move a finished output to another status.
func (m *MockOutputStore) Update(ctx context.Context, output *domain.Output) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, output)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.outputs[output.ID]
	if !ok {
		return store.ErrOutputNotFound
	}
	if current.Status != domain.OutputStatusGenerating && current.Status != output.Status {
		return store.ErrUpdateFailed
	}
	m.outputs[output.ID] = copyOutput(output)
	m.updates = append(m.updates, *copyOutput(output))
	return nil
}

// ListByProject implements store.OutputStore
func (m *MockOutputStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*domain.Output
	for _, o := range m.outputs {
		if o.ProjectID == projectID {
			result = append(result, copyOutput(o))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Put stores an output directly, bypassing validation
func (m *MockOutputStore) Put(output *domain.Output) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs[output.ID] = copyOutput(output)
}

// Get returns the stored output without going through GetByIDFn
func (m *MockOutputStore) Get(id uuid.UUID) (*domain.Output, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.outputs[id]
	if !ok {
		return nil, false
	}
	return copyOutput(o), true
}

// Updates returns a copy of every successful Update, in call order
func (m *MockOutputStore) Updates() []domain.Output {
	m.mu.Lock()
	defer m.mu.Unlock()
	updates := make([]domain.Output, len(m.updates))
	copy(updates, m.updates)
	return updates
}

func copyOutput(o *domain.Output) *domain.Output {
	c := *o
	c.SourceDocumentIDs = append([]uuid.UUID(nil), o.SourceDocumentIDs...)
	if o.Data != nil {
		c.Data = append([]byte(nil), o.Data...)
	}
	return &c
}
