package modal

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/HerbHall/welfaredesk/pkg/models"
)

// IDPreviewer reports the id the next saved record will get. Add dialogs
// show it when the submitter provides one.
type IDPreviewer interface {
	NextID(ctx context.Context, entity *models.Entity) (string, error)
}

type slot struct {
	entity string
	kind   Kind
}

// Manager owns the open dialogs of one workspace. It keeps at most one
// dialog per entity and kind; opening another replaces it.
type Manager struct {
	deps Deps

	mu     sync.Mutex
	bySlot map[slot]*Modal
	byID   map[string]*Modal
}

// NewManager creates an empty Manager.
func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Manager{
		deps:   deps,
		bySlot: make(map[slot]*Modal),
		byID:   make(map[string]*Modal),
	}
}

// Open creates and opens a dialog. View dialogs need the record to show.
func (mg *Manager) Open(ctx context.Context, entity *models.Entity, kind Kind, record models.Record) (*Modal, error) {
	switch kind {
	case KindAdd:
		if !entity.Addable {
			return nil, fmt.Errorf("%w: %s", ErrNotAddable, entity.Name)
		}
	case KindView:
		if record == nil {
			return nil, fmt.Errorf("modal: view %s requires a record", entity.Name)
		}
	default:
		return nil, fmt.Errorf("modal: unknown kind %q", kind)
	}

	m := newModal(entity, kind, record, mg.deps)
	m.onClose = mg.forget
	if kind == KindAdd {
		if p, ok := mg.deps.Submitter.(IDPreviewer); ok {
			if id, err := p.NextID(ctx, entity); err == nil {
				m.setNextID(id)
			} else {
				mg.deps.Logger.Debug("next id unavailable", zap.String("entity", entity.Name), zap.Error(err))
			}
		}
	}

	key := slot{entity: entity.Name, kind: kind}
	mg.mu.Lock()
	prev := mg.bySlot[key]
	mg.bySlot[key] = m
	mg.byID[m.id] = m
	mg.mu.Unlock()

	if prev != nil {
		prev.Dismiss(ctx, OutcomeReplaced)
	}
	if err := m.Open(); err != nil {
		return nil, err
	}
	return m, nil
}

// Get returns the open dialog with id.
func (mg *Manager) Get(id string) (*Modal, bool) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	m, ok := mg.byID[id]
	return m, ok
}

// Active returns the open dialogs.
func (mg *Manager) Active() []*Modal {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	out := make([]*Modal, 0, len(mg.byID))
	for _, m := range mg.byID {
		out = append(out, m)
	}
	return out
}

// CloseAll dismisses every open dialog.
func (mg *Manager) CloseAll(ctx context.Context) {
	for _, m := range mg.Active() {
		m.Dismiss(ctx, OutcomeClosed)
	}
}

func (mg *Manager) forget(m *Modal, _ string) {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	delete(mg.byID, m.id)
	key := slot{entity: m.entity.Name, kind: m.kind}
	if mg.bySlot[key] == m {
		delete(mg.bySlot, key)
	}
}
