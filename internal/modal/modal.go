// Package modal implements the add and view dialogs of the admin tables as
// explicit state machines.
//
//	closed -> open -> validating -> confirming -> submitting -> closed
//	open -> confirm-cancel -> open | closed
package modal

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/welfaredesk/internal/endpoint"
	"github.com/HerbHall/welfaredesk/internal/event"
	"github.com/HerbHall/welfaredesk/pkg/models"
	"github.com/HerbHall/welfaredesk/pkg/plugin"
)

// Kind selects the dialog flavor.
type Kind string

const (
	KindAdd  Kind = "add"
	KindView Kind = "view"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindAdd, KindView:
		return Kind(s), true
	}
	return "", false
}

// State is a dialog state.
type State string

const (
	StateClosed        State = "closed"
	StateOpen          State = "open"
	StateValidating    State = "validating"
	StateConfirming    State = "confirming"
	StateSubmitting    State = "submitting"
	StateConfirmCancel State = "confirm-cancel"
)

// Close outcomes carried by modal-closed events.
const (
	OutcomeSaved     = "saved"
	OutcomeDiscarded = "discarded"
	OutcomeClosed    = "closed"
	OutcomeReplaced  = "replaced"
)

// Submitter sends a dialog's form to the entity endpoint.
type Submitter interface {
	Save(ctx context.Context, entity *models.Entity, fields map[string]string, file *endpoint.File) (models.Record, error)
	Update(ctx context.Context, entity *models.Entity, id string, fields map[string]string, file *endpoint.File) (models.Record, error)
}

// Notifier shows toasts and the loading overlay.
type Notifier interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
	BeginLoading() (end func())
}

// Observer counts submissions.
type Observer interface {
	ObserveSubmission(entity, outcome string)
}

// Deps are the collaborators every dialog of a workspace shares.
type Deps struct {
	Submitter Submitter
	Bus       plugin.EventBus
	Notifier  Notifier
	Logger    *zap.Logger
	Observer  Observer
}

// Snapshot is a read-only copy of a dialog for rendering.
type Snapshot struct {
	ID       string            `json:"id"`
	Entity   string            `json:"entity"`
	Kind     Kind              `json:"kind"`
	State    State             `json:"state"`
	RecordID string            `json:"record_id,omitempty"`
	NextID   string            `json:"next_id,omitempty"`
	Fields   map[string]string `json:"fields"`
	FileName string            `json:"file_name,omitempty"`
	Focus    string            `json:"focus,omitempty"`
	Error    string            `json:"error,omitempty"`
	Editable bool              `json:"editable"`
}

// Modal is one dialog instance.
type Modal struct {
	id     string
	entity *models.Entity
	kind   Kind
	deps   Deps
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	fields   map[string]string
	original map[string]string
	recordID string
	nextID   string
	file     *endpoint.File
	focus    string
	errMsg   string
	onClose  func(*Modal, string)
}

func newModal(entity *models.Entity, kind Kind, record models.Record, deps Deps) *Modal {
	m := &Modal{
		id:     uuid.NewString(),
		entity: entity,
		kind:   kind,
		deps:   deps,
		state:  StateClosed,
		fields: make(map[string]string),
	}
	m.logger = deps.Logger.With(
		zap.String("modal", m.id),
		zap.String("entity", entity.Name),
		zap.String("kind", string(kind)),
	)
	if kind == KindView && record != nil {
		m.recordID = record.ID()
		m.original = make(map[string]string)
		for _, f := range FormFields(entity) {
			v, _ := record.String(f)
			if entity.IsWriteOnly(f) {
				v = ""
			}
			m.original[f] = v
			m.fields[f] = v
		}
	}
	return m
}

// FormFields returns the editable fields of entity's dialogs.
func FormFields(entity *models.Entity) []string {
	if len(entity.FormFields) > 0 {
		return entity.FormFields
	}
	var out []string
	for _, c := range entity.Columns {
		if c.Key == models.FieldID || c.Key == entity.FileField {
			continue
		}
		out = append(out, c.Key)
	}
	return out
}

// ID returns the dialog's identifier.
func (m *Modal) ID() string { return m.id }

// Entity returns the dialog's entity.
func (m *Modal) Entity() *models.Entity { return m.entity }

// Kind returns the dialog's kind.
func (m *Modal) Kind() Kind { return m.kind }

// State returns the current state.
func (m *Modal) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns a copy of the dialog for rendering.
func (m *Modal) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		ID:       m.id,
		Entity:   m.entity.Name,
		Kind:     m.kind,
		State:    m.state,
		RecordID: m.recordID,
		NextID:   m.nextID,
		Fields:   make(map[string]string, len(m.fields)),
		Focus:    m.focus,
		Error:    m.errMsg,
		Editable: m.kind == KindAdd || m.entity.Editable,
	}
	for k, v := range m.fields {
		s.Fields[k] = v
	}
	if m.file != nil {
		s.FileName = m.file.Name
	}
	return s
}

// Open shows a closed dialog.
func (m *Modal) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateClosed {
		return fmt.Errorf("%w: open from %s", ErrInvalidTransition, m.state)
	}
	m.state = StateOpen
	return nil
}

func (m *Modal) setNextID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID = id
}

// SetField updates a form value. Input is accepted only while open.
func (m *Modal) SetField(name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateOpen {
		return fmt.Errorf("%w: edit in %s", ErrInvalidTransition, m.state)
	}
	if !m.hasField(name) {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	m.fields[name] = value
	m.focus = name
	return nil
}

// Focus records the field the user last focused.
func (m *Modal) Focus(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasField(name) {
		m.focus = name
	}
}

func (m *Modal) hasField(name string) bool {
	for _, f := range FormFields(m.entity) {
		if f == name {
			return true
		}
	}
	return false
}

// SelectFile attaches an upload after checking its type and size. A
// rejected file leaves the previous selection in place and shows an error.
func (m *Modal) SelectFile(ctx context.Context, name, contentType string, data []byte) error {
	m.mu.Lock()
	if m.state != StateOpen {
		m.mu.Unlock()
		return fmt.Errorf("%w: select file in %s", ErrInvalidTransition, m.state)
	}
	ct, err := CheckFile(m.entity.FileKind, m.entity.FileField, contentType, data)
	if err != nil {
		m.mu.Unlock()
		m.notifyError(ctx, err.(*ValidationError).Message)
		return err
	}
	m.file = &endpoint.File{Field: m.entity.FileField, Name: name, ContentType: ct, Data: data}
	m.focus = m.entity.FileField
	m.mu.Unlock()
	return nil
}

// HasChanges reports whether the form differs from its starting point:
// empty for add dialogs, the loaded record for view dialogs.
func (m *Modal) HasChanges() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasChangesLocked()
}

func (m *Modal) hasChangesLocked() bool {
	if m.file != nil {
		return true
	}
	for _, f := range FormFields(m.entity) {
		cur := strings.TrimSpace(m.fields[f])
		base := ""
		if m.original != nil {
			base = strings.TrimSpace(m.original[f])
		}
		if cur != base {
			return true
		}
	}
	return false
}

// RequestClose handles backdrop clicks, Escape and Cancel/Close. An
// unchanged dialog closes at once and RequestClose returns true; otherwise
// the cancel confirmation is shown. From the save confirmation it returns to
// editing.
func (m *Modal) RequestClose(ctx context.Context) bool {
	m.mu.Lock()
	switch m.state {
	case StateOpen:
		if !m.hasChangesLocked() {
			m.mu.Unlock()
			m.close(ctx, OutcomeClosed)
			return true
		}
		m.state = StateConfirmCancel
		m.mu.Unlock()
		m.publish(ctx, event.TopicCancelConfirm, "")
		return false
	case StateConfirming:
		m.state = StateOpen
		m.mu.Unlock()
		return false
	default:
		m.mu.Unlock()
		return false
	}
}

// ResolveCancel answers the cancel confirmation. discard closes the dialog
// dropping the input; otherwise editing resumes with the last focused field.
func (m *Modal) ResolveCancel(ctx context.Context, discard bool) error {
	m.mu.Lock()
	if m.state != StateConfirmCancel {
		st := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: resolve cancel in %s", ErrInvalidTransition, st)
	}
	if !discard {
		m.state = StateOpen
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()
	m.close(ctx, OutcomeDiscarded)
	return nil
}

// Submit validates the form and, when valid, asks for confirmation. A
// *ValidationError leaves the dialog open with the message shown.
func (m *Modal) Submit(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateOpen {
		st := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: submit in %s", ErrInvalidTransition, st)
	}
	if m.kind == KindView && !m.entity.Editable {
		m.mu.Unlock()
		return ErrReadOnly
	}
	m.state = StateValidating
	if verr := m.validateLocked(); verr != nil {
		m.state = StateOpen
		m.errMsg = verr.Message
		m.focus = verr.Field
		m.mu.Unlock()
		m.notifyError(ctx, verr.Message)
		return verr
	}
	m.errMsg = ""
	m.state = StateConfirming
	m.mu.Unlock()
	m.publish(ctx, event.TopicConfirmSave, "")
	return nil
}

func (m *Modal) validateLocked() *ValidationError {
	for _, f := range FormFields(m.entity) {
		if !m.entity.IsRequired(f) {
			continue
		}
		// Write-only fields such as passwords keep their stored value when
		// left blank on an edit.
		if m.kind == KindView && m.entity.IsWriteOnly(f) {
			continue
		}
		if strings.TrimSpace(m.fields[f]) == "" {
			return &ValidationError{Field: f, Message: fmt.Sprintf("%s is required.", fieldLabel(m.entity, f))}
		}
	}
	return nil
}

// Confirm answers the save confirmation. Declining returns to editing.
// Accepting submits; on failure the dialog reopens with the form intact
// and the error shown, and the error is returned.
func (m *Modal) Confirm(ctx context.Context, yes bool) error {
	m.mu.Lock()
	if m.state != StateConfirming {
		st := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: confirm in %s", ErrInvalidTransition, st)
	}
	if !yes {
		m.state = StateOpen
		m.mu.Unlock()
		return nil
	}
	m.state = StateSubmitting
	fields := m.payloadLocked()
	file := m.file
	id := m.recordID
	m.mu.Unlock()

	rec, err := m.send(ctx, id, fields, file)
	m.observe(endpoint.Outcome(err))
	if err != nil {
		msg := endpoint.UserMessage(err)
		m.mu.Lock()
		m.state = StateOpen
		m.errMsg = msg
		m.mu.Unlock()
		m.logger.Warn("submission failed", zap.Error(err))
		m.notifyError(ctx, msg)
		return err
	}

	topic, verb := event.SavedTopic(m.entity.Name), "added"
	if m.kind == KindView {
		topic, verb = event.UpdatedTopic(m.entity.Name), "updated"
	}
	if m.deps.Bus != nil {
		_ = m.deps.Bus.Publish(ctx, plugin.Event{
			Topic:   topic,
			Source:  "modal",
			Payload: event.RecordPayload{Entity: m.entity.Name, Record: rec},
		})
		_ = m.deps.Bus.Publish(ctx, plugin.Event{
			Topic:   event.RefreshTopic(m.entity.Name),
			Source:  "modal",
			Payload: event.NavigatePayload{Entity: m.entity.Name},
		})
	}
	if m.deps.Notifier != nil {
		m.deps.Notifier.Success(ctx, fmt.Sprintf("%s %s successfully.", singular(m.entity), verb))
	}
	m.close(ctx, OutcomeSaved)
	return nil
}

// send performs the network call under the loading overlay.
func (m *Modal) send(ctx context.Context, id string, fields map[string]string, file *endpoint.File) (models.Record, error) {
	if m.deps.Notifier != nil {
		end := m.deps.Notifier.BeginLoading()
		defer end()
	}
	if m.kind == KindView {
		return m.deps.Submitter.Update(ctx, m.entity, id, fields, file)
	}
	return m.deps.Submitter.Save(ctx, m.entity, fields, file)
}

func (m *Modal) payloadLocked() map[string]string {
	out := make(map[string]string, len(m.fields))
	for _, f := range FormFields(m.entity) {
		v := strings.TrimSpace(m.fields[f])
		if v == "" && m.kind == KindView && m.entity.IsWriteOnly(f) {
			continue
		}
		out[f] = v
	}
	return out
}

// Dismiss closes the dialog regardless of its input, as when another dialog
// replaces it.
func (m *Modal) Dismiss(ctx context.Context, outcome string) {
	m.close(ctx, outcome)
}

func (m *Modal) close(ctx context.Context, outcome string) {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.state = StateClosed
	onClose := m.onClose
	m.mu.Unlock()

	m.logger.Debug("modal closed", zap.String("outcome", outcome))
	if onClose != nil {
		onClose(m, outcome)
	}
	m.publish(ctx, event.TopicModalClosed, outcome)
}

func (m *Modal) publish(ctx context.Context, topic, outcome string) {
	if m.deps.Bus == nil {
		return
	}
	_ = m.deps.Bus.Publish(ctx, plugin.Event{
		Topic:  topic,
		Source: "modal",
		Payload: event.ModalPayload{
			ModalID: m.id,
			Entity:  m.entity.Name,
			Kind:    string(m.kind),
			Outcome: outcome,
		},
	})
}

func (m *Modal) notifyError(ctx context.Context, msg string) {
	if m.deps.Notifier != nil {
		m.deps.Notifier.Error(ctx, msg)
	}
}

func (m *Modal) observe(outcome string) {
	if m.deps.Observer != nil {
		m.deps.Observer.ObserveSubmission(m.entity.Name, outcome)
	}
}

func fieldLabel(e *models.Entity, field string) string {
	for _, c := range e.Columns {
		if c.Key == field && c.Label != "" {
			return c.Label
		}
	}
	if e.FileField == field {
		return "File"
	}
	return capitalize(field)
}

func singular(e *models.Entity) string {
	l := e.Label
	switch {
	case strings.HasSuffix(l, "ies"):
		return strings.TrimSuffix(l, "ies") + "y"
	case strings.HasSuffix(l, "News"):
		return l + " article"
	case strings.HasSuffix(l, "s"):
		return strings.TrimSuffix(l, "s")
	}
	return l
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
