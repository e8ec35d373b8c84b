package event

import "github.com/HerbHall/welfaredesk/pkg/models"

// Fixed topics shared by every admin page.
const (
	TopicNavigateTo    = "navigate-to"
	TopicSidebarToggle = "sidebar-toggle"
	TopicModalClosed   = "modal-closed"
	TopicConfirmSave   = "confirm-save"
	TopicCancelConfirm = "cancel-confirm"
	TopicNotification  = "notification"
)

// RefreshTopic is consumed by an entity table's fetch routine.
func RefreshTopic(entity string) string { return "refresh-" + entity + "-table" }

// SavedTopic carries a newly created record.
func SavedTopic(entity string) string { return entity + "-saved" }

// UpdatedTopic carries an updated record.
func UpdatedTopic(entity string) string { return entity + "-updated" }

// RecordPayload is the payload of SavedTopic and UpdatedTopic events.
type RecordPayload struct {
	Entity string
	Record models.Record
}

// NavigatePayload is the payload of TopicNavigateTo events.
type NavigatePayload struct {
	Entity string
}

// ModalPayload is the payload of modal lifecycle events.
type ModalPayload struct {
	ModalID string
	Entity  string
	Kind    string
	// Outcome is "saved", "discarded", "closed" or "replaced".
	Outcome string
}
