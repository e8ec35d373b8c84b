package view

import (
	"strings"

	"github.com/HerbHall/welfaredesk/internal/modal"
	"github.com/HerbHall/welfaredesk/pkg/models"
)

// ModalID is the DOM id of a dialog.
func ModalID(id string) string { return "modal-" + id }

func modalURL(entity, id, action string) string {
	return entityURL(entity) + "/modals/" + id + "/" + action
}

// Modal renders an open dialog. Closed dialogs render nothing.
func Modal(e *models.Entity, s modal.Snapshot) *Node {
	if s.State == modal.StateClosed {
		return nil
	}
	title := "Add " + e.Label
	if s.Kind == modal.KindView {
		title = e.Label + " #" + s.RecordID
	}
	readOnly := !s.Editable || s.State != modal.StateOpen

	form := El("form", A("method", "post", "action", modalURL(e.Name, s.ID, "submit"), "enctype", "multipart/form-data", "class", "modal-form"))
	if s.NextID != "" {
		form.Children = append(form.Children, El("p", A("class", "next-id"), Text("ID: "+s.NextID)))
	}
	if s.Error != "" {
		form.Children = append(form.Children, El("div", A("class", "modal-error", "role", "alert"), Text(s.Error)))
	}
	for _, f := range modal.FormFields(e) {
		form.Children = append(form.Children, field(e, f, s, readOnly))
	}
	if e.FileField != "" {
		accept := "image/jpeg,image/png,image/gif,image/webp"
		if e.FileKind == models.FileKindPDF {
			accept = "application/pdf"
		}
		var current *Node
		if s.FileName != "" {
			current = El("span", A("class", "file-name"), Text(s.FileName))
		}
		form.Children = append(form.Children, El("label", nil,
			Text("File"),
			El("input", Join(A("type", "file", "name", e.FileField, "accept", accept), Flag("disabled", readOnly))),
			current,
		))
	}
	if !readOnly {
		form.Children = append(form.Children, El("div", A("class", "modal-actions"),
			El("button", A("type", "submit", "class", "btn btn-primary"), Text("Save")),
		))
	}

	return El("div", A("id", ModalID(s.ID), "class", "modal-backdrop", "data-state", string(s.State)),
		El("div", A("class", "modal", "role", "dialog", "aria-modal", "true", "aria-label", title),
			El("header", nil,
				El("h2", nil, Text(title)),
				closeForm(e.Name, s.ID, "×"),
			),
			form,
			confirmDialog(e, s),
		),
	)
}

func field(e *models.Entity, name string, s modal.Snapshot, readOnly bool) *Node {
	label := name
	format := models.FormatText
	for _, c := range e.Columns {
		if c.Key == name {
			label, format = c.Label, c.Format
		}
	}
	if label == name && name != "" {
		label = strings.ToUpper(name[:1]) + name[1:]
	}
	if e.IsRequired(name) {
		label += " *"
	}
	attrs := Join(
		A("name", name, "id", "f-"+s.ID+"-"+name),
		Flag("readonly", readOnly),
		Flag("autofocus", s.Focus == name),
		Flag("required", e.IsRequired(name) && !(s.Kind == modal.KindView && e.IsWriteOnly(name))),
	)
	var input *Node
	switch {
	case name == "description" || name == "content" || format == models.FormatRich:
		input = El("textarea", attrs, Text(s.Fields[name]))
	case e.IsWriteOnly(name):
		input = El("input", Join(A("type", "password", "value", ""), attrs))
	case name == e.DateField || format == models.FormatDate:
		input = El("input", Join(A("type", "date", "value", s.Fields[name]), attrs))
	default:
		if ff, ok := e.Filter(name); ok && len(ff.Values) > 0 {
			opts := []*Node{El("option", A("value", ""), Text("Select…"))}
			for _, v := range ff.Values {
				opts = append(opts, El("option", Join(A("value", v), Flag("selected", s.Fields[name] == v)), Text(v)))
			}
			input = El("select", Join(attrs, Flag("disabled", readOnly)), opts...)
		} else {
			input = El("input", Join(A("type", "text", "value", s.Fields[name]), attrs))
		}
	}
	return El("label", A("for", "f-"+s.ID+"-"+name), Text(label), input)
}

func closeForm(entity, id, label string) *Node {
	return El("form", A("method", "post", "action", modalURL(entity, id, "close"), "class", "modal-close"),
		El("button", A("type", "submit", "class", "btn btn-link", "aria-label", "Close"), Text(label)),
	)
}

// confirmDialog renders the nested confirmation shown in the confirming and
// confirm-cancel states.
func confirmDialog(e *models.Entity, s modal.Snapshot) *Node {
	var question, yesAction, noAction, yes, no string
	switch s.State {
	case modal.StateConfirming:
		question = "Save these changes?"
		yesAction, noAction = "confirm?answer=yes", "confirm?answer=no"
		yes, no = "Save", "Go back"
	case modal.StateConfirmCancel:
		question = "Discard your unsaved changes?"
		yesAction, noAction = "cancel?answer=discard", "cancel?answer=resume"
		yes, no = "Discard", "Keep editing"
	case modal.StateSubmitting:
		return El("div", A("class", "modal-submitting", "role", "status"), El("div", A("class", "spinner")), Text("Saving…"))
	default:
		return nil
	}
	return El("div", A("class", "confirm-dialog", "role", "alertdialog"),
		El("p", nil, Text(question)),
		El("form", A("method", "post", "action", modalURL(e.Name, s.ID, yesAction)),
			El("button", A("type", "submit", "class", "btn btn-primary"), Text(yes))),
		El("form", A("method", "post", "action", modalURL(e.Name, s.ID, noAction)),
			El("button", A("type", "submit", "class", "btn"), Text(no))),
	)
}
