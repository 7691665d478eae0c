package helpdesk

import (
	"bytes"
	"context"
)

// Ticket is the slice of the ticket record the bridge cares about.
type Ticket struct {
	ID             string `json:"name"`
	Subject        string `json:"subject"`
	Status         string `json:"status"`
	StatusCategory string `json:"status_category"`
}

// Flag is a boolean that also accepts the 0/1 integers Frappe emits for
// check fields.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "true", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

// TemplateField is one entry of a ticket template's field metadata, in the
// order the template defines it. Options is newline-separated for selects.
type TemplateField struct {
	Fieldname        string `json:"fieldname"`
	Label            string `json:"label"`
	Fieldtype        string `json:"fieldtype"`
	Required         Flag   `json:"required"`
	Placeholder      string `json:"placeholder"`
	Options          string `json:"options"`
	HideFromCustomer Flag   `json:"hide_from_customer"`
}

// Service is the ticket-system boundary the bridge depends on. The HTTP
// client below implements it; tests substitute a fake.
type Service interface {
	// CreateTicket creates a ticket from a flat attribute map and returns
	// the created record.
	CreateTicket(ctx context.Context, fields map[string]any) (*Ticket, error)

	GetTicket(ctx context.Context, id string) (*Ticket, error)

	// AddCommunication records an inbound message against a ticket.
	AddCommunication(ctx context.Context, ticketID, sender, subject, content string) error

	// EnsureContact looks up or creates a contact for the email/name pair.
	EnsureContact(ctx context.Context, email, fullName string) error

	// TemplateFields fetches the ordered field metadata for a template.
	TemplateFields(ctx context.Context, template string) ([]TemplateField, error)

	// TicketFieldNames returns the set of attribute names the ticket schema
	// accepts, used for best-effort placement of collected values.
	TicketFieldNames(ctx context.Context) (map[string]bool, error)
}
