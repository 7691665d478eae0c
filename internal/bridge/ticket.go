package bridge

import (
	"context"
	"fmt"
	"log"
	"strings"
	"text/template"

	"github.com/oklog/ulid/v2"

	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/helpdesk"
)

const defaultCreatedTemplate = "Ticket #{{.Ticket.ID}} created: {{.Ticket.Subject}}"

// createTicket folds the collected answers into a ticket-creation request,
// links the resulting ticket back to the chat, and resets the conversation.
// On creation failure the user gets a generic error and the flow resets;
// partially collected data is discarded.
func (m *Machine) createTicket(ctx context.Context, data CollectedData, chatID int64, user *TelegramUser, chatRec *TelegramChat, state *ConversationState) error {
	subject := data.Values["subject"]
	description := data.Values["description"]
	if description == "" {
		description = subject
	}
	if subject == "" {
		subject = "Telegram Support Request"
	}

	payload := map[string]any{
		"subject":                  subject,
		"description":              description,
		"raised_by":                state.Email,
		"via_customer_portal":      1,
		"custom_source":            "Telegram",
		"custom_telegram_user_id":  user.TelegramUserID,
		"custom_telegram_username": user.Username,
	}
	if m.cfg.DefaultTicketType != "" {
		payload["ticket_type"] = m.cfg.DefaultTicketType
	}
	if m.cfg.DefaultAgentGroup != "" {
		payload["agent_group"] = m.cfg.DefaultAgentGroup
	}
	if m.cfg.TicketTemplate != "" {
		payload["template"] = m.cfg.TicketTemplate
	}

	m.applyExtraValues(ctx, payload, data)

	ticket, err := m.desk.CreateTicket(ctx, payload)
	if err != nil {
		log.Printf("bridge: create ticket: %v", err)
		m.tg.SendMessage(ctx, chatID, "Sorry, there was an error creating your ticket. Please try again.", nil)
		return m.repo.ResetState(ctx, state)
	}

	mapping := &TicketMapping{
		ID:             ulid.Make().String(),
		TicketID:       ticket.ID,
		TelegramUserID: user.ID,
		TelegramChatID: chatRec.ID,
		IsOpen:         true,
	}
	if err := m.repo.CreateMapping(ctx, mapping); err != nil {
		return fmt.Errorf("create mapping for %s: %w", ticket.ID, err)
	}

	if err := m.repo.ResetState(ctx, state); err != nil {
		return err
	}

	m.tg.SendMessage(ctx, chatID, m.renderCreatedMessage(ticket), nil)
	return nil
}

// applyExtraValues places the remaining collected keys on the ticket
// payload: bare attribute name when the schema knows it, custom_ prefix as a
// fallback, dropped silently otherwise. Internal keys, the already-applied
// subject/description pair, and empty values are skipped.
func (m *Machine) applyExtraValues(ctx context.Context, payload map[string]any, data CollectedData) {
	extras := make(map[string]string)
	for key, value := range data.Values {
		if strings.HasPrefix(key, "_") || key == "subject" || key == "description" || value == "" {
			continue
		}
		extras[key] = value
	}
	if len(extras) == 0 {
		return
	}

	known, err := m.desk.TicketFieldNames(ctx)
	if err != nil {
		log.Printf("bridge: ticket field names: %v", err)
		return
	}

	for key, value := range extras {
		switch {
		case known[key]:
			payload[key] = value
		case known["custom_"+key]:
			payload["custom_"+key] = value
		}
	}
}

func (m *Machine) renderCreatedMessage(ticket *helpdesk.Ticket) string {
	fallback := fmt.Sprintf("Ticket #%s created: %s", ticket.ID, ticket.Subject)

	text := m.cfg.TicketCreatedTemplate
	if text == "" {
		text = defaultCreatedTemplate
	}

	tmpl, err := template.New("ticket_created").Parse(text)
	if err != nil {
		log.Printf("bridge: created-message template: %v", err)
		return fallback
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, struct{ Ticket *helpdesk.Ticket }{ticket}); err != nil {
		log.Printf("bridge: created-message render: %v", err)
		return fallback
	}
	return b.String()
}
