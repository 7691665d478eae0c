package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/helpdesk"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/telegram"
)

// Transport is the outward chat surface the machine talks through. Failures
// are handled inside the implementation; see telegram.Client.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *telegram.InlineKeyboard)
	AnswerCallback(ctx context.Context, callbackID, text string)
}

// Settings carries the deployment-level knobs the intake flow needs. It is
// injected at construction, never read from ambient state.
type Settings struct {
	WelcomeMessage        string
	TicketCreatedTemplate string
	TicketTemplate        string
	DefaultTicketType     string
	DefaultAgentGroup     string
}

const (
	callbackCreateTicket = "create_ticket"
	callbackMyTickets    = "my_tickets"
)

// Permissive shape check, not RFC validation: something@something.something.
var emailShape = regexp.MustCompile(`^.+@.+\..+$`)

// Machine drives one inbound update at a time through the per-user
// conversation state machine.
type Machine struct {
	repo *Repo
	tg   Transport
	desk helpdesk.Service
	cfg  Settings
}

func NewMachine(repo *Repo, tg Transport, desk helpdesk.Service, cfg Settings) *Machine {
	if cfg.WelcomeMessage == "" {
		cfg.WelcomeMessage = "Welcome to Support! How can I help you?"
	}
	return &Machine{repo: repo, tg: tg, desk: desk, cfg: cfg}
}

// ProcessUpdate routes a single update. Callback events are acknowledged
// before any further processing; events without a resolvable actor and chat
// are discarded.
func (m *Machine) ProcessUpdate(ctx context.Context, upd telegram.Update) error {
	var (
		text         string
		callbackData string
		from         *telegram.User
		chat         *telegram.Chat
	)

	switch {
	case upd.CallbackQuery != nil:
		cq := upd.CallbackQuery
		callbackData = cq.Data
		from = cq.From
		if cq.Message != nil {
			chat = cq.Message.Chat
		}
		m.tg.AnswerCallback(ctx, cq.ID, "")
	case upd.Message != nil:
		from = upd.Message.From
		chat = upd.Message.Chat
		text = upd.Message.Text
	default:
		return nil
	}

	if from == nil || from.ID == 0 || chat == nil || chat.ID == 0 {
		return nil
	}

	user, err := m.repo.GetOrCreateUser(ctx, from)
	if err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}
	chatRec, err := m.repo.GetOrCreateChat(ctx, chat, user)
	if err != nil {
		return fmt.Errorf("resolve chat: %w", err)
	}
	state, err := m.repo.GetOrCreateState(ctx, user.ID, chatRec.ID)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	input := text
	if input == "" {
		input = callbackData
	}

	switch {
	case text == "/start":
		if err := m.repo.ResetState(ctx, state); err != nil {
			return err
		}
		m.sendWelcome(ctx, chat.ID)
		return nil

	case text == "/newticket" || callbackData == callbackCreateTicket:
		return m.startNewTicket(ctx, chat.ID, chatRec, state)

	case callbackData == callbackMyTickets:
		return m.listOpenTickets(ctx, chat.ID, user)

	case text == "/cancel":
		if err := m.repo.ResetState(ctx, state); err != nil {
			return err
		}
		m.tg.SendMessage(ctx, chat.ID, "Ticket creation cancelled. Send /start to see options.", nil)
		return nil

	case state.State == StateAwaitingEmail:
		return m.handleEmailInput(ctx, input, chat.ID, user, state)

	case state.State == StateCollectingFields:
		return m.handleFieldInput(ctx, input, chat.ID, user, chatRec, state)

	default:
		return m.handleFollowUp(ctx, text, chat.ID, user, state)
	}
}

func (m *Machine) sendWelcome(ctx context.Context, chatID int64) {
	kb := telegram.SingleColumn(
		telegram.InlineButton{Text: "Create Ticket", CallbackData: callbackCreateTicket},
		telegram.InlineButton{Text: "My Tickets", CallbackData: callbackMyTickets},
	)
	m.tg.SendMessage(ctx, chatID, m.cfg.WelcomeMessage, kb)
}

// startNewTicket enters the new-ticket flow. A previously captured email is
// never re-asked for: collection starts immediately in that case.
func (m *Machine) startNewTicket(ctx context.Context, chatID int64, chatRec *TelegramChat, state *ConversationState) error {
	if state.Email != "" {
		return m.initFieldCollection(ctx, chatID, state)
	}

	state.State = StateAwaitingEmail
	state.TelegramChatID = chatRec.ID
	if err := m.repo.SaveState(ctx, state); err != nil {
		return err
	}
	m.tg.SendMessage(ctx, chatID, "Please share your registered email to continue.", nil)
	return nil
}

func (m *Machine) handleEmailInput(ctx context.Context, input string, chatID int64, user *TelegramUser, state *ConversationState) error {
	email := strings.TrimSpace(input)
	if !emailShape.MatchString(email) {
		m.tg.SendMessage(ctx, chatID, "That doesn't look like a valid email. Please try again.", nil)
		return nil
	}

	state.Email = email
	if err := m.repo.SaveState(ctx, state); err != nil {
		return err
	}

	// Best effort; a contact lookup failure must not block the flow.
	if err := m.desk.EnsureContact(ctx, email, user.FullName); err != nil {
		log.Printf("bridge: ensure contact %s: %v", email, err)
	}

	return m.initFieldCollection(ctx, chatID, state)
}

// initFieldCollection loads the template fields, persists them on the state
// record under _fields, and emits the first prompt. A template fetch failure
// degrades to the fixed subject/description pair.
func (m *Machine) initFieldCollection(ctx context.Context, chatID int64, state *ConversationState) error {
	var meta []helpdesk.TemplateField
	if m.cfg.TicketTemplate != "" {
		var err error
		meta, err = m.desk.TemplateFields(ctx, m.cfg.TicketTemplate)
		if err != nil {
			log.Printf("bridge: template fields %s: %v", m.cfg.TicketTemplate, err)
			meta = nil
		}
	}

	data := CollectedData{
		Fields: BuildFields(meta),
		Values: make(map[string]string),
	}
	blob, err := encodeCollected(data)
	if err != nil {
		return err
	}

	state.State = StateCollectingFields
	state.CurrentFieldIndex = 0
	state.CollectedData = blob
	if err := m.repo.SaveState(ctx, state); err != nil {
		return err
	}

	m.askNextField(ctx, chatID, state, data)
	return nil
}

func (m *Machine) askNextField(ctx context.Context, chatID int64, state *ConversationState, data CollectedData) {
	if state.CurrentFieldIndex >= len(data.Fields) {
		return
	}
	field := data.Fields[state.CurrentFieldIndex]

	var kb *telegram.InlineKeyboard
	if field.Type == FieldSelect && len(field.Options) > 0 {
		buttons := make([]telegram.InlineButton, 0, len(field.Options))
		for _, opt := range field.Options {
			buttons = append(buttons, telegram.InlineButton{Text: opt, CallbackData: opt})
		}
		kb = telegram.SingleColumn(buttons...)
	}

	m.tg.SendMessage(ctx, chatID, field.PromptText(), kb)
}

func (m *Machine) handleFieldInput(ctx context.Context, input string, chatID int64, user *TelegramUser, chatRec *TelegramChat, state *ConversationState) error {
	data, err := decodeCollected(state.CollectedData)
	if err != nil {
		return err
	}
	idx := state.CurrentFieldIndex
	if idx >= len(data.Fields) {
		return nil
	}
	field := data.Fields[idx]

	var value string
	if input == "/skip" && !field.Required {
		value = ""
	} else {
		value, err = field.Check(input)
		if err != nil {
			// Re-prompt without advancing.
			m.tg.SendMessage(ctx, chatID, err.Error(), nil)
			m.askNextField(ctx, chatID, state, data)
			return nil
		}
	}

	data.Values[field.Key] = value
	state.CurrentFieldIndex = idx + 1

	blob, err := encodeCollected(data)
	if err != nil {
		return err
	}
	state.CollectedData = blob
	if err := m.repo.SaveState(ctx, state); err != nil {
		return err
	}

	if state.CurrentFieldIndex >= len(data.Fields) {
		return m.createTicket(ctx, data, chatID, user, chatRec, state)
	}
	m.askNextField(ctx, chatID, state, data)
	return nil
}

func (m *Machine) listOpenTickets(ctx context.Context, chatID int64, user *TelegramUser) error {
	mappings, err := m.repo.OpenMappingsByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(mappings) == 0 {
		m.tg.SendMessage(ctx, chatID, "You have no open tickets. Tap /start to create one.", nil)
		return nil
	}

	lines := []string{"Your open tickets:", ""}
	for _, mp := range mappings {
		ticket, err := m.desk.GetTicket(ctx, mp.TicketID)
		if err != nil {
			log.Printf("bridge: get ticket %s: %v", mp.TicketID, err)
			continue
		}
		lines = append(lines, fmt.Sprintf("#%s - %s (%s)", ticket.ID, ticket.Subject, ticket.Status))
	}
	m.tg.SendMessage(ctx, chatID, strings.Join(lines, "\n"), nil)
	return nil
}

// handleFollowUp covers free-form text outside any flow: append it to the
// user's open ticket when one exists, otherwise point at /start.
func (m *Machine) handleFollowUp(ctx context.Context, text string, chatID int64, user *TelegramUser, state *ConversationState) error {
	if text == "" {
		return nil
	}

	mapping, err := m.repo.LatestOpenMappingByUser(ctx, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			m.tg.SendMessage(ctx, chatID, "No open ticket found. Send /start to see options.", nil)
			return nil
		}
		return err
	}

	subject := "Re: your ticket"
	if ticket, err := m.desk.GetTicket(ctx, mapping.TicketID); err == nil {
		subject = "Re: " + ticket.Subject
	}

	sender := state.Email
	if sender == "" {
		sender = user.FullName
	}

	if err := m.desk.AddCommunication(ctx, mapping.TicketID, sender, subject, text); err != nil {
		return fmt.Errorf("append communication to %s: %w", mapping.TicketID, err)
	}

	m.tg.SendMessage(ctx, chatID, "Message added to ticket #"+mapping.TicketID, nil)
	return nil
}

// chatPlatformID parses the stored external chat id back to the int64 the
// transport wants.
func chatPlatformID(c *TelegramChat) (int64, error) {
	return strconv.ParseInt(c.ChatID, 10, 64)
}
