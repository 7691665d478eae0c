package bridge

import (
	"context"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/helpdesk"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/telegram"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&TelegramUser{}, &TelegramChat{}, &ChatMember{},
		&ConversationState{}, &TicketMapping{}, &BridgeSetting{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type sentMsg struct {
	chatID   int64
	text     string
	keyboard *telegram.InlineKeyboard
}

type fakeTransport struct {
	sent  []sentMsg
	acked []string
}

func (f *fakeTransport) SendMessage(ctx context.Context, chatID int64, text string, keyboard *telegram.InlineKeyboard) {
	f.sent = append(f.sent, sentMsg{chatID: chatID, text: text, keyboard: keyboard})
}

func (f *fakeTransport) AnswerCallback(ctx context.Context, callbackID, text string) {
	f.acked = append(f.acked, callbackID)
}

func (f *fakeTransport) last(t *testing.T) sentMsg {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatal("no messages sent")
	}
	return f.sent[len(f.sent)-1]
}

type recordedComm struct {
	ticketID, sender, subject, content string
}

type fakeDesk struct {
	templateFields []helpdesk.TemplateField
	templateErr    error

	fieldNames    map[string]bool
	fieldNamesErr error

	created   []map[string]any
	createErr error

	tickets map[string]*helpdesk.Ticket

	comms    []recordedComm
	contacts []string
}

func (f *fakeDesk) CreateTicket(ctx context.Context, fields map[string]any) (*helpdesk.Ticket, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, fields)
	subject, _ := fields["subject"].(string)
	return &helpdesk.Ticket{
		ID:      fmt.Sprintf("HD-%03d", len(f.created)),
		Subject: subject,
		Status:  "Open",
	}, nil
}

func (f *fakeDesk) GetTicket(ctx context.Context, id string) (*helpdesk.Ticket, error) {
	if tk, ok := f.tickets[id]; ok {
		return tk, nil
	}
	return nil, fmt.Errorf("ticket %s not found", id)
}

func (f *fakeDesk) AddCommunication(ctx context.Context, ticketID, sender, subject, content string) error {
	f.comms = append(f.comms, recordedComm{ticketID, sender, subject, content})
	return nil
}

func (f *fakeDesk) EnsureContact(ctx context.Context, email, fullName string) error {
	f.contacts = append(f.contacts, email)
	return nil
}

func (f *fakeDesk) TemplateFields(ctx context.Context, template string) ([]helpdesk.TemplateField, error) {
	if f.templateErr != nil {
		return nil, f.templateErr
	}
	return f.templateFields, nil
}

func (f *fakeDesk) TicketFieldNames(ctx context.Context) (map[string]bool, error) {
	if f.fieldNamesErr != nil {
		return nil, f.fieldNamesErr
	}
	if f.fieldNames == nil {
		return map[string]bool{}, nil
	}
	return f.fieldNames, nil
}

func msgUpdate(updateID, userID, chatID int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: updateID,
		Message: &telegram.Message{
			From: &telegram.User{ID: userID, FirstName: "Alice", LastName: "Smith", Username: "alice"},
			Chat: &telegram.Chat{ID: chatID, Type: "private", FirstName: "Alice"},
			Text: text,
		},
	}
}

func cbUpdate(updateID, userID, chatID int64, data string) telegram.Update {
	return telegram.Update{
		UpdateID: updateID,
		CallbackQuery: &telegram.CallbackQuery{
			ID:   fmt.Sprintf("cb-%d", updateID),
			From: &telegram.User{ID: userID, FirstName: "Alice", LastName: "Smith", Username: "alice"},
			Message: &telegram.Message{
				Chat: &telegram.Chat{ID: chatID, Type: "private", FirstName: "Alice"},
			},
			Data: data,
		},
	}
}

type fixture struct {
	db   *gorm.DB
	repo *Repo
	tg   *fakeTransport
	desk *fakeDesk
	m    *Machine
}

func newFixture(t *testing.T, cfg Settings) *fixture {
	t.Helper()
	db := openTestDB(t)
	repo := NewRepo(db)
	tg := &fakeTransport{}
	desk := &fakeDesk{tickets: map[string]*helpdesk.Ticket{}}
	return &fixture{
		db:   db,
		repo: repo,
		tg:   tg,
		desk: desk,
		m:    NewMachine(repo, tg, desk, cfg),
	}
}

func (fx *fixture) process(t *testing.T, upd telegram.Update) {
	t.Helper()
	if err := fx.m.ProcessUpdate(context.Background(), upd); err != nil {
		t.Fatalf("process update %d: %v", upd.UpdateID, err)
	}
}

func (fx *fixture) userState(t *testing.T, userID int64) *ConversationState {
	t.Helper()
	var u TelegramUser
	if err := fx.db.Where("telegram_user_id = ?", fmt.Sprint(userID)).First(&u).Error; err != nil {
		t.Fatalf("user %d: %v", userID, err)
	}
	var st ConversationState
	if err := fx.db.Where("telegram_user_id = ?", u.ID).First(&st).Error; err != nil {
		t.Fatalf("state for user %d: %v", userID, err)
	}
	return &st
}
