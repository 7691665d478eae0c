package bridge

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/telegram"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// GetOrCreateUser resolves a Telegram actor to its persistent record,
// creating it on first sight.
func (r *Repo) GetOrCreateUser(ctx context.Context, from *telegram.User) (*TelegramUser, error) {
	extID := strconv.FormatInt(from.ID, 10)

	var u TelegramUser
	err := r.db.WithContext(ctx).Where("telegram_user_id = ?", extID).First(&u).Error
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fullName := strings.TrimSpace(from.FirstName + " " + from.LastName)
	if fullName == "" {
		fullName = "Unknown"
	}

	u = TelegramUser{
		TelegramUserID: extID,
		Username:       from.Username,
		FullName:       fullName,
		IsGuest:        true,
	}
	if err := r.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) GetOrCreateChat(ctx context.Context, chat *telegram.Chat, user *TelegramUser) (*TelegramChat, error) {
	extID := strconv.FormatInt(chat.ID, 10)

	var c TelegramChat
	err := r.db.WithContext(ctx).Where("chat_id = ?", extID).First(&c).Error
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	title := chat.Title
	if title == "" {
		title = chat.Username
	}
	if title == "" {
		title = chat.FirstName
	}
	if title == "" {
		title = extID
	}

	kind := chat.Type
	if kind == "" {
		kind = "private"
	}

	c = TelegramChat{
		ChatID: extID,
		Title:  title,
		Kind:   kind,
	}
	if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, err
	}
	if user != nil {
		member := ChatMember{TelegramChatID: c.ID, TelegramUserID: user.ID}
		if err := r.db.WithContext(ctx).Create(&member).Error; err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func (r *Repo) ChatByID(ctx context.Context, id uint64) (*TelegramChat, error) {
	var c TelegramChat
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOrCreateState loads the single conversation state for a user, creating
// it in idle when the user has never been seen before.
func (r *Repo) GetOrCreateState(ctx context.Context, userID, chatID uint64) (*ConversationState, error) {
	var st ConversationState
	err := r.db.WithContext(ctx).Where("telegram_user_id = ?", userID).First(&st).Error
	if err == nil {
		return &st, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	st = ConversationState{
		TelegramUserID: userID,
		TelegramChatID: chatID,
		State:          StateIdle,
		CollectedData:  "{}",
	}
	if err := r.db.WithContext(ctx).Create(&st).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *Repo) SaveState(ctx context.Context, st *ConversationState) error {
	return r.db.WithContext(ctx).Save(st).Error
}

// ResetState puts a state back to idle and discards any partially collected
// data. The stored email survives resets.
func (r *Repo) ResetState(ctx context.Context, st *ConversationState) error {
	st.State = StateIdle
	st.CollectedData = "{}"
	st.CurrentFieldIndex = 0
	return r.SaveState(ctx, st)
}

func (r *Repo) CreateMapping(ctx context.Context, m *TicketMapping) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repo) OpenMappingByTicket(ctx context.Context, ticketID string) (*TicketMapping, error) {
	var m TicketMapping
	err := r.db.WithContext(ctx).
		Where("ticket_id = ? AND is_open = ?", ticketID, true).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repo) OpenMappingsByUser(ctx context.Context, userID uint64) ([]TicketMapping, error) {
	var ms []TicketMapping
	err := r.db.WithContext(ctx).
		Where("telegram_user_id = ? AND is_open = ?", userID, true).
		Order("created_at ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return ms, nil
}

// LatestOpenMappingByUser returns the most recent open mapping, or
// gorm.ErrRecordNotFound when the user has none.
func (r *Repo) LatestOpenMappingByUser(ctx context.Context, userID uint64) (*TicketMapping, error) {
	var m TicketMapping
	err := r.db.WithContext(ctx).
		Where("telegram_user_id = ? AND is_open = ?", userID, true).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CloseMapping flips a mapping closed. The conditional update makes the
// operation idempotent: the second close of the same mapping reports false.
func (r *Repo) CloseMapping(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&TicketMapping{}).
		Where("id = ? AND is_open = ?", id, true).
		Update("is_open", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// LastUpdateID reads the poll cursor, creating the singleton row on first
// use. Read fresh each poll iteration to tolerate external changes and
// process restarts.
func (r *Repo) LastUpdateID(ctx context.Context) (int64, error) {
	var s BridgeSetting
	err := r.db.WithContext(ctx).First(&s, 1).Error
	if err == nil {
		return s.LastUpdateID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	s = BridgeSetting{ID: 1}
	if err := r.db.WithContext(ctx).Create(&s).Error; err != nil {
		return 0, err
	}
	return 0, nil
}

// SetLastUpdateID advances the cursor with a single-column write.
func (r *Repo) SetLastUpdateID(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&BridgeSetting{}).
		Where("id = ?", 1).
		Update("last_update_id", id).Error
}
