package bridge

import "time"

// Conversation states. A user has exactly one state record; it is reset to
// idle, never deleted.
const (
	StateIdle             = "idle"
	StateAwaitingEmail    = "awaiting_email"
	StateCollectingFields = "collecting_fields"
)

type TelegramUser struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	TelegramUserID string `gorm:"type:varchar(32);uniqueIndex;not null"`
	Username       string `gorm:"type:varchar(64)"`
	FullName       string `gorm:"type:varchar(128);not null"`
	IsGuest        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (TelegramUser) TableName() string { return "telegram_users" }

type TelegramChat struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	ChatID    string `gorm:"type:varchar(32);uniqueIndex;not null"`
	Title     string `gorm:"type:varchar(255)"`
	Kind      string `gorm:"type:varchar(16);not null;default:'private'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TelegramChat) TableName() string { return "telegram_chats" }

type ChatMember struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	TelegramChatID uint64 `gorm:"not null;index:uniq_chat_member,unique,priority:1"`
	TelegramUserID uint64 `gorm:"not null;index:uniq_chat_member,unique,priority:2"`
	CreatedAt      time.Time
}

func (ChatMember) TableName() string { return "telegram_chat_members" }

type ConversationState struct {
	ID                uint64 `gorm:"primaryKey;autoIncrement"`
	TelegramUserID    uint64 `gorm:"uniqueIndex;not null"`
	TelegramChatID    uint64 `gorm:"not null"`
	State             string `gorm:"type:varchar(24);not null;default:'idle'"`
	Email             string `gorm:"type:varchar(128)"`
	CollectedData     string `gorm:"type:text"`
	CurrentFieldIndex int    `gorm:"not null;default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (ConversationState) TableName() string { return "conversation_states" }

// TicketMapping links a created ticket to the user and chat that originated
// it. The relay forwards agent replies only while IsOpen is set.
type TicketMapping struct {
	ID             string `gorm:"primaryKey;size:26"` // ULID
	TicketID       string `gorm:"type:varchar(64);index;not null"`
	TelegramUserID uint64 `gorm:"index;not null"`
	TelegramChatID uint64 `gorm:"not null"`
	IsOpen         bool   `gorm:"index;not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (TicketMapping) TableName() string { return "ticket_mappings" }

// BridgeSetting is a singleton row (ID 1) holding the poll cursor. The
// cursor column is read and written on its own so unrelated settings never
// get rewritten mid-cycle.
type BridgeSetting struct {
	ID           uint64 `gorm:"primaryKey"`
	LastUpdateID int64  `gorm:"not null;default:0"`
	UpdatedAt    time.Time
}

func (BridgeSetting) TableName() string { return "bridge_settings" }
