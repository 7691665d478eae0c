package telegram

// Update is one unit from the Bot API getUpdates long poll. Exactly one of
// Message or CallbackQuery is set for the updates this bridge handles.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      *Chat  `json:"chat"`
	Text      string `json:"text"`
}

// CallbackQuery is an inline-keyboard button press. It carries opaque Data
// instead of text and must be acknowledged to clear the client spinner.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from"`
	Message *Message `json:"message"`
	Data    string   `json:"data"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

type Chat struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

type InlineKeyboard struct {
	InlineKeyboard [][]InlineButton `json:"inline_keyboard"`
}

type InlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// SingleColumn builds a one-button-per-row keyboard, the layout used for
// menus and select-field options.
func SingleColumn(buttons ...InlineButton) *InlineKeyboard {
	kb := &InlineKeyboard{}
	for _, b := range buttons {
		kb.InlineKeyboard = append(kb.InlineKeyboard, []InlineButton{b})
	}
	return kb
}
