package telegram

import "github.com/go-telegram/bot/models"

// Bot API types, shared with github.com/go-telegram/bot.
type (
	Update                   = models.Update
	Message                  = models.Message
	User                     = models.User
	Chat                     = models.Chat
	PhotoSize                = models.PhotoSize
	CallbackQuery            = models.CallbackQuery
	MaybeInaccessibleMessage = models.MaybeInaccessibleMessage
	InlineKeyboardButton     = models.InlineKeyboardButton
	InlineKeyboardMarkup     = models.InlineKeyboardMarkup
	ChatAction               = models.ChatAction
)

// ParseModeMarkdown is Telegram's legacy Markdown.
const ParseModeMarkdown = models.ParseModeMarkdownV1

// ChatActionTyping shows "typing…" in the chat.
const ChatActionTyping = models.ChatActionTyping

// MessageOptions are optional fields for SendMessage and SendPhoto.
type MessageOptions struct {
	ParseMode   models.ParseMode
	ReplyMarkup *InlineKeyboardMarkup
}

// LargestPhoto returns the highest resolution rendition, or false when the
// message carries no photo.
func LargestPhoto(m *Message) (PhotoSize, bool) {
	if m == nil || len(m.Photo) == 0 {
		return PhotoSize{}, false
	}
	best := m.Photo[0]
	for _, p := range m.Photo[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best, true
}

// CallbackChatID is the chat a button press came from: the chat of the
// message carrying the keyboard, or the presser's private chat when that
// message is unknown.
func CallbackChatID(cb *CallbackQuery) int64 {
	switch {
	case cb.Message.Message != nil:
		return cb.Message.Message.Chat.ID
	case cb.Message.InaccessibleMessage != nil:
		return cb.Message.InaccessibleMessage.Chat.ID
	}
	return cb.From.ID
}
