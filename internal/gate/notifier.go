package gate

import (
	"context"
	"strings"

	"github.com/telegate/telegate/internal/request"
	"github.com/telegate/telegate/internal/telegram"
)

// Compile-time interface guard.
var _ Notifier = (*TelegramNotifier)(nil)

// TelegramNotifier delivers approval prompts as Telegram messages with an
// allow/deny inline keyboard. Each button carries the request's correlation
// token; the responder daemon maps taps back to the store.
type TelegramNotifier struct {
	client *telegram.Client
	chatID int64
}

// NewTelegramNotifier creates a notifier posting to the given chat.
func NewTelegramNotifier(client *telegram.Client, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{client: client, chatID: chatID}
}

// Notify implements Notifier. A transport-level acknowledgement from the
// Bot API counts as delivered; whether a human ever reads it is not this
// layer's concern.
func (n *TelegramNotifier) Notify(ctx context.Context, req request.Request) error {
	// The ID is <session prefix>-<unix millis>; everything before the last
	// hyphen is the display session, even when the session itself contains
	// hyphens.
	session := req.ID
	if i := strings.LastIndex(session, "-"); i >= 0 {
		session = session[:i]
	}

	_, err := n.client.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:      n.chatID,
		Text:        telegram.FormatApproval(req.Tool, req.Input, session),
		ParseMode:   "HTML",
		ReplyMarkup: telegram.ApprovalKeyboard(req.ID),
	})
	return err
}
