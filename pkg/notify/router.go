package notify

import (
	"go.uber.org/zap"

	"github.com/anatoly-dev/go-chatpay/pkg/models"
	"github.com/anatoly-dev/go-chatpay/pkg/registry"
)

// Router owns the fan-out rules: given a committed state change it
// decides which connections hear about it. It holds no state of its
// own beyond references to the registries.
type Router struct {
	chat   *registry.Registry
	wallet *registry.Registry
	logger *zap.Logger
}

func NewRouter(chat, wallet *registry.Registry, logger *zap.Logger) *Router {
	return &Router{
		chat:   chat,
		wallet: wallet,
		logger: logger,
	}
}

type outboundMessage struct {
	*models.ChatMessage
	FromUsername string `json:"fromUsername,omitempty"`
	Sent         bool   `json:"sent,omitempty"`
}

// RouteMessage pushes a freshly stored message to the recipient (when
// live) and always echoes it back to the sender. Returns whether the
// recipient's connection took the message.
func (r *Router) RouteMessage(msg *models.ChatMessage, fromUsername string) bool {
	delivered := r.chat.Send(msg.To, &models.Event{
		Type: models.EventTypeMessage,
		Payload: &outboundMessage{
			ChatMessage:  msg,
			FromUsername: fromUsername,
		},
	})

	if !delivered {
		r.logger.Debug("recipient not reachable, message stored undelivered",
			zap.String("messageID", msg.ID),
			zap.String("to", msg.To))
	}

	echo := *msg
	echo.Delivered = delivered
	r.chat.Send(msg.From, &models.Event{
		Type:    models.EventTypeMessage,
		Payload: &outboundMessage{ChatMessage: &echo, Sent: true},
	})

	if delivered {
		r.chat.Send(msg.From, &models.Event{
			Type:    models.EventTypeDelivered,
			Payload: &models.DeliveredNotice{MessageID: msg.ID, To: msg.To},
		})
	}

	return delivered
}

// RouteTyping forwards a typing indicator to the addressed user only.
// Unknown or offline targets are a no-op.
func (r *Router) RouteTyping(to string, notice *models.TypingNotice) {
	r.chat.Send(to, &models.Event{
		Type:    models.EventTypeTyping,
		Payload: notice,
	})
}

// RouteReadMarks tells the original sender which messages were read.
func (r *Router) RouteReadMarks(sender string, notice *models.ReadNotice) {
	r.chat.Send(sender, &models.Event{
		Type:    models.EventTypeRead,
		Payload: notice,
	})
}

// RoutePresence broadcasts the full directory snapshot to everyone and
// a status notice to everyone except the subject itself.
func (r *Router) RoutePresence(subject *models.User, snapshot []*models.User) {
	r.chat.Broadcast(&models.Event{
		Type:    models.EventTypeUserList,
		Payload: &models.UserListPayload{Users: snapshot},
	}, "")

	r.chat.Broadcast(&models.Event{
		Type: models.EventTypeStatus,
		Payload: &models.StatusNotice{
			UserID:   subject.ID,
			Username: subject.Username,
			Online:   subject.Online,
			LastSeen: subject.LastSeen,
		},
	}, subject.ID)
}

// RouteHistory hands a user its full message history, oldest first.
func (r *Router) RouteHistory(userID string, messages []*models.ChatMessage) {
	r.chat.Send(userID, &models.Event{
		Type:    models.EventTypeHistory,
		Payload: &models.HistoryPayload{Messages: messages},
	})
}

// RouteBalance notifies the wallet channel of the affected user.
func (r *Router) RouteBalance(update *models.BalanceUpdate) {
	if !r.wallet.Send(update.UserID, &models.Event{
		Type:    models.EventTypeBalanceUpdated,
		Payload: update,
	}) {
		r.logger.Debug("no wallet channel for balance update",
			zap.String("userID", update.UserID))
	}
}

// RoutePaymentConfirmation notifies the till that its payment went
// through.
func (r *Router) RoutePaymentConfirmation(kassaID string, confirmation *models.PaymentConfirmation) {
	if !r.wallet.Send(kassaID, &models.Event{
		Type:    models.EventTypePaymentSuccessful,
		Payload: confirmation,
	}) {
		r.logger.Debug("no wallet channel for payment confirmation",
			zap.String("kassaID", kassaID))
	}
}
