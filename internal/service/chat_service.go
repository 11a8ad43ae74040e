package service

import (
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anatoly-dev/go-chatpay/pkg/chatstore"
	"github.com/anatoly-dev/go-chatpay/pkg/metrics"
	"github.com/anatoly-dev/go-chatpay/pkg/models"
	"github.com/anatoly-dev/go-chatpay/pkg/notify"
	"github.com/anatoly-dev/go-chatpay/pkg/presence"
	"github.com/anatoly-dev/go-chatpay/pkg/registry"
	"github.com/anatoly-dev/go-chatpay/pkg/websocket"
)

// ChatService drives the chat side: it owns the mapping from inbound
// chat events to store mutations and outbound fan-out.
type ChatService struct {
	store    *chatstore.Store
	presence *presence.Directory
	registry *registry.Registry
	router   *notify.Router
	logger   *zap.Logger
	metrics  *metrics.ChatMetrics
}

func NewChatService(
	store *chatstore.Store,
	directory *presence.Directory,
	chatRegistry *registry.Registry,
	router *notify.Router,
	logger *zap.Logger,
) *ChatService {
	service := &ChatService{
		store:    store,
		presence: directory,
		registry: chatRegistry,
		router:   router,
		logger:   logger,
	}

	// Presence transitions broadcast synchronously, in commit order.
	directory.SetOnChange(func(user *models.User, snapshot []*models.User) {
		router.RoutePresence(user, snapshot)
	})

	return service
}

func (s *ChatService) SetMetrics(metrics *metrics.ChatMetrics) {
	s.metrics = metrics
}

func (s *ChatService) HandleEvent(client websocket.Session, event *models.InboundEvent) {
	switch event.Type {
	case models.EventTypeAuth:
		s.handleAuth(client, event.Payload)
	case models.EventTypeMessage:
		s.handleMessage(client, event.Payload)
	case models.EventTypeTyping:
		s.handleTyping(client, event.Payload)
	case models.EventTypeRead:
		s.handleRead(client, event.Payload)
	default:
		s.logger.Warn("Unknown chat event type",
			zap.String("type", string(event.Type)),
			zap.String("clientID", client.SessionID()))
	}
}

func (s *ChatService) HandleDisconnect(client websocket.Session) {
	id := client.Identity()
	if id == "" {
		return
	}

	// A reconnect may have superseded this client already; only the
	// current connection going away flips the user offline.
	if s.registry.Unregister(id, client) {
		s.presence.SetOffline(id)
		s.logger.Info("User disconnected", zap.String("userID", id))
	}
}

func (s *ChatService) handleAuth(client websocket.Session, payload json.RawMessage) {
	var auth models.AuthPayload
	if err := json.Unmarshal(payload, &auth); err != nil || auth.Username == "" {
		s.sendError(client, "username is required")
		return
	}

	userID := auth.UserID
	if userID == "" {
		userID = uuid.New().String()
	}

	s.registry.Register(userID, client)
	client.SetIdentity(userID)

	client.Send(&models.Event{
		Type: models.EventTypeAuth,
		Payload: &models.AuthResult{
			Success:  true,
			UserID:   userID,
			Username: auth.Username,
		},
	})

	s.presence.SetOnline(userID, auth.Username)
	s.router.RouteHistory(userID, s.store.HistoryFor(userID))

	s.logger.Info("User authenticated",
		zap.String("userID", userID),
		zap.String("username", auth.Username))
}

func (s *ChatService) handleMessage(client websocket.Session, payload json.RawMessage) {
	from := client.Identity()
	if from == "" {
		s.sendError(client, "not authenticated")
		return
	}

	var send models.SendMessagePayload
	if err := json.Unmarshal(payload, &send); err != nil || send.To == "" {
		s.sendError(client, "recipient is required")
		return
	}

	msg := s.store.Append(from, send.To, send.Content, models.MessageKind(send.Kind))

	if s.metrics != nil {
		s.metrics.MessagesStored.Inc()
	}

	var fromUsername string
	if user, ok := s.presence.Get(from); ok {
		fromUsername = user.Username
	}

	if s.router.RouteMessage(msg, fromUsername) {
		s.store.MarkDelivered(msg.ID)

		if s.metrics != nil {
			s.metrics.MessagesDelivered.Inc()
		}
	}
}

func (s *ChatService) handleTyping(client websocket.Session, payload json.RawMessage) {
	from := client.Identity()
	if from == "" {
		return
	}

	var typing models.TypingPayload
	if err := json.Unmarshal(payload, &typing); err != nil || typing.To == "" {
		return
	}

	var username string
	if user, ok := s.presence.Get(from); ok {
		username = user.Username
	}

	if s.metrics != nil {
		s.metrics.TypingEvents.Inc()
	}

	s.router.RouteTyping(typing.To, &models.TypingNotice{
		From:     from,
		Username: username,
		Typing:   typing.Typing,
	})
}

func (s *ChatService) handleRead(client websocket.Session, payload json.RawMessage) {
	by := client.Identity()
	if by == "" {
		return
	}

	var read models.ReadPayload
	if err := json.Unmarshal(payload, &read); err != nil || read.From == "" {
		return
	}

	changed := s.store.MarkRead(read.MessageIDs)

	if s.metrics != nil {
		s.metrics.MessagesRead.Add(float64(len(changed)))
	}

	s.router.RouteReadMarks(read.From, &models.ReadNotice{
		MessageIDs: read.MessageIDs,
		By:         by,
	})
}

func (s *ChatService) sendError(client websocket.Session, message string) {
	client.Send(&models.Event{
		Type:    models.EventTypeError,
		Payload: &models.ErrorPayload{Message: message},
	})
}
