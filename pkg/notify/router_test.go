package notify

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anatoly-dev/go-chatpay/pkg/models"
	"github.com/anatoly-dev/go-chatpay/pkg/registry"
)

type fakeSink struct {
	events []*models.Event
	fail   bool
}

func (f *fakeSink) Send(event *models.Event) error {
	if f.fail {
		return errors.New("sink gone")
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeSink) byType(eventType models.EventType) []*models.Event {
	var matched []*models.Event
	for _, ev := range f.events {
		if ev.Type == eventType {
			matched = append(matched, ev)
		}
	}
	return matched
}

func newTestRouter() (*Router, *registry.Registry, *registry.Registry) {
	chat := registry.New()
	wallet := registry.New()
	return NewRouter(chat, wallet, zap.NewNop()), chat, wallet
}

func TestRouteMessage_OnlineRecipient(t *testing.T) {
	router, chat, _ := newTestRouter()
	alice := &fakeSink{}
	bob := &fakeSink{}
	chat.Register("alice", alice)
	chat.Register("bob", bob)

	msg := &models.ChatMessage{ID: "m1", From: "alice", To: "bob", Content: "hi", CreatedAt: time.Now()}
	delivered := router.RouteMessage(msg, "Alice")
	assert.True(t, delivered)

	incoming := bob.byType(models.EventTypeMessage)
	require.Len(t, incoming, 1)
	payload := incoming[0].Payload.(*outboundMessage)
	assert.Equal(t, "m1", payload.ID)
	assert.Equal(t, "Alice", payload.FromUsername)
	assert.False(t, payload.Sent)

	echoes := alice.byType(models.EventTypeMessage)
	require.Len(t, echoes, 1)
	echo := echoes[0].Payload.(*outboundMessage)
	assert.True(t, echo.Sent)
	assert.True(t, echo.Delivered)

	acks := alice.byType(models.EventTypeDelivered)
	require.Len(t, acks, 1)
	ack := acks[0].Payload.(*models.DeliveredNotice)
	assert.Equal(t, "m1", ack.MessageID)
	assert.Equal(t, "bob", ack.To)
}

func TestRouteMessage_OfflineRecipientBestEffort(t *testing.T) {
	router, chat, _ := newTestRouter()
	alice := &fakeSink{}
	chat.Register("alice", alice)

	msg := &models.ChatMessage{ID: "m1", From: "alice", To: "bob", Content: "hi", CreatedAt: time.Now()}
	delivered := router.RouteMessage(msg, "Alice")
	assert.False(t, delivered)

	// The sender still gets the echo, marked sent but undelivered.
	echoes := alice.byType(models.EventTypeMessage)
	require.Len(t, echoes, 1)
	echo := echoes[0].Payload.(*outboundMessage)
	assert.True(t, echo.Sent)
	assert.False(t, echo.Delivered)

	// No delivery acknowledgment fires.
	assert.Empty(t, alice.byType(models.EventTypeDelivered))
}

func TestRouteTyping_OfflineTargetIsNoop(t *testing.T) {
	router, chat, _ := newTestRouter()
	bob := &fakeSink{}
	chat.Register("bob", bob)

	router.RouteTyping("bob", &models.TypingNotice{From: "alice", Username: "Alice", Typing: true})
	require.Len(t, bob.events, 1)

	// Nobody else is registered; this must not panic or leak anywhere.
	router.RouteTyping("nobody", &models.TypingNotice{From: "alice", Typing: true})
	assert.Len(t, bob.events, 1)
}

func TestRouteReadMarks_GoesToOriginalSender(t *testing.T) {
	router, chat, _ := newTestRouter()
	alice := &fakeSink{}
	bob := &fakeSink{}
	chat.Register("alice", alice)
	chat.Register("bob", bob)

	router.RouteReadMarks("alice", &models.ReadNotice{MessageIDs: []string{"m1", "m2"}, By: "bob"})

	notices := alice.byType(models.EventTypeRead)
	require.Len(t, notices, 1)
	notice := notices[0].Payload.(*models.ReadNotice)
	assert.Equal(t, []string{"m1", "m2"}, notice.MessageIDs)
	assert.Equal(t, "bob", notice.By)
	assert.Empty(t, bob.events)
}

func TestRoutePresence_StatusSkipsSubject(t *testing.T) {
	router, chat, _ := newTestRouter()
	alice := &fakeSink{}
	bob := &fakeSink{}
	chat.Register("alice", alice)
	chat.Register("bob", bob)

	subject := &models.User{ID: "alice", Username: "Alice", Online: true, LastSeen: time.Now()}
	snapshot := []*models.User{subject}
	router.RoutePresence(subject, snapshot)

	// Everyone gets the user list, including the subject.
	require.Len(t, alice.byType(models.EventTypeUserList), 1)
	require.Len(t, bob.byType(models.EventTypeUserList), 1)

	// The status notice skips the subject's own connection.
	assert.Empty(t, alice.byType(models.EventTypeStatus))
	statuses := bob.byType(models.EventTypeStatus)
	require.Len(t, statuses, 1)
	status := statuses[0].Payload.(*models.StatusNotice)
	assert.Equal(t, "alice", status.UserID)
	assert.True(t, status.Online)
}

func TestRouteBalance_OnlyAffectedWalletChannel(t *testing.T) {
	router, _, wallet := newTestRouter()
	alice := &fakeSink{}
	bob := &fakeSink{}
	wallet.Register("alice", alice)
	wallet.Register("bob", bob)

	router.RouteBalance(&models.BalanceUpdate{UserID: "alice", Balance: 500})

	updates := alice.byType(models.EventTypeBalanceUpdated)
	require.Len(t, updates, 1)
	update := updates[0].Payload.(*models.BalanceUpdate)
	assert.Equal(t, int64(500), update.Balance)
	assert.Empty(t, bob.events)
}

func TestRoutePaymentConfirmation_ToKassaChannel(t *testing.T) {
	router, _, wallet := newTestRouter()
	kassa := &fakeSink{}
	wallet.Register("kassa-1", kassa)

	router.RoutePaymentConfirmation("kassa-1", &models.PaymentConfirmation{
		Status:        "success",
		Amount:        250,
		UserID:        "alice",
		TransactionID: "tx-1",
	})

	confirmations := kassa.byType(models.EventTypePaymentSuccessful)
	require.Len(t, confirmations, 1)
	confirmation := confirmations[0].Payload.(*models.PaymentConfirmation)
	assert.Equal(t, "success", confirmation.Status)
	assert.Equal(t, int64(250), confirmation.Amount)
}
