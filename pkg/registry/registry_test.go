package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatoly-dev/go-chatpay/pkg/models"
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

func TestRegister_SupersedesPreviousSink(t *testing.T) {
	r := New()
	first := &fakeSink{}
	second := &fakeSink{}

	assert.Nil(t, r.Register("u1", first))
	prev := r.Register("u1", second)
	assert.Same(t, first, prev)
	assert.Equal(t, 1, r.Count())

	r.Send("u1", &models.Event{Type: models.EventTypeStatus})
	assert.Empty(t, first.events)
	assert.Len(t, second.events, 1)
}

func TestUnregister_OnlyRemovesCurrentSink(t *testing.T) {
	r := New()
	old := &fakeSink{}
	current := &fakeSink{}

	r.Register("u1", old)
	r.Register("u1", current)

	// The stale connection's disconnect must not remove the new one.
	assert.False(t, r.Unregister("u1", old))
	assert.True(t, r.IsLive("u1"))

	assert.True(t, r.Unregister("u1", current))
	assert.False(t, r.IsLive("u1"))
}

func TestSend_SkippedWithoutLiveSink(t *testing.T) {
	r := New()

	assert.False(t, r.Send("nobody", &models.Event{Type: models.EventTypeMessage}))

	failing := &fakeSink{fail: true}
	r.Register("u1", failing)
	assert.False(t, r.Send("u1", &models.Event{Type: models.EventTypeMessage}))

	ok := &fakeSink{}
	r.Register("u2", ok)
	assert.True(t, r.Send("u2", &models.Event{Type: models.EventTypeMessage}))
}

func TestBroadcast_ExcludesNamedIdentity(t *testing.T) {
	r := New()
	alice := &fakeSink{}
	bob := &fakeSink{}
	carol := &fakeSink{}
	r.Register("alice", alice)
	r.Register("bob", bob)
	r.Register("carol", carol)

	r.Broadcast(&models.Event{Type: models.EventTypeUserList}, "bob")

	assert.Len(t, alice.events, 1)
	assert.Empty(t, bob.events)
	assert.Len(t, carol.events, 1)

	r.Broadcast(&models.Event{Type: models.EventTypeUserList}, "")
	require.Len(t, bob.events, 1)
}
