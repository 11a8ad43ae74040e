package chatstore

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anatoly-dev/go-chatpay/pkg/models"
)

// Store is an append-only, in-memory chat log. Messages are immutable
// after append except for the delivered/read flags, which only ever
// flip from false to true.
type Store struct {
	mu       sync.RWMutex
	messages []*models.ChatMessage
	byID     map[string]*models.ChatMessage
}

func New() *Store {
	return &Store{
		byID: make(map[string]*models.ChatMessage),
	}
}

func (s *Store) Append(from, to, content string, kind models.MessageKind) *models.ChatMessage {
	if kind == "" {
		kind = models.MessageKindText
	}

	msg := &models.ChatMessage{
		ID:        uuid.New().String(),
		From:      from,
		To:        to,
		Content:   content,
		Kind:      kind,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.byID[msg.ID] = msg
	s.mu.Unlock()

	return copyMessage(msg)
}

// MarkDelivered flips the delivered flag. Unknown ids are ignored.
func (s *Store) MarkDelivered(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg, ok := s.byID[messageID]; ok {
		msg.Delivered = true
	}
}

// MarkRead flips the read flag for every known id in the set and
// returns the ids that actually transitioned. Re-reading an already
// read message changes nothing.
func (s *Store) MarkRead(messageIDs []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []string
	for _, id := range messageIDs {
		msg, ok := s.byID[id]
		if !ok || msg.Read {
			continue
		}
		msg.Read = true
		changed = append(changed, id)
	}
	return changed
}

// HistoryFor returns every message sent by or addressed to userID,
// oldest first.
func (s *Store) HistoryFor(userID string) []*models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var history []*models.ChatMessage
	for _, msg := range s.messages {
		if msg.From == userID || msg.To == userID {
			history = append(history, copyMessage(msg))
		}
	}
	return history
}

func (s *Store) Get(messageID string) (*models.ChatMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.byID[messageID]
	if !ok {
		return nil, false
	}
	return copyMessage(msg), true
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func copyMessage(m *models.ChatMessage) *models.ChatMessage {
	c := *m
	return &c
}
