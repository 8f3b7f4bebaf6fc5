package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"delivery-service/internal/models"
)

// MemoryStore keeps all records in process memory. It implements every
// repository interface and backs the "memory" database type.
type MemoryStore struct {
	mu sync.Mutex

	nextNotificationID int64
	nextConversationID int64
	nextMessageID      int64

	notifications map[int64]models.Notification
	conversations map[int64]models.Conversation
	pairs         map[[2]string]int64
	unread        map[int64]map[string]int
	messages      map[int64]models.Message
	byConv        map[int64][]int64

	now func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets the clock that stamps created_at on writes.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		notifications: make(map[int64]models.Notification),
		conversations: make(map[int64]models.Conversation),
		pairs:         make(map[[2]string]int64),
		unread:        make(map[int64]map[string]int),
		messages:      make(map[int64]models.Message),
		byConv:        make(map[int64][]int64),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close implements io.Closer.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateNotification(_ context.Context, n models.Notification) (models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextNotificationID++
	n.ID = s.nextNotificationID
	n.Read = false
	// stamped under the lock so created_at order matches visibility order
	n.CreatedAt = s.now().UTC()
	s.notifications[n.ID] = n
	return n, nil
}

func (s *MemoryStore) GetNotification(_ context.Context, id int64) (models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return models.Notification{}, ErrNotificationNotFound
	}
	return n, nil
}

func (s *MemoryStore) recipientNotifications(recipientID string) []models.Notification {
	list := []models.Notification{}
	for _, n := range s.notifications {
		if n.RecipientID == recipientID {
			list = append(list, n)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list
}

func (s *MemoryStore) ListNotifications(_ context.Context, recipientID string, limit, offset int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.recipientNotifications(recipientID)
	reverseNotifications(list)
	return paginate(list, limit, offset), nil
}

func (s *MemoryStore) ListNotificationsSince(_ context.Context, recipientID string, since time.Time, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Notification{}
	for _, n := range s.recipientNotifications(recipientID) {
		if n.CreatedAt.After(since) {
			out = append(out, n)
		}
	}
	return paginate(out, limit, 0), nil
}

func (s *MemoryStore) MarkNotificationRead(_ context.Context, id int64, recipientID string) (models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return models.Notification{}, ErrNotificationNotFound
	}
	n.Read = true
	s.notifications[id] = n
	return n, nil
}

func (s *MemoryStore) MarkAllNotificationsRead(_ context.Context, recipientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	for id, n := range s.notifications {
		if n.RecipientID == recipientID && !n.Read {
			n.Read = true
			s.notifications[id] = n
			changed++
		}
	}
	return changed, nil
}

func (s *MemoryStore) CountUnreadNotifications(_ context.Context, recipientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.notifications {
		if n.RecipientID == recipientID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) GetOrCreateConversation(_ context.Context, userA, userB string, now time.Time) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user1, user2 := orderedPair(userA, userB)
	key := [2]string{user1, user2}
	if id, ok := s.pairs[key]; ok {
		return s.conversations[id], nil
	}
	s.nextConversationID++
	conv := models.Conversation{ID: s.nextConversationID, User1ID: user1, User2ID: user2, CreatedAt: now}
	s.conversations[conv.ID] = conv
	s.pairs[key] = conv.ID
	s.unread[conv.ID] = map[string]int{user1: 0, user2: 0}
	return conv, nil
}

func (s *MemoryStore) GetConversation(_ context.Context, id int64) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

func (s *MemoryStore) ListConversations(_ context.Context, userID string, limit, offset int) ([]models.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	convs := []models.Conversation{}
	for _, conv := range s.conversations {
		if conv.HasParticipant(userID) {
			convs = append(convs, conv)
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		a, b := convs[i].LastMessageAt, convs[j].LastMessageAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return convs[i].ID > convs[j].ID
	})

	out := []models.ConversationSummary{}
	for _, conv := range paginate(convs, limit, offset) {
		summary := models.ConversationSummary{
			ConversationID: conv.ID,
			PeerID:         conv.Peer(userID),
			UnreadCount:    s.unread[conv.ID][userID],
			LastMessageAt:  conv.LastMessageAt,
			CreatedAt:      conv.CreatedAt,
		}
		if conv.LastMessageID != nil {
			msg := s.messages[*conv.LastMessageID]
			summary.LastMessage = &msg
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *MemoryStore) UnreadByConversation(_ context.Context, userID string) ([]models.ConversationUnread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.ConversationUnread{}
	for convID, counts := range s.unread {
		if n, ok := counts[userID]; ok && n > 0 {
			out = append(out, models.ConversationUnread{ConversationID: convID, UnreadCount: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConversationID < out[j].ConversationID })
	return out, nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, msg models.Message, recipientID string) (models.Message, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts, ok := s.unread[msg.ConversationID]
	if !ok {
		return models.Message{}, 0, ErrConversationNotFound
	}
	if _, ok := counts[recipientID]; !ok {
		return models.Message{}, 0, ErrConversationNotFound
	}
	s.nextMessageID++
	msg.ID = s.nextMessageID
	msg.CreatedAt = s.now().UTC()
	msg.ReadAt = nil
	msg.Recalled = false
	s.messages[msg.ID] = msg
	s.byConv[msg.ConversationID] = append(s.byConv[msg.ConversationID], msg.ID)
	counts[recipientID]++

	conv := s.conversations[msg.ConversationID]
	id, at := msg.ID, msg.CreatedAt
	conv.LastMessageID = &id
	conv.LastMessageAt = &at
	s.conversations[conv.ID] = conv
	return msg, counts[recipientID], nil
}

func (s *MemoryStore) GetMessage(_ context.Context, id int64) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, conversationID int64, limit, offset int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.byConv[conversationID]
	out := make([]models.Message, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, s.messages[ids[i]])
	}
	return paginate(out, limit, offset), nil
}

func (s *MemoryStore) ListMessagesSince(_ context.Context, userID string, since time.Time, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Message{}
	for convID, conv := range s.conversations {
		if !conv.HasParticipant(userID) {
			continue
		}
		for _, id := range s.byConv[convID] {
			if msg := s.messages[id]; msg.CreatedAt.After(since) {
				out = append(out, msg)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, limit, 0), nil
}

func (s *MemoryStore) MarkConversationRead(_ context.Context, conversationID int64, readerID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts, ok := s.unread[conversationID]
	if !ok {
		return 0, ErrConversationNotFound
	}
	if _, ok := counts[readerID]; !ok {
		return 0, ErrConversationNotFound
	}
	var changed int64
	for _, id := range s.byConv[conversationID] {
		msg := s.messages[id]
		if msg.SenderID != readerID && msg.ReadAt == nil {
			readAt := at
			msg.ReadAt = &readAt
			s.messages[id] = msg
			changed++
		}
	}
	counts[readerID] = 0
	return changed, nil
}

func (s *MemoryStore) RecallMessage(_ context.Context, id int64, senderID string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok || msg.SenderID != senderID {
		return models.Message{}, ErrMessageNotFound
	}
	msg.Recalled = true
	s.messages[id] = msg
	return msg, nil
}

func reverseNotifications(list []models.Notification) {
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
}

func paginate[T any](list []T, limit, offset int) []T {
	if offset < 0 || offset >= len(list) {
		return []T{}
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

var (
	_ NotificationRepository = (*MemoryStore)(nil)
	_ ConversationRepository = (*MemoryStore)(nil)
	_ MessageRepository      = (*MemoryStore)(nil)
	_ NotificationRepository = (*NotificationRepo)(nil)
	_ ConversationRepository = (*ConversationRepo)(nil)
	_ MessageRepository      = (*MessageRepo)(nil)
)
