package store

import (
	"slices"
	"sync"
	"time"

	"chatlink/internal/bus"
)

// Store is the single authoritative in-memory model of chats, the active
// chat's message list, typing state, and notifications. All mutation goes
// through the action methods below; reads return copies. Every applied
// mutation is published on the bus so the archive, the notifier, and UI
// surfaces observe one ordered stream.
//
// Message ordering within the active chat is insertion order as received.
// The store does not re-sort by timestamp, so out-of-order delivery from the
// transport is reflected as-is.
type Store struct {
	mu            sync.RWMutex
	bus           *bus.Bus
	chats         []*Chat
	chatIdx       map[string]*Chat
	activeID      string
	messages      []*Message
	typing        map[string]map[string]struct{}
	notifications []*Notification
	unreadTotal   int
}

// TypingChange is the payload for typing.changed events.
type TypingChange struct {
	ChatID string
	Users  []string
}

// New creates an empty store publishing to the given bus.
func New(b *bus.Bus) *Store {
	return &Store{
		bus:     b,
		chatIdx: make(map[string]*Chat),
		typing:  make(map[string]map[string]struct{}),
	}
}

func (s *Store) publish(kind string, payload any) {
	if s.bus != nil {
		s.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
	}
}

// SetChats replaces the chat collection and recomputes the aggregate unread
// count as the sum of each chat's unread counter.
func (s *Store) SetChats(chats []Chat) {
	s.mu.Lock()
	s.chats = make([]*Chat, 0, len(chats))
	s.chatIdx = make(map[string]*Chat, len(chats))
	for i := range chats {
		c := chats[i]
		s.chats = append(s.chats, &c)
		s.chatIdx[c.ID] = &c
	}
	s.recomputeUnreadLocked()
	snapshot := s.chatsLocked()
	s.mu.Unlock()

	s.publish(bus.KindChatsReplaced, snapshot)
}

// AddChat prepends a chat to the collection. No-op if the id is already
// present.
func (s *Store) AddChat(c Chat) bool {
	s.mu.Lock()
	if _, ok := s.chatIdx[c.ID]; ok {
		s.mu.Unlock()
		return false
	}
	entry := c
	s.chats = append([]*Chat{&entry}, s.chats...)
	s.chatIdx[c.ID] = &entry
	s.recomputeUnreadLocked()
	s.mu.Unlock()

	s.publish(bus.KindChatAdded, c)
	return true
}

// Chats returns a copy of the chat collection in order.
func (s *Store) Chats() []Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatsLocked()
}

func (s *Store) chatsLocked() []Chat {
	out := make([]Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, *c)
	}
	return out
}

// Chat returns a copy of the chat with the given id.
func (s *Store) Chat(id string) (Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chatIdx[id]
	if !ok {
		return Chat{}, false
	}
	return *c, true
}

// SelectChat sets the active chat, clears the local message list (to be
// repopulated by a message fetch), and resets that chat's unread counter.
// An empty id deselects.
func (s *Store) SelectChat(chatID string) {
	s.mu.Lock()
	s.activeID = chatID
	s.messages = nil
	if c, ok := s.chatIdx[chatID]; ok {
		c.Unread = 0
	}
	s.recomputeUnreadLocked()
	s.mu.Unlock()

	s.publish(bus.KindChatSelected, chatID)
}

// ActiveChatID returns the id of the currently selected chat, or empty.
func (s *Store) ActiveChatID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// SetMessages replaces the active chat's message list. Ignored if chatID is
// no longer the active chat (a stale fetch completing after a re-select).
func (s *Store) SetMessages(chatID string, msgs []Message) {
	s.mu.Lock()
	if chatID != s.activeID {
		s.mu.Unlock()
		return
	}
	s.messages = make([]*Message, 0, len(msgs))
	for i := range msgs {
		m := msgs[i]
		s.messages = append(s.messages, &m)
	}
	s.mu.Unlock()
}

// Messages returns a copy of the active chat's message list.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, *m)
	}
	return out
}

// AddMessage appends a message. Idempotent: if an entry with the same server
// id or the same temp id already exists, nothing changes and false is
// returned. The message list is only touched when the message belongs to the
// active chat; the owning chat's last message is always updated, and its
// unread counter is incremented only when the chat is not active.
func (s *Store) AddMessage(m Message) bool {
	s.mu.Lock()
	if s.findLocked(m.ID, m.TempID) != -1 {
		s.mu.Unlock()
		return false
	}

	chat, chatKnown := s.chatIdx[m.ChatID]
	active := m.ChatID == s.activeID && s.activeID != ""

	// Duplicate guard for chats whose message list is not loaded: a repeated
	// delivery of the chat's latest message must not bump unread twice.
	if !active && chatKnown && chat.LastMessage != nil && sameMessage(chat.LastMessage, &m) {
		s.mu.Unlock()
		return false
	}
	if !active && !chatKnown {
		s.mu.Unlock()
		return false
	}

	entry := m
	if active {
		s.messages = append(s.messages, &entry)
	}
	if chatKnown {
		last := entry
		chat.LastMessage = &last
		chat.UpdatedAt = m.CreatedAt
		if !active {
			chat.Unread++
			s.unreadTotal++
		}
	}
	s.mu.Unlock()

	s.publish(bus.KindMessageAdded, m)
	return true
}

// UpdateMessage replaces a message in place, matching by temp id first and
// server id second. Used to reconcile a provisional message with its
// server-confirmed counterpart. No-op if no entry matches.
func (s *Store) UpdateMessage(m Message) bool {
	s.mu.Lock()
	i := s.findLocked(m.ID, m.TempID)
	if i == -1 {
		s.mu.Unlock()
		return false
	}
	prev := s.messages[i]
	entry := m
	if entry.ID != "" {
		// Once the server id is assigned the temp id has served its purpose.
		entry.TempID = ""
	}
	// Delivery and read markers only ever accumulate; a replacement carrying
	// fewer of them (a REST confirmation racing a delivery ack) must not lose
	// the ones already recorded.
	entry.DeliveredTo = mergeUsers(prev.DeliveredTo, m.DeliveredTo)
	entry.ReadBy = mergeUsers(prev.ReadBy, m.ReadBy)
	s.messages[i] = &entry
	if chat, ok := s.chatIdx[prev.ChatID]; ok && chat.LastMessage != nil && sameMessage(chat.LastMessage, prev) {
		last := entry
		chat.LastMessage = &last
	}
	s.mu.Unlock()

	s.publish(bus.KindMessageUpdated, entry)
	return true
}

// ConfirmMessage assigns the server id to the provisional entry matching
// tempID, clearing the temp id and recording deliveredTo. Content is left
// untouched. Idempotent: confirming an already-confirmed entry (matched by
// server id) only merges deliveredTo. Returns false when neither id matches.
func (s *Store) ConfirmMessage(tempID, serverID string, deliveredTo []string) bool {
	s.mu.Lock()
	i := s.findLocked(serverID, tempID)
	if i == -1 {
		s.mu.Unlock()
		return false
	}
	m := s.messages[i]
	prev := *m
	if serverID != "" {
		m.ID = serverID
		m.TempID = ""
	}
	m.DeliveredTo = mergeUsers(m.DeliveredTo, deliveredTo)
	if chat, ok := s.chatIdx[m.ChatID]; ok && chat.LastMessage != nil && sameMessage(chat.LastMessage, &prev) {
		last := *m
		chat.LastMessage = &last
	}
	snapshot := *m
	s.mu.Unlock()

	s.publish(bus.KindMessageUpdated, snapshot)
	return true
}

// DeleteMessage removes a message by server id or temp id. No-op if absent.
func (s *Store) DeleteMessage(id string) bool {
	s.mu.Lock()
	i := s.findLocked(id, id)
	if i == -1 {
		s.mu.Unlock()
		return false
	}
	removed := *s.messages[i]
	s.messages = append(s.messages[:i], s.messages[i+1:]...)
	s.mu.Unlock()

	s.publish(bus.KindMessageDeleted, removed)
	return true
}

// findLocked returns the index of the message matching the given server id
// or temp id, or -1. Empty ids never match.
func (s *Store) findLocked(id, tempID string) int {
	for i, m := range s.messages {
		if id != "" && m.ID == id {
			return i
		}
		if tempID != "" && m.TempID == tempID {
			return i
		}
	}
	return -1
}

// mergeUsers unions two user id lists, keeping base order and dropping
// duplicates from extra.
func mergeUsers(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}
	out := slices.Clone(base)
	for _, u := range extra {
		if !slices.Contains(out, u) {
			out = append(out, u)
		}
	}
	return out
}

func sameMessage(a, b *Message) bool {
	if a.ID != "" && a.ID == b.ID {
		return true
	}
	return a.TempID != "" && a.TempID == b.TempID
}

// MarkChatRead resets a chat's unread counter to zero.
func (s *Store) MarkChatRead(chatID string) {
	s.mu.Lock()
	if c, ok := s.chatIdx[chatID]; ok {
		c.Unread = 0
	}
	s.recomputeUnreadLocked()
	s.mu.Unlock()

	s.publish(bus.KindChatRead, chatID)
}

// MarkMessagesRead appends userID to the ReadBy set of the given messages in
// the active list.
func (s *Store) MarkMessagesRead(chatID string, messageIDs []string, userID string) {
	s.mu.Lock()
	var updated []Message
	if chatID == s.activeID {
		for _, m := range s.messages {
			if slices.Contains(messageIDs, m.ID) && !slices.Contains(m.ReadBy, userID) {
				m.ReadBy = append(m.ReadBy, userID)
				updated = append(updated, *m)
			}
		}
	}
	s.mu.Unlock()

	for _, m := range updated {
		s.publish(bus.KindMessageUpdated, m)
	}
}

// SetTyping adds or removes userID from the chat's typing set.
func (s *Store) SetTyping(chatID, userID string, isTyping bool) {
	s.mu.Lock()
	set := s.typing[chatID]
	changed := false
	if isTyping {
		if set == nil {
			set = make(map[string]struct{})
			s.typing[chatID] = set
		}
		if _, ok := set[userID]; !ok {
			set[userID] = struct{}{}
			changed = true
		}
	} else if set != nil {
		if _, ok := set[userID]; ok {
			delete(set, userID)
			changed = true
		}
		if len(set) == 0 {
			delete(s.typing, chatID)
		}
	}
	var users []string
	if changed {
		users = s.typingUsersLocked(chatID)
	}
	s.mu.Unlock()

	if changed {
		s.publish(bus.KindTypingChanged, TypingChange{ChatID: chatID, Users: users})
	}
}

// TypingUsers returns the sorted set of users currently typing in a chat.
func (s *Store) TypingUsers(chatID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typingUsersLocked(chatID)
}

func (s *Store) typingUsersLocked(chatID string) []string {
	set := s.typing[chatID]
	if len(set) == 0 {
		return nil
	}
	users := make([]string, 0, len(set))
	for u := range set {
		users = append(users, u)
	}
	slices.Sort(users)
	return users
}

// SetNotifications replaces the notification collection.
func (s *Store) SetNotifications(ns []Notification) {
	s.mu.Lock()
	s.notifications = make([]*Notification, 0, len(ns))
	for i := range ns {
		n := ns[i]
		s.notifications = append(s.notifications, &n)
	}
	s.mu.Unlock()
}

// AddNotification prepends a notification.
func (s *Store) AddNotification(n Notification) {
	s.mu.Lock()
	s.notifications = append([]*Notification{&n}, s.notifications...)
	s.mu.Unlock()
}

// Notifications returns a copy of the notification collection.
func (s *Store) Notifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, *n)
	}
	return out
}

// UnreadTotal returns the aggregate unread count across all chats.
func (s *Store) UnreadTotal() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unreadTotal
}

func (s *Store) recomputeUnreadLocked() {
	total := 0
	for _, c := range s.chats {
		total += c.Unread
	}
	s.unreadTotal = total
}
