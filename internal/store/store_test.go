package store

import (
	"testing"

	"chatlink/internal/bus"
)

func seeded(b *bus.Bus) *Store {
	s := New(b)
	s.SetChats([]Chat{
		{ID: "c1", Kind: ChatIndividual},
		{ID: "c2", Kind: ChatGroup, Name: "team"},
	})
	return s
}

func TestAddMessageIdempotentByServerID(t *testing.T) {
	s := seeded(nil)
	s.SelectChat("c1")

	m := Message{ID: "m1", ChatID: "c1", Content: "hello"}
	if !s.AddMessage(m) {
		t.Fatal("first AddMessage returned false")
	}
	if s.AddMessage(m) {
		t.Error("second AddMessage with same server id should be a no-op")
	}
	if got := len(s.Messages()); got != 1 {
		t.Errorf("message count = %d, want 1", got)
	}
}

func TestAddMessageIdempotentByTempID(t *testing.T) {
	s := seeded(nil)
	s.SelectChat("c1")

	if !s.AddMessage(Message{TempID: "t1", ChatID: "c1", Content: "hi"}) {
		t.Fatal("first AddMessage returned false")
	}
	if s.AddMessage(Message{TempID: "t1", ChatID: "c1", Content: "hi"}) {
		t.Error("AddMessage with existing temp id should be a no-op")
	}
	if got := len(s.Messages()); got != 1 {
		t.Errorf("message count = %d, want 1", got)
	}
}

func TestAddMessageInactiveChatIncrementsUnread(t *testing.T) {
	s := seeded(nil)
	s.SelectChat("c1")

	s.AddMessage(Message{ID: "m1", ChatID: "c2", Content: "ping"})

	c2, _ := s.Chat("c2")
	if c2.Unread != 1 {
		t.Errorf("c2 unread = %d, want 1", c2.Unread)
	}
	if c2.LastMessage == nil || c2.LastMessage.ID != "m1" {
		t.Error("c2 last message not updated")
	}
	if got := len(s.Messages()); got != 0 {
		t.Errorf("active message list length = %d, want 0", got)
	}
	if s.UnreadTotal() != 1 {
		t.Errorf("aggregate unread = %d, want 1", s.UnreadTotal())
	}
}

func TestAddMessageActiveChatDoesNotIncrementUnread(t *testing.T) {
	s := seeded(nil)
	s.SelectChat("c1")

	s.AddMessage(Message{ID: "m1", ChatID: "c1", Content: "hi"})

	c1, _ := s.Chat("c1")
	if c1.Unread != 0 {
		t.Errorf("c1 unread = %d, want 0", c1.Unread)
	}
	if got := len(s.Messages()); got != 1 {
		t.Errorf("active message list length = %d, want 1", got)
	}
}

func TestAddMessageDuplicateLastMessageInactiveChat(t *testing.T) {
	s := seeded(nil)
	s.SelectChat("c1")

	m := Message{ID: "m1", ChatID: "c2", Content: "ping"}
	s.AddMessage(m)
	if s.AddMessage(m) {
		t.Error("repeated delivery of latest message should be a no-op")
	}
	c2, _ := s.Chat("c2")
	if c2.Unread != 1 {
		t.Errorf("c2 unread = %d, want 1 (no double increment)", c2.Unread)
	}
}

func TestAddChat(t *testing.T) {
	s := seeded(nil)

	if !s.AddChat(Chat{ID: "c3", Kind: ChatIndividual, Unread: 1}) {
		t.Fatal("AddChat returned false for new chat")
	}
	if s.AddChat(Chat{ID: "c3", Kind: ChatIndividual}) {
		t.Error("AddChat with existing id should be a no-op")
	}

	chats := s.Chats()
	if len(chats) != 3 || chats[0].ID != "c3" {
		t.Errorf("chats = %v, want c3 first", chats)
	}
	if s.UnreadTotal() != 1 {
		t.Errorf("unread total = %d, want 1", s.UnreadTotal())
	}
}

func TestSelectChatResetsUnread(t *testing.T) {
	s := seeded(nil)
	s.SelectChat("c1")
	s.AddMessage(Message{ID: "m1", ChatID: "c2"})
	s.AddMessage(Message{ID: "m2", ChatID: "c2"})

	s.SelectChat("c2")

	c2, _ := s.Chat("c2")
	if c2.Unread != 0 {
		t.Errorf("unread after select = %d, want 0", c2.Unread)
	}
	if s.UnreadTotal() != 0 {
		t.Errorf("aggregate unread = %d, want 0", s.UnreadTotal())
	}
	if got := len(s.Messages()); got != 0 {
		t.Errorf("message list after select = %d entries, want 0 (cleared for fetch)", got)
	}
}

func TestAggregateConsistency(t *testing.T) {
	s := seeded(nil)
	s.SelectChat("c1")

	s.AddMessage(Message{ID: "m1", ChatID: "c2"})
	s.AddMessage(Message{ID: "m2", ChatID: "c2"})
	s.AddMessage(Message{ID: "m3", ChatID: "c1"})
	s.MarkChatRead("c2")
	s.AddMessage(Message{ID: "m4", ChatID: "c2"})

	sum := 0
	for _, c := range s.Chats() {
		sum += c.Unread
	}
	if s.UnreadTotal() != sum {
		t.Errorf("aggregate = %d, chat sum = %d", s.UnreadTotal(), sum)
	}
	if sum != 1 {
		t.Errorf("chat sum = %d, want 1", sum)
	}
}

func TestUpdateMessageReconcilesTempID(t *testing.T) {
	s := seeded(nil)
	s.SelectChat("c1")

	s.AddMessage(Message{TempID: "t1", ChatID: "c1", Content: "hello", Sender: UserSummary{ID: "me"}})

	ok := s.UpdateMessage(Message{
		ID: "m1", TempID: "t1", ChatID: "c1", Content: "hello",
		Sender: UserSummary{ID: "me"}, DeliveredTo: []string{"me"},
	})
	if !ok {
		t.Fatal("UpdateMessage did not match provisional entry")
	}

	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("message count = %d, want 1", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[0].TempID != "" {
		t.Errorf("reconciled message = id %q temp %q, want id m1 with temp cleared", msgs[0].ID, msgs[0].TempID)
	}
	if len(msgs[0].DeliveredTo) != 1 || msgs[0].DeliveredTo[0] != "me" {
		t.Errorf("deliveredTo = %v, want [me]", msgs[0].DeliveredTo)
	}

	// The echo of the confirmed message must now be absorbed.
	if s.AddMessage(Message{ID: "m1", ChatID: "c1", Content: "hello"}) {
		t.Error("newMessage echo after reconciliation should be a no-op")
	}
}

func TestConfirmMessage(t *testing.T) {
	s := seeded(nil)
	s.SelectChat("c1")
	s.AddMessage(Message{TempID: "t1", ChatID: "c1", Content: "hello"})

	if !s.ConfirmMessage("t1", "m1", []string{"me"}) {
		t.Fatal("ConfirmMessage did not match provisional entry")
	}

	msgs := s.Messages()
	if msgs[0].ID != "m1" || msgs[0].TempID != "" {
		t.Errorf("confirmed message = id %q temp %q, want id m1 with temp cleared", msgs[0].ID, msgs[0].TempID)
	}
	if msgs[0].Content != "hello" {
		t.Errorf("content = %q, want provisional content kept", msgs[0].Content)
	}

	// Confirming again (ack arriving after the REST response) is a no-op
	// merge, not a duplicate.
	if !s.ConfirmMessage("t1", "m1", []string{"me", "u2"}) {
		t.Error("re-confirm by server id should match")
	}
	msgs = s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("message count = %d, want 1", len(msgs))
	}
	if len(msgs[0].DeliveredTo) != 2 {
		t.Errorf("deliveredTo = %v, want merged [me u2]", msgs[0].DeliveredTo)
	}
}

func TestUpdateMessageKeepsDeliveryMarkers(t *testing.T) {
	s := seeded(nil)
	s.SelectChat("c1")
	s.AddMessage(Message{TempID: "t1", ChatID: "c1", Content: "hello"})

	// Delivery ack lands first.
	if !s.ConfirmMessage("t1", "m1", []string{"u2"}) {
		t.Fatal("ConfirmMessage did not match provisional entry")
	}
	// REST confirmation follows without a deliveredTo list.
	if !s.UpdateMessage(Message{ID: "m1", ChatID: "c1", Content: "hello"}) {
		t.Fatal("UpdateMessage did not match confirmed entry")
	}

	msgs := s.Messages()
	if len(msgs[0].DeliveredTo) != 1 || msgs[0].DeliveredTo[0] != "u2" {
		t.Errorf("deliveredTo = %v, want ack marker [u2] kept", msgs[0].DeliveredTo)
	}
}

func TestConfirmMessageUnknownIsNoop(t *testing.T) {
	s := seeded(nil)
	s.SelectChat("c1")
	if s.ConfirmMessage("t-nope", "m-nope", nil) {
		t.Error("ConfirmMessage with unknown ids should return false")
	}
}

func TestUpdateMessageUnknownIDIsNoop(t *testing.T) {
	s := seeded(nil)
	s.SelectChat("c1")
	if s.UpdateMessage(Message{ID: "nope", ChatID: "c1"}) {
		t.Error("UpdateMessage with unknown id should return false")
	}
}

func TestDeleteMessage(t *testing.T) {
	s := seeded(nil)
	s.SelectChat("c1")
	s.AddMessage(Message{TempID: "t1", ChatID: "c1"})

	if !s.DeleteMessage("t1") {
		t.Fatal("DeleteMessage by temp id failed")
	}
	if len(s.Messages()) != 0 {
		t.Error("message not removed")
	}
	if s.DeleteMessage("t1") {
		t.Error("second DeleteMessage should be a no-op")
	}
}

func TestSetMessagesIgnoresStaleFetch(t *testing.T) {
	s := seeded(nil)
	s.SelectChat("c1")
	s.SelectChat("c2")

	// Fetch for the previously selected chat completes late.
	s.SetMessages("c1", []Message{{ID: "m1", ChatID: "c1"}})

	if len(s.Messages()) != 0 {
		t.Error("stale fetch for deselected chat must not populate the list")
	}
}

func TestSetTyping(t *testing.T) {
	s := seeded(nil)
	s.SetTyping("c1", "u1", true)
	s.SetTyping("c1", "u2", true)
	s.SetTyping("c1", "u1", true) // already present

	users := s.TypingUsers("c1")
	if len(users) != 2 || users[0] != "u1" || users[1] != "u2" {
		t.Errorf("typing users = %v, want [u1 u2]", users)
	}

	s.SetTyping("c1", "u1", false)
	users = s.TypingUsers("c1")
	if len(users) != 1 || users[0] != "u2" {
		t.Errorf("typing users = %v, want [u2]", users)
	}
}

func TestMarkMessagesRead(t *testing.T) {
	s := seeded(nil)
	s.SelectChat("c1")
	s.AddMessage(Message{ID: "m1", ChatID: "c1"})
	s.AddMessage(Message{ID: "m2", ChatID: "c1"})

	s.MarkMessagesRead("c1", []string{"m1"}, "u9")

	msgs := s.Messages()
	if len(msgs[0].ReadBy) != 1 || msgs[0].ReadBy[0] != "u9" {
		t.Errorf("m1 readBy = %v, want [u9]", msgs[0].ReadBy)
	}
	if len(msgs[1].ReadBy) != 0 {
		t.Errorf("m2 readBy = %v, want empty", msgs[1].ReadBy)
	}
}

func TestStorePublishesEvents(t *testing.T) {
	b := bus.New(nil)
	var kinds []string
	unsub := b.Subscribe("message.", func(evt bus.Event) { kinds = append(kinds, evt.Kind) })
	defer unsub()

	s := seeded(b)
	s.SelectChat("c1")
	s.AddMessage(Message{TempID: "t1", ChatID: "c1"})
	s.AddMessage(Message{TempID: "t1", ChatID: "c1"}) // duplicate, no event
	s.UpdateMessage(Message{ID: "m1", TempID: "t1", ChatID: "c1"})
	s.DeleteMessage("m1")

	want := []string{bus.KindMessageAdded, bus.KindMessageUpdated, bus.KindMessageDeleted}
	if len(kinds) != len(want) {
		t.Fatalf("got %d events %v, want %d", len(kinds), kinds, len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func TestNotifications(t *testing.T) {
	s := New(nil)
	s.SetNotifications([]Notification{{ID: "n1"}, {ID: "n2"}})
	s.AddNotification(Notification{ID: "n3"})

	ns := s.Notifications()
	if len(ns) != 3 || ns[0].ID != "n3" {
		t.Errorf("notifications = %v, want n3 first of 3", ns)
	}
}
