package wire

import "chatlink/internal/store"

// User is the wire shape of a user summary.
type User struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Attachment is the wire shape of a media attachment.
type Attachment struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Name     string `json:"name,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Message is the wire shape of a chat message as pushed by the server.
type Message struct {
	ID          string       `json:"_id"`
	TempID      string       `json:"tempId,omitempty"`
	ChatID      string       `json:"chatId"`
	Sender      User         `json:"sender"`
	Content     string       `json:"content,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	MessageType string       `json:"messageType"`
	ReplyTo     string       `json:"replyTo,omitempty"`
	DeliveredTo []string     `json:"deliveredTo"`
	ReadBy      []string     `json:"readBy"`
	Deleted     bool         `json:"deleted,omitempty"`
	CreatedAt   int64        `json:"createdAt"`
	UpdatedAt   int64        `json:"updatedAt,omitempty"`
}

// Chat is the wire shape of a conversation summary.
type Chat struct {
	ID           string   `json:"_id"`
	Kind         string   `json:"kind"`
	Name         string   `json:"name,omitempty"`
	Description  string   `json:"description,omitempty"`
	Participants []User   `json:"participants"`
	LastMessage  *Message `json:"lastMessage,omitempty"`
	Unread       int      `json:"unreadCount"`
	CreatedAt    int64    `json:"createdAt"`
	UpdatedAt    int64    `json:"updatedAt"`
}

// Notification is the wire shape of a server-pushed notification record.
type Notification struct {
	ID        string `json:"_id"`
	Kind      string `json:"kind"`
	Ref       string `json:"ref,omitempty"`
	Body      string `json:"body"`
	Read      bool   `json:"read"`
	CreatedAt int64  `json:"createdAt"`
}

// ToStore converts a wire message to the store model.
func (m *Message) ToStore() store.Message {
	out := store.Message{
		ID:          m.ID,
		TempID:      m.TempID,
		ChatID:      m.ChatID,
		Sender:      m.Sender.ToStore(),
		Content:     m.Content,
		Kind:        messageKind(m.MessageType),
		ReplyTo:     m.ReplyTo,
		DeliveredTo: m.DeliveredTo,
		ReadBy:      m.ReadBy,
		Deleted:     m.Deleted,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	for _, a := range m.Attachments {
		out.Attachments = append(out.Attachments, store.Attachment{
			URL: a.URL, MimeType: a.MimeType, Name: a.Name, Size: a.Size,
		})
	}
	return out
}

// ToStore converts a wire user to the store model.
func (u User) ToStore() store.UserSummary {
	return store.UserSummary{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
}

// ToStore converts a wire chat to the store model.
func (c *Chat) ToStore() store.Chat {
	out := store.Chat{
		ID:          c.ID,
		Kind:        chatKind(c.Kind),
		Name:        c.Name,
		Description: c.Description,
		Unread:      c.Unread,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	for _, p := range c.Participants {
		out.Participants = append(out.Participants, p.ToStore())
	}
	if c.LastMessage != nil {
		last := c.LastMessage.ToStore()
		out.LastMessage = &last
	}
	return out
}

// ToStore converts a wire notification to the store model.
func (n *Notification) ToStore() store.Notification {
	return store.Notification{
		ID: n.ID, Kind: n.Kind, Ref: n.Ref, Body: n.Body,
		Read: n.Read, CreatedAt: n.CreatedAt,
	}
}

func messageKind(s string) store.MessageKind {
	switch s {
	case "media":
		return store.MessageMedia
	case "system":
		return store.MessageSystem
	default:
		return store.MessageText
	}
}

func chatKind(s string) store.ChatKind {
	if s == "group" {
		return store.ChatGroup
	}
	return store.ChatIndividual
}
