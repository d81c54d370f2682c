package store

// ChatKind distinguishes 1:1 conversations from groups.
type ChatKind string

const (
	ChatIndividual ChatKind = "individual"
	ChatGroup      ChatKind = "group"
)

// MessageKind classifies message content.
type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageMedia  MessageKind = "media"
	MessageSystem MessageKind = "system"
)

// UserSummary is the minimal identity carried on chats and messages.
type UserSummary struct {
	ID     string
	Name   string
	Avatar string
}

// Chat represents a 1:1 or group conversation.
type Chat struct {
	ID           string
	Kind         ChatKind
	Name         string
	Description  string
	Participants []UserSummary
	LastMessage  *Message
	Unread       int
	CreatedAt    int64
	UpdatedAt    int64
}

// Attachment describes an uploaded media file referenced by a message.
type Attachment struct {
	URL      string
	MimeType string
	Name     string
	Size     int64
}

// Message is a single chat message. Before server confirmation a message is
// identified by TempID only; once confirmed, ID carries the server-assigned
// identity and TempID is cleared.
type Message struct {
	ID          string
	TempID      string
	ChatID      string
	Sender      UserSummary
	Content     string
	Attachments []Attachment
	Kind        MessageKind
	ReplyTo     string
	DeliveredTo []string
	ReadBy      []string
	Deleted     bool
	CreatedAt   int64
	UpdatedAt   int64
}

// Notification is a server-pushed record, independent of messages.
type Notification struct {
	ID        string
	Kind      string
	Ref       string
	Body      string
	Read      bool
	CreatedAt int64
}
