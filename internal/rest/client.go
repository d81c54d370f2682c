// Package rest is the HTTP collaborator for durable operations: chat and
// message fetches, message persistence, and notification retrieval. The
// realtime channel lives in internal/conn; both may race and the store's
// idempotence guarantees absorb either ordering.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"chatlink/internal/store"
	"chatlink/internal/wire"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// TokenFunc supplies the current bearer token. Resolved per request so a
// credential refresh is picked up without rebuilding the client.
type TokenFunc func() string

// Client talks to the chat backend's REST endpoints.
type Client struct {
	base  string
	http  *http.Client
	token TokenFunc
}

// New creates a REST client for the given base URL.
func New(baseURL string, token TokenFunc) *Client {
	return &Client{
		base: baseURL,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
			},
			Timeout: 30 * time.Second,
		},
		token: token,
	}
}

// Upload describes one attachment for a multipart message create.
type Upload struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// CreateMessageRequest is the message persistence call. TempID round-trips
// so the response can be reconciled against the provisional entry.
type CreateMessageRequest struct {
	ChatID      string
	Content     string
	MessageType string
	ReplyTo     string
	TempID      string
	Files       []Upload
}

// ListChats fetches a page of the user's chats.
func (c *Client) ListChats(ctx context.Context, page, limit int) ([]store.Chat, error) {
	var out struct {
		Chats []wire.Chat `json:"chats"`
	}
	q := url.Values{"page": {strconv.Itoa(page)}, "limit": {strconv.Itoa(limit)}}
	if err := c.getJSON(ctx, "/api/chats?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	chats := make([]store.Chat, 0, len(out.Chats))
	for i := range out.Chats {
		chats = append(chats, out.Chats[i].ToStore())
	}
	return chats, nil
}

// ListMessages fetches a page of messages for a chat.
func (c *Client) ListMessages(ctx context.Context, chatID string, page, limit int) ([]store.Message, error) {
	var out struct {
		Messages []wire.Message `json:"messages"`
	}
	q := url.Values{"page": {strconv.Itoa(page)}, "limit": {strconv.Itoa(limit)}}
	path := "/api/chats/" + url.PathEscape(chatID) + "/messages?" + q.Encode()
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	msgs := make([]store.Message, 0, len(out.Messages))
	for i := range out.Messages {
		msgs = append(msgs, out.Messages[i].ToStore())
	}
	return msgs, nil
}

// CreateMessage persists a message. Uses multipart form encoding when files
// are present, plain JSON otherwise.
func (c *Client) CreateMessage(ctx context.Context, req CreateMessageRequest) (*store.Message, error) {
	var (
		body        io.Reader
		contentType string
		err         error
	)
	if len(req.Files) > 0 {
		body, contentType, err = multipartBody(req)
		if err != nil {
			return nil, err
		}
	} else {
		payload := map[string]string{
			"chatId":      req.ChatID,
			"content":     req.Content,
			"messageType": req.MessageType,
			"tempId":      req.TempID,
		}
		if req.ReplyTo != "" {
			payload["replyTo"] = req.ReplyTo
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal message: %w", err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}

	var out wire.Message
	if err := c.do(ctx, http.MethodPost, "/api/messages", body, contentType, &out); err != nil {
		return nil, err
	}
	msg := out.ToStore()
	return &msg, nil
}

// DeleteMessage removes a message by server id.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/api/messages/"+url.PathEscape(messageID), nil, "", nil)
}

// ListNotifications fetches the user's notification records.
func (c *Client) ListNotifications(ctx context.Context) ([]store.Notification, error) {
	var out struct {
		Notifications []wire.Notification `json:"notifications"`
	}
	if err := c.getJSON(ctx, "/api/notifications", &out); err != nil {
		return nil, err
	}
	ns := make([]store.Notification, 0, len(out.Notifications))
	for i := range out.Notifications {
		ns = append(ns, out.Notifications[i].ToStore())
	}
	return ns, nil
}

// CreateChat opens a 1:1 conversation with another user.
func (c *Client) CreateChat(ctx context.Context, participantID string) (*store.Chat, error) {
	return c.postChat(ctx, "/api/chats", map[string]any{"participantId": participantID})
}

// CreateGroupChat opens a named group conversation.
func (c *Client) CreateGroupChat(ctx context.Context, name, description string, participantIDs []string) (*store.Chat, error) {
	return c.postChat(ctx, "/api/chats/group", map[string]any{
		"name":           name,
		"description":    description,
		"participantIds": participantIDs,
	})
}

func (c *Client) postChat(ctx context.Context, path string, payload map[string]any) (*store.Chat, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal chat: %w", err)
	}
	var out wire.Chat
	if err := c.do(ctx, http.MethodPost, path, bytes.NewReader(raw), "application/json", &out); err != nil {
		return nil, err
	}
	chat := out.ToStore()
	return &chat, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func multipartBody(req CreateMessageRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"chatId":      req.ChatID,
		"content":     req.Content,
		"messageType": req.MessageType,
		"tempId":      req.TempID,
	}
	if req.ReplyTo != "" {
		fields["replyTo"] = req.ReplyTo
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}

	for _, f := range req.Files {
		part, err := w.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, "", fmt.Errorf("create form file: %w", err)
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return nil, "", fmt.Errorf("copy attachment %s: %w", f.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
