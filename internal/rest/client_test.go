package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return New(srv.URL, func() string { return "tok-123" }), srv
}

func TestListChats(t *testing.T) {
	c, srv := testClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chats" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("auth header = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "20" {
			t.Errorf("limit = %q", got)
		}
		_, _ = w.Write([]byte(`{"chats":[
			{"_id":"c1","kind":"individual","participants":[{"_id":"u1","name":"Ana"}],"unreadCount":2},
			{"_id":"c2","kind":"group","name":"team","participants":[]}
		]}`))
	})
	defer srv.Close()

	chats, err := c.ListChats(context.Background(), 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 {
		t.Fatalf("got %d chats, want 2", len(chats))
	}
	if chats[0].ID != "c1" || chats[0].Unread != 2 {
		t.Errorf("chat[0] = %+v", chats[0])
	}
	if chats[1].Kind != "group" {
		t.Errorf("chat[1].Kind = %q", chats[1].Kind)
	}
}

func TestListMessages(t *testing.T) {
	c, srv := testClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chats/c1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"messages":[{"_id":"m1","chatId":"c1","content":"oi","messageType":"text","sender":{"_id":"u1","name":"Ana"}}]}`))
	})
	defer srv.Close()

	msgs, err := c.ListMessages(context.Background(), "c1", 1, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Content != "oi" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestCreateMessageJSON(t *testing.T) {
	c, srv := testClient(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["tempId"] != "t1" || body["chatId"] != "c1" {
			t.Errorf("body = %v", body)
		}
		_, _ = w.Write([]byte(`{"_id":"m1","tempId":"t1","chatId":"c1","content":"hello","messageType":"text","sender":{"_id":"me"}}`))
	})
	defer srv.Close()

	msg, err := c.CreateMessage(context.Background(), CreateMessageRequest{
		ChatID: "c1", Content: "hello", MessageType: "text", TempID: "t1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "m1" || msg.TempID != "t1" {
		t.Errorf("message = %+v", msg)
	}
}

func TestCreateMessageMultipart(t *testing.T) {
	c, srv := testClient(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("not multipart: %v", err)
		}
		if got := r.FormValue("chatId"); got != "c1" {
			t.Errorf("chatId = %q", got)
		}
		files := r.MultipartForm.File["files"]
		if len(files) != 1 || files[0].Filename != "pic.png" {
			t.Errorf("files = %v", files)
		}
		_, _ = w.Write([]byte(`{"_id":"m2","chatId":"c1","messageType":"media","sender":{"_id":"me"}}`))
	})
	defer srv.Close()

	msg, err := c.CreateMessage(context.Background(), CreateMessageRequest{
		ChatID: "c1", MessageType: "media", TempID: "t2",
		Files: []Upload{{Name: "pic.png", ContentType: "image/png", Reader: strings.NewReader("not-a-real-png")}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if msg.Kind != "media" {
		t.Errorf("kind = %q", msg.Kind)
	}
}

func TestAPIError(t *testing.T) {
	c, srv := testClient(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"token expired"}`))
	})
	defer srv.Close()

	_, err := c.ListChats(context.Background(), 1, 20)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want APIError", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "token expired" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestDeleteMessage(t *testing.T) {
	var gotMethod, gotPath string
	c, srv := testClient(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})
	defer srv.Close()

	if err := c.DeleteMessage(context.Background(), "m1"); err != nil {
		t.Fatal(err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/messages/m1" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
}

func TestCreateGroupChat(t *testing.T) {
	c, srv := testClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chats/group" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "team" {
			t.Errorf("body = %v", body)
		}
		_, _ = w.Write([]byte(`{"_id":"g1","kind":"group","name":"team","participants":[]}`))
	})
	defer srv.Close()

	chat, err := c.CreateGroupChat(context.Background(), "team", "", []string{"u1", "u2"})
	if err != nil {
		t.Fatal(err)
	}
	if chat.ID != "g1" || chat.Kind != "group" {
		t.Errorf("chat = %+v", chat)
	}
}
