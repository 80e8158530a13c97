package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"waveline/models"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, Options{AuthToken: "test-token"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client, server
}

func TestSendMessageReturnsServerEntity(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/send" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("missing bearer token, got %q", got)
		}

		var req SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode send body: %v", err)
		}
		if req.ConversationID != "c1" || req.Content != "hello" || req.Type != models.MessageTypeText {
			t.Fatalf("unexpected send body: %+v", req)
		}

		_ = json.NewEncoder(w).Encode(models.Message{
			ID:             "m1",
			ConversationID: req.ConversationID,
			SenderID:       req.SenderID,
			Content:        req.Content,
			Type:           req.Type,
			CreatedAt:      1_000,
		})
	}))

	msg, err := client.SendMessage(context.Background(), SendRequest{
		ConversationID: "c1",
		SenderID:       "alice",
		Content:        "hello",
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if msg.ID != "m1" {
		t.Fatalf("expected server id m1, got %q", msg.ID)
	}
}

func TestSendAttachmentPostsMultipart(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("conversationId"); got != "c1" {
			t.Fatalf("expected conversationId c1, got %q", got)
		}
		if got := r.FormValue("type"); got != string(models.MessageTypeImage) {
			t.Fatalf("expected type IMAGE, got %q", got)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("read file part: %v", err)
		}
		defer file.Close()
		if header.Filename != "photo.jpg" {
			t.Fatalf("expected filename photo.jpg, got %q", header.Filename)
		}

		_ = json.NewEncoder(w).Encode(models.Message{
			ID:            "m1",
			Type:          models.MessageTypeImage,
			AttachmentURL: "https://cdn.example.com/photo.jpg",
			CreatedAt:     1_000,
		})
	}))

	msg, err := client.SendAttachment(context.Background(), AttachmentRequest{
		ConversationID: "c1",
		SenderID:       "alice",
		Type:           models.MessageTypeImage,
		Filename:       "photo.jpg",
		Size:           4,
		Body:           strings.NewReader("data"),
	})
	if err != nil {
		t.Fatalf("SendAttachment failed: %v", err)
	}
	if msg.AttachmentURL == "" {
		t.Fatalf("expected attachment URL in response")
	}
}

func TestMessagesPassesCursor(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/messages/c1" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("cursor"); got != "cur2" {
			t.Fatalf("expected cursor cur2, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(models.MessagePage{
			Messages:   []models.Message{{ID: "m1", CreatedAt: 1_000, Type: models.MessageTypeText}},
			NextCursor: "cur3",
		})
	}))

	page, err := client.Messages(context.Background(), "c1", "cur2")
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(page.Messages) != 1 || page.NextCursor != "cur3" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestMediaRejectsInvalidType(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("request should not reach the backend")
	}))

	if _, err := client.Media(context.Background(), "c1", models.MessageTypeText, 10); err == nil {
		t.Fatalf("expected invalid media type error")
	}
}

func TestNotFoundMapsToSentinel(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"no such message"}`, http.StatusNotFound)
	}))

	err := client.RecallMessage(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBackendErrorCarriesMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"content too long"}`, http.StatusUnprocessableEntity)
	}))

	_, err := client.EditMessage(context.Background(), "m1", strings.Repeat("x", 10))
	if err == nil {
		t.Fatalf("expected backend error")
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.Message != "content too long" {
		t.Fatalf("unexpected error payload: %+v", apiErr)
	}
}
