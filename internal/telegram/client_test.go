package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetUpdatesDecodesBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/getUpdates" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("offset"); got != "11" {
			t.Errorf("expected offset 11, got %q", got)
		}
		if got := r.URL.Query().Get("timeout"); got != "25" {
			t.Errorf("expected timeout 25, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":[
			{"update_id":11,"message":{"message_id":1,"from":{"id":7,"first_name":"A"},"chat":{"id":9,"type":"private"},"text":"hi"}},
			{"update_id":12,"callback_query":{"id":"cb1","from":{"id":7},"message":{"chat":{"id":9}},"data":"create_ticket"}}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token")
	updates := c.GetUpdates(context.Background(), 11, 25*time.Second)

	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[0].Message == nil || updates[0].Message.Text != "hi" {
		t.Fatalf("unexpected first update: %+v", updates[0])
	}
	if updates[1].CallbackQuery == nil || updates[1].CallbackQuery.Data != "create_ticket" {
		t.Fatalf("unexpected second update: %+v", updates[1])
	}
}

func TestGetUpdatesConflictIsEmptyBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token")
	updates := c.GetUpdates(context.Background(), 1, time.Second)

	if len(updates) != 0 {
		t.Fatalf("expected empty batch on 409, got %d", len(updates))
	}
}

func TestGetUpdatesServerErrorIsEmptyBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token")
	if got := c.GetUpdates(context.Background(), 1, time.Second); len(got) != 0 {
		t.Fatalf("expected empty batch on 500, got %d", len(got))
	}
}

func TestSendMessagePayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token")
	kb := SingleColumn(InlineButton{Text: "Create Ticket", CallbackData: "create_ticket"})
	c.SendMessage(context.Background(), 42, "hello", kb)

	if got["chat_id"] != float64(42) || got["text"] != "hello" {
		t.Fatalf("unexpected payload: %v", got)
	}
	if _, ok := got["reply_markup"]; !ok {
		t.Fatalf("expected reply_markup present: %v", got)
	}
}

func TestSendMessageOmitsKeyboardWhenNil(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token")
	c.SendMessage(context.Background(), 42, "hello", nil)

	if _, ok := got["reply_markup"]; ok {
		t.Fatalf("expected no reply_markup: %v", got)
	}
}

func TestAnswerCallbackPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/answerCallbackQuery" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token")
	c.AnswerCallback(context.Background(), "cb-7", "")

	if got["callback_query_id"] != "cb-7" {
		t.Fatalf("unexpected payload: %v", got)
	}
	if _, ok := got["text"]; ok {
		t.Fatalf("empty text must be omitted: %v", got)
	}
}
