package accounts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookSender(t *testing.T) {
	var got codePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("request = %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	if err := NewWebhookSender(srv.URL).SendCode(context.Background(), "a@example.com", "123456"); err != nil {
		t.Fatalf("SendCode: %v", err)
	}
	if got.Email != "a@example.com" || got.Code != "123456" || got.Purpose != PurposeSignup {
		t.Errorf("payload = %+v", got)
	}
}

func TestWebhookSenderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewWebhookSender(srv.URL).SendCode(context.Background(), "a@example.com", "1"); err == nil {
		t.Error("expected error on 502")
	}
}
