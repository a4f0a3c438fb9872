package cloudevent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSendDeliversEnvelope(t *testing.T) {
	t.Parallel()

	var gotHeaders http.Header
	var gotBody CloudEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ev := New("trainer.run.started.v1", "trainer-worker", "r1", "r1-1", map[string]any{"run_id": "r1"})
	sender := NewSender(5 * time.Second)
	if err := sender.Send(context.Background(), srv.URL, ev, ""); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotHeaders.Get("Ce-Type") != "trainer.run.started.v1" {
		t.Errorf("unexpected Ce-Type: %q", gotHeaders.Get("Ce-Type"))
	}
	if gotHeaders.Get("Ce-Subject") != "r1" {
		t.Errorf("unexpected Ce-Subject: %q", gotHeaders.Get("Ce-Subject"))
	}
	if gotHeaders.Get("X-Signature-256") != "" {
		t.Error("expected no signature without signing key")
	}
	if gotBody.Data["run_id"] != "r1" {
		t.Errorf("unexpected data: %+v", gotBody.Data)
	}
}

func TestSendSignsWhenKeyGiven(t *testing.T) {
	t.Parallel()

	var signature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get("X-Signature-256")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ev := New("trainer.run.progress.v1", "trainer-worker", "r1", "r1-2", nil)
	sender := NewSender(5 * time.Second)
	if err := sender.Send(context.Background(), srv.URL, ev, "secret"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(signature) == 0 || signature[:7] != "sha256=" {
		t.Errorf("expected sha256= signature, got %q", signature)
	}
}

func TestSendHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sender := NewSender(5 * time.Second)
	err := sender.Send(context.Background(), srv.URL, New("t", "s", "sub", "id", nil), "")
	if err == nil {
		t.Fatal("expected error for 503")
	}
	he, ok := err.(*HTTPError)
	if !ok || he.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected HTTPError 503, got %v", err)
	}
	if IsClientError(err) {
		t.Error("503 should not be a client error")
	}
}

func TestIsClientError(t *testing.T) {
	t.Parallel()
	if !IsClientError(&HTTPError{StatusCode: 404}) {
		t.Error("404 should be a client error")
	}
	if IsClientError(&HTTPError{StatusCode: 500}) {
		t.Error("500 should not be a client error")
	}
	if IsClientError(context.Canceled) {
		t.Error("non-HTTPError should not be a client error")
	}
}
