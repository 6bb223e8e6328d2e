package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(attempts int) *Client {
	return NewClient(Config{
		SigningSecret:  "test-secret",
		Timeout:        2 * time.Second,
		MaxAttempts:    attempts,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
	})
}

func TestSendJobEventSignsBody(t *testing.T) {
	var (
		gotEvt  string
		gotBody JobEvent
		valid   bool
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotEvt = r.Header.Get(HeaderEvent)
		valid = Verify("test-secret", r.Header.Get(HeaderTimestamp), r.Header.Get(HeaderSignature), body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := testClient(1).SendJobEvent(context.Background(), srv.URL, JobEvent{
		JobID:      "job-1",
		Status:     "failed",
		Function:   "lego",
		HTTPStatus: 413,
		Error:      "413: Something went wrong",
	})
	if err != nil {
		t.Fatalf("send returned error: %v", err)
	}

	if !valid {
		t.Fatal("expected signature to verify")
	}
	if gotEvt != EventJobFailed {
		t.Fatalf("expected event header %s, got %q", EventJobFailed, gotEvt)
	}
	if gotBody.JobID != "job-1" || gotBody.HTTPStatus != 413 {
		t.Fatalf("unexpected body %+v", gotBody)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := testClient(3).Send(context.Background(), srv.URL, EventJobCompleted, map[string]string{"job_id": "job-2"}); err != nil {
		t.Fatalf("send returned error: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestSendStopsOnClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	if err := testClient(5).Send(context.Background(), srv.URL, EventJobCompleted, nil); err == nil {
		t.Fatal("expected error for 410 response")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestSendSkipsEmptyEndpoint(t *testing.T) {
	if err := testClient(1).Send(context.Background(), "  ", EventJobCompleted, nil); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}
