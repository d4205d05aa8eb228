package trigger_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danabek/notification-dispatcher/internal/trigger"
)

func TestTrigger_Success(t *testing.T) {
	var got trigger.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/trigger" {
			t.Errorf("request = %s %s, want POST /v1/trigger", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(trigger.Response{TransactionID: "txn-abc"})
	}))
	defer srv.Close()

	client := trigger.NewHTTPClient(srv.URL, 5*time.Second)
	resp, err := client.Trigger(context.Background(), trigger.Request{
		WorkflowKey:  "digest",
		EnterpriseID: "ent-1",
		Recipients:   []string{"sub-1", "sub-2"},
		Channels:     []string{"email"},
		Payload:      json.RawMessage(`{"week": 12}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.TransactionID != "txn-abc" {
		t.Errorf("transaction id = %q, want txn-abc", resp.TransactionID)
	}
	if got.WorkflowKey != "digest" || got.EnterpriseID != "ent-1" || len(got.Recipients) != 2 {
		t.Errorf("request body = %+v", got)
	}
}

func TestTrigger_ErrorStatusIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unknown workflow key", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := trigger.NewHTTPClient(srv.URL, 5*time.Second)
	_, err := client.Trigger(context.Background(), trigger.Request{WorkflowKey: "nope"})
	if err == nil {
		t.Fatal("expected error on 422")
	}
	if !strings.Contains(err.Error(), "unknown workflow key") {
		t.Errorf("error = %v, want the response body included", err)
	}
}

func TestTrigger_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	client := trigger.NewHTTPClient(srv.URL, 50*time.Millisecond)
	start := time.Now()
	_, err := client.Trigger(context.Background(), trigger.Request{WorkflowKey: "slow"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("call took %v, the timeout did not bound it", elapsed)
	}
}

func TestTrigger_ContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := trigger.NewHTTPClient(srv.URL, 5*time.Second)
	if _, err := client.Trigger(ctx, trigger.Request{}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
