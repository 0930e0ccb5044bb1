package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingRecorder records failure priorities for assertions.
type countingRecorder struct {
	priorities []string
}

func (r *countingRecorder) RecordFailure(priority string) {
	r.priorities = append(r.priorities, priority)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, recorder FailureRecorder) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(Config{BaseURL: srv.URL, Model: "test-model", Timeout: 5 * time.Second}, recorder)
	return client, srv
}

func TestGenerate_ReturnsExactResponseString(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"response": "hello from the model"})
	}, nil)

	got, err := client.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "hello from the model" {
		t.Fatalf("got %q, want %q", got, "hello from the model")
	}
}

func TestGenerate_EmptyStringIsValid(t *testing.T) {
	rec := &countingRecorder{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"response": ""})
	}, rec)

	got, err := client.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("empty response field must be valid, got error: %v", err)
	}
	if got != "" {
		t.Fatalf("got %q, want empty string", got)
	}
	if len(rec.priorities) != 0 {
		t.Fatalf("no failure should be recorded, got %v", rec.priorities)
	}
}

func TestGenerate_RawBodyFallback(t *testing.T) {
	// The server may emit non-JSON output even with stream=false requested.
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "plain text output")
	}, nil)

	got, err := client.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "plain text output" {
		t.Fatalf("got %q, want raw body", got)
	}
}

func TestGenerate_EmptyBody(t *testing.T) {
	rec := &countingRecorder{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, rec)

	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("err=%v, want ErrEmptyResponse", err)
	}
	if len(rec.priorities) != 1 {
		t.Fatalf("want exactly one recorded failure, got %d", len(rec.priorities))
	}
}

func TestGenerate_HTTPErrorCarriesExactStatus(t *testing.T) {
	for _, status := range []int{400, 404, 429, 500, 503} {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}, nil)

		_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "hi"})

		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			t.Fatalf("status %d: err=%v, want *HTTPError", status, err)
		}
		if httpErr.StatusCode != status {
			t.Fatalf("got status %d, want %d", httpErr.StatusCode, status)
		}
	}
}

func TestGenerate_503RecordsExactlyOneMediumFailure(t *testing.T) {
	rec := &countingRecorder{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, rec)

	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "hi"})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 503 {
		t.Fatalf("err=%v, want *HTTPError with status 503", err)
	}
	if len(rec.priorities) != 1 {
		t.Fatalf("want exactly one RecordFailure call, got %d", len(rec.priorities))
	}
	if rec.priorities[0] != "medium" {
		t.Fatalf("priority=%q, want default %q", rec.priorities[0], "medium")
	}
}

func TestGenerate_PriorityPassedToRecorder(t *testing.T) {
	rec := &countingRecorder{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, rec)

	_, _ = client.Generate(context.Background(), GenerateRequest{Prompt: "hi", Priority: "high"})

	if len(rec.priorities) != 1 || rec.priorities[0] != "high" {
		t.Fatalf("priorities=%v, want [high]", rec.priorities)
	}
}

func TestGenerate_NetworkErrorRecordsFailure(t *testing.T) {
	rec := &countingRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second}, rec)

	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("want transport error for refused connection")
	}
	if len(rec.priorities) != 1 {
		t.Fatalf("want exactly one recorded failure, got %d", len(rec.priorities))
	}
}

func TestGenerate_WireFormat(t *testing.T) {
	var captured generateBody
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path=%q, want /api/generate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"response": "ok"})
	}, nil)

	img := []byte{0x89, 0x50, 0x4e, 0x47}
	_, err := client.Generate(context.Background(), GenerateRequest{
		Prompt:      "describe this",
		Temperature: 0.3,
		Images:      [][]byte{img},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if captured.Model != "test-model" {
		t.Fatalf("model=%q, want default from config", captured.Model)
	}
	if captured.Stream {
		t.Fatal("stream must be false")
	}
	if captured.Options.Temperature != 0.3 {
		t.Fatalf("temperature=%v, want 0.3", captured.Options.Temperature)
	}
	if len(captured.Images) != 1 || captured.Images[0] != base64.StdEncoding.EncodeToString(img) {
		t.Fatalf("images=%v, want one base64 payload", captured.Images)
	}
}

func TestGenerate_NoRetries(t *testing.T) {
	var hits int
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadGateway)
	}, nil)

	_, _ = client.Generate(context.Background(), GenerateRequest{Prompt: "hi"})

	if hits != 1 {
		t.Fatalf("server hit %d times, want 1 (no retries in the transport layer)", hits)
	}
}
