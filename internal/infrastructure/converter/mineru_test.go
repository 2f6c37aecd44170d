package converter

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"paperforge/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler, ceiling time.Duration) *MineruClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewMineruClient(config.ConverterConfig{
		Endpoint:     server.URL,
		Token:        "test-token",
		PollInterval: 10 * time.Millisecond,
		PollCeiling:  ceiling,
	}, server.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestConvertUploadsAndPolls(t *testing.T) {
	t.Parallel()

	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/file/upload", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("missing auth header, got %q", got)
		}
		io.WriteString(w, `{"code": 0, "data": {"task_id": "job-1"}}`)
	})
	mux.HandleFunc("/extract/task/job-1", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			io.WriteString(w, `{"data": {"status": "running"}}`)
			return
		}
		io.WriteString(w, `{"data": {"status": "completed", "markdown": "# converted"}}`)
	})

	client := newTestClient(t, mux, 5*time.Second)
	path := writeTempFile(t, "doc.pdf", "%PDF-1.4 fake")

	text, err := client.Convert(context.Background(), path)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if text != "# converted" {
		t.Fatalf("unexpected text: %q", text)
	}
	if polls.Load() < 3 {
		t.Fatalf("expected at least 3 polls, got %d", polls.Load())
	}
}

func TestConvertJobFailure(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/file/upload", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code": 0, "data": {"task_id": "job-2"}}`)
	})
	mux.HandleFunc("/extract/task/job-2", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data": {"status": "failed"}}`)
	})

	client := newTestClient(t, mux, 5*time.Second)
	path := writeTempFile(t, "doc.pdf", "%PDF-1.4 fake")

	if _, err := client.Convert(context.Background(), path); err == nil {
		t.Fatal("expected failure for failed job")
	}
}

func TestConvertPollCeiling(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/file/upload", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code": 0, "data": {"task_id": "job-3"}}`)
	})
	mux.HandleFunc("/extract/task/job-3", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data": {"status": "running"}}`)
	})

	client := newTestClient(t, mux, 50*time.Millisecond)
	path := writeTempFile(t, "doc.pdf", "%PDF-1.4 fake")

	_, err := client.Convert(context.Background(), path)
	if err == nil {
		t.Fatal("expected timeout")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestConvertMisconfigured(t *testing.T) {
	t.Parallel()

	client := NewMineruClient(config.ConverterConfig{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := client.Convert(context.Background(), "doc.pdf"); err == nil {
		t.Fatal("expected misconfiguration error")
	}
}
