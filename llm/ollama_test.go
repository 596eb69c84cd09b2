package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type ollamaServer struct {
	mu       sync.Mutex
	requests []map[string]any
	missing  bool
	pulled   bool
}

func (s *ollamaServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[]}`))
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.pulled = true
		s.missing = false
		s.mu.Unlock()
		w.Write([]byte(`{"status":"success"}`))
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		s.mu.Lock()
		s.requests = append(s.requests, body)
		missing := s.missing
		s.mu.Unlock()
		if missing {
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"response":"  Keep going.  "}`))
	})
	return mux
}

func TestOllamaGenerate(t *testing.T) {
	s := &ollamaServer{}
	srv := httptest.NewServer(s.handler(t))
	defer srv.Close()

	o := NewOllama(OllamaConfig{Host: srv.URL + "/", Model: "gemma3:12b"})
	out, err := o.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Keep going." {
		t.Fatalf("Generate = %q", out)
	}

	req := s.requests[0]
	if req["model"] != "gemma3:12b" || req["stream"] != false {
		t.Fatalf("request = %v", req)
	}
	opts := req["options"].(map[string]any)
	if opts["temperature"] != 0.8 || opts["top_p"] != 0.9 || opts["num_predict"] != float64(500) {
		t.Fatalf("options = %v", opts)
	}
}

func TestOllamaPullsMissingModel(t *testing.T) {
	s := &ollamaServer{missing: true}
	srv := httptest.NewServer(s.handler(t))
	defer srv.Close()

	o := NewOllama(OllamaConfig{Host: srv.URL, Model: "gemma3:12b", MaxAttempts: 1})
	out, err := o.Generate(context.Background(), "hello")
	if err != nil || out != "Keep going." {
		t.Fatalf("Generate = %q, %v", out, err)
	}
	if !s.pulled {
		t.Fatal("missing model should be pulled")
	}
}

func TestOllamaUnloadSendsKeepAliveZero(t *testing.T) {
	s := &ollamaServer{}
	srv := httptest.NewServer(s.handler(t))
	defer srv.Close()

	o := NewOllama(OllamaConfig{Host: srv.URL, Model: "gemma3:12b"})
	if err := o.Unload(context.Background()); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	req := s.requests[0]
	if v, ok := req["keep_alive"]; !ok || v != float64(0) {
		t.Fatalf("keep_alive = %v (present %t), want 0", v, ok)
	}
	if _, ok := req["prompt"]; ok {
		t.Fatal("unload request should not carry a prompt")
	}
}

func TestOllamaUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	o := NewOllama(OllamaConfig{Host: srv.URL, Model: "m", MaxAttempts: 1})
	if _, err := o.Generate(context.Background(), "x"); err == nil {
		t.Fatal("expected error when the server is down")
	}
}
