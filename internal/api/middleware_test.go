package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	hit := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := hit("10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d within burst: status %d", i, code)
		}
	}
	if code := hit("10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("over burst: status %d, want 429", code)
	}

	// Other clients are unaffected.
	if code := hit("10.0.0.2:1234"); code != http.StatusOK {
		t.Fatalf("second client: status %d", code)
	}
}

func TestRateLimiterSweepsStaleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.get("10.0.0.1")

	// Age the entry past the stale cutoff and force the next lookup
	// to run a sweep.
	rl.mu.Lock()
	rl.clients["10.0.0.1"].seen = time.Now().Add(-10 * time.Minute)
	rl.lastSweep = time.Now().Add(-2 * time.Minute)
	rl.mu.Unlock()

	rl.get("10.0.0.2")

	rl.mu.Lock()
	_, stale := rl.clients["10.0.0.1"]
	_, fresh := rl.clients["10.0.0.2"]
	rl.mu.Unlock()

	if stale {
		t.Fatal("stale client survived the sweep")
	}
	if !fresh {
		t.Fatal("fresh client swept away")
	}
}
