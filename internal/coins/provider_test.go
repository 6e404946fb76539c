package coins

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNormalizeSymbols(t *testing.T) {
	got, err := NormalizeSymbols([]string{" btcusdt", "ETHUSDT", "", "BTCUSDT"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(got) != 2 || got[0] != "BTCUSDT" || got[1] != "ETHUSDT" {
		t.Fatalf("unexpected %v", got)
	}
	if _, err := NormalizeSymbols([]string{" "}); err == nil {
		t.Fatalf("expected error for blank list")
	}
}

func TestHTTPProviderMergesAndCaches(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"symbols":["solusdt","btcusdt"]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPConfig{URL: srv.URL, Refresh: time.Minute, Fallback: []string{"ETHUSDT"}})
	for i := 0; i < 2; i++ {
		got, err := p.List(context.Background())
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 3 || got[0] != "BTCUSDT" || got[2] != "SOLUSDT" {
			t.Fatalf("unexpected %v", got)
		}
	}
	if hits != 1 {
		t.Fatalf("expected one fetch within refresh window, got %d", hits)
	}
}

func TestHTTPProviderFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPConfig{URL: srv.URL, Fallback: []string{"ethusdt"}})
	got, err := p.List(context.Background())
	if err != nil || len(got) != 1 || got[0] != "ETHUSDT" {
		t.Fatalf("expected fallback, got %v err=%v", got, err)
	}

	empty := NewHTTPProvider(HTTPConfig{URL: srv.URL})
	if _, err := empty.List(context.Background()); err == nil {
		t.Fatalf("expected error without fallback")
	}
}
