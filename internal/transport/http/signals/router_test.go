package signals

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chanlun/internal/scanner"
	"chanlun/internal/store"
)

func seededServer(t *testing.T) *Server {
	t.Helper()
	st := store.NewMemorySignalStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, kind := range []store.SignalKind{store.KindFirstBuy, store.KindSecondBuy, store.KindFirstBuy} {
		rec := store.SignalRecord{ID: "r" + string(rune('0'+i)), Symbol: "BTCUSDT", Freq: "1d", Kind: kind, Date: base.AddDate(0, 0, i), Surfaced: i != 2, Level: store.LevelStroke}
		if err := st.Insert(ctx, rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	seg := store.SignalRecord{ID: "s0", Symbol: "BTCUSDT", Freq: "1d", Kind: store.KindFirstBuy, Date: base, Surfaced: true, Level: store.LevelSegment}
	if err := st.Insert(ctx, seg); err != nil {
		t.Fatalf("seed segment: %v", err)
	}
	r, err := NewRouter(st, func(ctx context.Context) (scanner.Batch, error) {
		return scanner.Batch{ID: "b1"}, nil
	})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	s, err := NewServer("", r)
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	return s
}

func get(t *testing.T, s *Server, method, target string) (int, map[string]json.RawMessage) {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(method, target, nil))
	var body map[string]json.RawMessage
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w.Code, body
}

func TestListSignals(t *testing.T) {
	s := seededServer(t)
	code, body := get(t, s, http.MethodGet, "/api/signals?symbol=btcusdt&kind=first-buy&level=stroke")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	var list []SignalResponse
	if err := json.Unmarshal(body["signals"], &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 || list[0].Date != "2024-05-03T00:00:00Z" {
		t.Fatalf("unexpected list %+v", list)
	}

	_, body = get(t, s, http.MethodGet, "/api/signals?symbol=BTCUSDT&surfaced=true&since=2024-05-02")
	_ = json.Unmarshal(body["signals"], &list)
	if len(list) != 1 || list[0].Kind != "second-buy" {
		t.Fatalf("unexpected filtered list %+v", list)
	}

	_, body = get(t, s, http.MethodGet, "/api/signals?level=segment")
	_ = json.Unmarshal(body["signals"], &list)
	if len(list) != 1 || list[0].ID != "s0" || list[0].Level != "segment" {
		t.Fatalf("unexpected segment list %+v", list)
	}
}

func TestListRejectsBadQuery(t *testing.T) {
	s := seededServer(t)
	for _, target := range []string{"/api/signals?limit=-1", "/api/signals?since=yesterday", "/api/signals/latest?symbol=BTCUSDT", "/api/signals?level=minute"} {
		if code, _ := get(t, s, http.MethodGet, target); code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, code)
		}
	}
}

func TestLatestSignal(t *testing.T) {
	s := seededServer(t)
	code, body := get(t, s, http.MethodGet, "/api/signals/latest?symbol=BTCUSDT&kind=first-buy")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	var rec SignalResponse
	_ = json.Unmarshal(body["signal"], &rec)
	if rec.ID != "r2" {
		t.Fatalf("unexpected latest %+v", rec)
	}
	code, body = get(t, s, http.MethodGet, "/api/signals/latest?symbol=BTCUSDT&kind=first-buy&level=segment")
	if code != http.StatusOK {
		t.Fatalf("segment latest status %d", code)
	}
	_ = json.Unmarshal(body["signal"], &rec)
	if rec.ID != "s0" {
		t.Fatalf("segment latest should ignore stroke records, got %+v", rec)
	}
	if code, _ := get(t, s, http.MethodGet, "/api/signals/latest?symbol=ETHUSDT&kind=first-buy"); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestScanTrigger(t *testing.T) {
	s := seededServer(t)
	code, body := get(t, s, http.MethodPost, "/api/signals/scan")
	if code != http.StatusOK || string(body["batch"]) != `"b1"` {
		t.Fatalf("status %d body %v", code, body)
	}
}
