package writer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"chanlun/internal/config"
)

func TestWriteThenLoad(t *testing.T) {
	for _, name := range []string{"chanscan.toml", "chanscan.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "conf", name)
			w := New(path)
			cfg := config.Default()
			cfg.Scanner.Concurrency = 9
			if err := w.Write(cfg, false); err != nil {
				t.Fatalf("write: %v", err)
			}
			got, err := config.Load(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got.Scanner.Concurrency != 9 || got.Decision.ProfitThreshold != cfg.Decision.ProfitThreshold {
				t.Fatalf("unexpected config %+v", got)
			}
		})
	}
}

func TestWriteRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chanscan.toml")
	w := New(path)
	if err := w.Write(config.Default(), false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(config.Default(), false); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if err := w.Write(config.Default(), true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(filepath.Dir(path), "backups"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one backup, got %d err=%v", len(entries), err)
	}
}
