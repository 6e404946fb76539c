package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chanlun/internal/decision"
	"chanlun/internal/store"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadTOMLAppliesDefaults(t *testing.T) {
	path := writeFile(t, "chanscan.toml", `
[scanner]
symbols = ["btcusdt"]
levels = ["stroke", "segment"]

[decision]
divergence_mode = "any"
profit_threshold = 0.05
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != DriverSQLite || cfg.Store.Path == "" {
		t.Fatalf("store defaults missing: %+v", cfg.Store)
	}
	if cfg.Decision.DivergenceMode != decision.DivergenceAny || cfg.Decision.ProfitThreshold != 0.05 {
		t.Fatalf("decision not decoded: %+v", cfg.Decision)
	}
	if cfg.Decision.FreshnessWindow != 5 || cfg.Decision.MinMembers != 4 {
		t.Fatalf("decision defaults missing: %+v", cfg.Decision)
	}
	levels, err := cfg.Scanner.ParsedLevels()
	if err != nil || len(levels) != 2 || levels[1] != store.LevelSegment {
		t.Fatalf("levels=%v err=%v", levels, err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "chanscan.yml", `
store:
  driver: memory
redis:
  enabled: true
  addr: 127.0.0.1:6380
scanner:
  symbols_url: http://localhost/symbols
  concurrency: 2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != DriverMemory || cfg.Scanner.Concurrency != 2 || cfg.Redis.TTL().Seconds() != 60 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{name: "unknown ext", file: "c.json", body: "{}", want: "不支持的配置格式"},
		{name: "unknown field", file: "c.toml", body: "bogus = 1\n", want: "解析"},
		{name: "no symbols", file: "c.toml", body: "[log]\nlevel = \"debug\"\n", want: "scanner.symbols"},
		{name: "bad driver", file: "c.toml", body: "[store]\ndriver = \"mysql\"\n[scanner]\nsymbols=[\"A\"]\n", want: "store.driver"},
		{name: "bad level", file: "c.yaml", body: "scanner:\n  symbols: [A]\n  levels: [minute]\n", want: "scanner.levels"},
		{name: "redis ttl not above timeout", file: "c.toml", body: "[redis]\nenabled = true\naddr = \"127.0.0.1:6379\"\nttl_seconds = 30\n[scanner]\nsymbols=[\"A\"]\ntimeout_seconds = 30\n", want: "redis.ttl_seconds"},
		{name: "bad mode", file: "c.yaml", body: "scanner:\n  symbols: [A]\ndecision:\n  divergence_mode: both\n", want: "decision"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadRedisTTLAboveTimeout(t *testing.T) {
	cfg, err := Load(writeFile(t, "c.toml", "[redis]\nenabled = true\naddr = \"127.0.0.1:6379\"\nttl_seconds = 45\n[scanner]\nsymbols=[\"A\"]\ntimeout_seconds = 40\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Redis.TTL() <= cfg.Scanner.Timeout() {
		t.Fatalf("ttl=%v timeout=%v", cfg.Redis.TTL(), cfg.Scanner.Timeout())
	}
	// 未启用 redis 时不校验 TTL
	if _, err := Load(writeFile(t, "d.toml", "[redis]\nttl_seconds = 5\n[scanner]\nsymbols=[\"A\"]\n")); err != nil {
		t.Fatalf("disabled redis should not be validated: %v", err)
	}
}

func TestDecodeZeroProfitThreshold(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		body   string
		want   float64
	}{
		{name: "toml explicit zero", format: FormatTOML, body: "[scanner]\nsymbols=[\"A\"]\n[decision]\nprofit_threshold = 0.0\n", want: 0},
		{name: "yaml explicit zero", format: FormatYAML, body: "scanner:\n  symbols: [A]\ndecision:\n  profit_threshold: 0\n", want: 0},
		{name: "toml omitted", format: FormatTOML, body: "[scanner]\nsymbols=[\"A\"]\n[decision]\ndivergence_mode = \"any\"\n", want: 0.03},
		{name: "yaml negative falls back", format: FormatYAML, body: "scanner:\n  symbols: [A]\ndecision:\n  profit_threshold: -1\n", want: 0.03},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Decode([]byte(tt.body), tt.format)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if cfg.Decision.ProfitThreshold != tt.want {
				t.Fatalf("profit_threshold=%v want %v", cfg.Decision.ProfitThreshold, tt.want)
			}
		})
	}
}
