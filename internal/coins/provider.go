package coins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"chanlun/internal/logger"
	"chanlun/internal/store"
)

// SymbolProvider 提供待扫描的标的列表。
type SymbolProvider interface {
	List(ctx context.Context) ([]string, error)
	Name() string
}

// NormalizeSymbols 大写、去空、去重，保持原有顺序。
func NormalizeSymbols(symbols []string) ([]string, error) {
	if len(symbols) == 0 {
		return nil, errors.New("symbol list is empty")
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = store.NormalizeSymbol(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, errors.New("symbol list is empty after normalization")
	}
	return out, nil
}

type StaticProvider struct{ symbols []string }

func NewStaticProvider(symbols []string) *StaticProvider {
	return &StaticProvider{symbols: symbols}
}

func (p *StaticProvider) Name() string { return "static" }

func (p *StaticProvider) List(_ context.Context) ([]string, error) {
	return NormalizeSymbols(p.symbols)
}

// HTTPConfig 远程 watchlist。接口返回字符串数组或 {"symbols": [...]}。
type HTTPConfig struct {
	URL      string
	Timeout  time.Duration
	Refresh  time.Duration
	Fallback []string
}

// HTTPProvider 定期拉取远程列表，失败时回落到上次结果或 fallback。
type HTTPProvider struct {
	url      string
	client   *http.Client
	refresh  time.Duration
	fallback []string

	mu          sync.RWMutex
	symbols     []string
	lastFetched time.Time
	lastErr     error
}

func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	refresh := cfg.Refresh
	if refresh <= 0 {
		refresh = time.Hour
	}
	fallback, _ := NormalizeSymbols(cfg.Fallback)
	return &HTTPProvider{
		url:      strings.TrimSpace(cfg.URL),
		client:   &http.Client{Timeout: timeout},
		refresh:  refresh,
		fallback: fallback,
		symbols:  fallback,
	}
}

func (p *HTTPProvider) Name() string { return "http" }

func (p *HTTPProvider) List(ctx context.Context) ([]string, error) {
	err := p.Refresh(ctx)
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.symbols) == 0 {
		if err == nil {
			err = errors.New("symbol list is empty")
		}
		return nil, err
	}
	out := make([]string, len(p.symbols))
	copy(out, p.symbols)
	return out, nil
}

// Refresh 超过刷新间隔时重新拉取，合并 fallback 后排序。
func (p *HTTPProvider) Refresh(ctx context.Context) error {
	if p.url == "" {
		return nil
	}
	p.mu.RLock()
	fresh := !p.lastFetched.IsZero() && time.Since(p.lastFetched) < p.refresh
	p.mu.RUnlock()
	if fresh {
		return nil
	}

	symbols, err := p.fetch(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.lastErr = err
		logger.Warnf("[coins] 拉取 %s 失败，沿用 %d 个标的: %v", p.url, len(p.symbols), err)
		return err
	}
	p.symbols = mergeAndSort(symbols, p.fallback)
	p.lastFetched = time.Now()
	p.lastErr = nil
	logger.Infof("[coins] 更新标的列表，共 %d 个", len(p.symbols))
	return nil
}

// LastError 最近一次拉取失败的原因，成功后清空。
func (p *HTTPProvider) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

func (p *HTTPProvider) fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching symbols: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("HTTP status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var arr []string
	if err := json.Unmarshal(body, &arr); err == nil {
		return NormalizeSymbols(arr)
	}
	var obj struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return NormalizeSymbols(obj.Symbols)
}

func mergeAndSort(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
