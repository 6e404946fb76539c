package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"chanlun/internal/coins"
	"chanlun/internal/config"
	"chanlun/internal/decision"
	"chanlun/internal/gateway/database"
	"chanlun/internal/gateway/redislock"
	"chanlun/internal/logger"
	"chanlun/internal/market"
	"chanlun/internal/report"
	"chanlun/internal/scanner"
	"chanlun/internal/store"
	httpsignals "chanlun/internal/transport/http/signals"
)

// app 按配置装配存储、锁、分类器与扫描器。
type app struct {
	cfg     config.Config
	store   store.SignalStore
	runner  *scanner.Runner
	closers []func() error
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	a.store = st

	opts := []decision.Option{}
	if cfg.Redis.Enabled {
		l, err := redislock.NewFromAddr(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, redislock.Options{
			Prefix: cfg.Redis.Prefix,
			TTL:    cfg.Redis.TTL(),
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("连接 redis 失败: %w", err)
		}
		a.closers = append(a.closers, l.Close)
		opts = append(opts, decision.WithLocker(l))
		logger.Infof("使用 redis 分布式锁 %s", cfg.Redis.Addr)
	}
	classifier, err := decision.NewClassifier(cfg.Decision, st, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	levels, err := cfg.Scanner.ParsedLevels()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.runner, err = scanner.NewRunner(scanner.RunnerConfig{
		Classifier:  classifier,
		Feeds:       newFeedSource(cfg),
		Symbols:     newSymbolProvider(cfg),
		Freqs:       cfg.Scanner.Freqs,
		Levels:      levels,
		Concurrency: cfg.Scanner.Concurrency,
		Timeout:     cfg.Scanner.Timeout(),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore() (store.SignalStore, error) {
	switch a.cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warnf("使用内存信号存储，重启后记录丢失")
		return store.NewMemorySignalStore(), nil
	default:
		s, err := database.NewSignalLogStore(a.cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	}
}

func newFeedSource(cfg config.Config) market.FeedSource {
	return market.NewFileFeedSource(cfg.Scanner.FeedDir)
}

func newSymbolProvider(cfg config.Config) coins.SymbolProvider {
	if cfg.Scanner.SymbolsURL != "" {
		return coins.NewHTTPProvider(coins.HTTPConfig{
			URL:      cfg.Scanner.SymbolsURL,
			Refresh:  time.Duration(cfg.Scanner.RefreshSeconds) * time.Second,
			Fallback: cfg.Scanner.Symbols,
		})
	}
	return coins.NewStaticProvider(cfg.Scanner.Symbols)
}

func (a *app) RunOnce(ctx context.Context) error {
	batch, err := a.runner.Run(ctx)
	if err != nil {
		return err
	}
	printBatch(batch)
	return nil
}

// Serve 同时运行定时扫描与 HTTP 接口，任一失败或 ctx 取消即退出。
func (a *app) Serve(ctx context.Context) error {
	sched, err := scanner.NewScheduler(a.cfg.Scanner.Cron, a.runner, printBatch)
	if err != nil {
		return err
	}
	router, err := httpsignals.NewRouter(a.store, a.runner.Run)
	if err != nil {
		return err
	}
	srv, err := httpsignals.NewServer(a.cfg.HTTP.Addr, router)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sched.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		sched.Stop()
		return nil
	})
	g.Go(func() error {
		logger.Infof("HTTP 接口监听 %s", a.cfg.HTTP.Addr)
		return srv.Start(gctx)
	})
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warnf("关闭资源失败: %v", err)
		}
	}
	a.closers = nil
}

func printBatch(b scanner.Batch) {
	outcomes := make([]decision.Outcome, 0, len(b.Results))
	for _, r := range b.Results {
		if r.Err == nil {
			outcomes = append(outcomes, r.Outcome)
		}
	}
	fmt.Fprintf(os.Stdout, "batch %s\n", b.ID)
	report.RenderOutcomes(os.Stdout, outcomes, false)
	report.RenderSummary(os.Stdout, b.Summary())
}
