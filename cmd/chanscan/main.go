package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chanlun/internal/config"
	"chanlun/internal/config/writer"
	"chanlun/internal/logger"
	"chanlun/internal/report"
	"chanlun/internal/store"
)

func main() {
	var (
		cfgPath = flag.String("config", "configs/chanscan.toml", "配置文件路径 (.toml/.yaml)")
		initCfg = flag.Bool("init", false, "生成默认配置文件后退出")
		force   = flag.Bool("force", false, "配合 -init 覆盖已有配置")
		once    = flag.Bool("once", false, "执行一次扫描并输出结果")
		serve   = flag.Bool("serve", false, "启动定时扫描与 HTTP 接口")
		dump    = flag.String("dump", "", "输出 SYMBOL@FREQ 的笔/线段/中枢 CSV")
		list    = flag.Int("signals", 0, "输出最近 N 条已记录信号")
	)
	flag.Parse()

	if *initCfg {
		if err := writer.New(*cfgPath).Write(config.Default(), *force); err != nil {
			fmt.Fprintf(os.Stderr, "生成配置失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("已生成 %s\n", *cfgPath)
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *once, *serve, *dump, *list); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("chanscan 退出: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, once, serve bool, dump string, list int) error {
	if dump != "" {
		return dumpStructure(ctx, cfg, dump)
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case list > 0:
		recs, err := a.store.List(ctx, store.Filter{Limit: list})
		if err != nil {
			return err
		}
		report.RenderRecords(os.Stdout, recs)
		return nil
	case serve:
		return a.Serve(ctx)
	case once:
		return a.RunOnce(ctx)
	default:
		flag.Usage()
		return nil
	}
}

func dumpStructure(ctx context.Context, cfg config.Config, target string) error {
	symbol, freq, ok := strings.Cut(target, "@")
	if !ok || symbol == "" || freq == "" {
		return fmt.Errorf("-dump 格式应为 SYMBOL@FREQ: %q", target)
	}
	feed, err := newFeedSource(cfg).Load(ctx, store.NormalizeSymbol(symbol), freq)
	if err != nil {
		return err
	}
	out, err := report.RenderStructure(feed, report.CSVOptions{PricePrecision: report.PrecisionAuto})
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
