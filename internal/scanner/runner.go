package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"chanlun/internal/coins"
	"chanlun/internal/decision"
	"chanlun/internal/logger"
	"chanlun/internal/market"
	"chanlun/internal/store"
)

// Classifier 单元分类，由 decision.Classifier 实现。
type Classifier interface {
	Classify(ctx context.Context, u decision.Unit) (decision.Outcome, error)
}

// Job 一个待分类单元。
type Job struct {
	Symbol string
	Freq   string
	Level  store.Level
}

func (j Job) String() string { return fmt.Sprintf("%s@%s/%s", j.Symbol, j.Freq, j.Level) }

// Result 单元结果。Err 为加载或基础设施错误，领域拒绝在 Outcome 中。
type Result struct {
	Job     Job
	Outcome decision.Outcome
	Err     error
	Elapsed time.Duration
}

// Batch 一次扫描的全部结果，顺序与 Jobs 一致。
type Batch struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Results  []Result
}

// Summary 按原因统计，加载失败计入 "Error"。
func (b Batch) Summary() map[string]int {
	out := make(map[string]int)
	for _, r := range b.Results {
		if r.Err != nil {
			out["Error"]++
			continue
		}
		out[string(r.Outcome.Reason)]++
	}
	return out
}

// Emitted 返回本批写入的信号结果（含弱分型未展示的）。
func (b Batch) Emitted() []Result {
	var out []Result
	for _, r := range b.Results {
		if r.Err == nil && r.Outcome.Record != nil {
			out = append(out, r)
		}
	}
	return out
}

type RunnerConfig struct {
	Classifier  Classifier
	Feeds       market.FeedSource
	Symbols     coins.SymbolProvider
	Freqs       []string
	Levels      []store.Level
	Concurrency int
	Timeout     time.Duration
}

// Runner 有界并发地对 symbols×freqs×levels 逐个分类，单元之间互不影响。
type Runner struct {
	classifier  Classifier
	feeds       market.FeedSource
	symbols     coins.SymbolProvider
	freqs       []string
	levels      []store.Level
	concurrency int
	timeout     time.Duration
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Classifier == nil {
		return nil, errors.New("classifier 不能为空")
	}
	if cfg.Feeds == nil {
		return nil, errors.New("feed source 不能为空")
	}
	if cfg.Symbols == nil {
		return nil, errors.New("symbol provider 不能为空")
	}
	if len(cfg.Freqs) == 0 {
		return nil, errors.New("freqs 不能为空")
	}
	levels := cfg.Levels
	if len(levels) == 0 {
		levels = []store.Level{store.LevelStroke}
	}
	n := cfg.Concurrency
	if n <= 0 {
		n = 4
	}
	return &Runner{
		classifier:  cfg.Classifier,
		feeds:       cfg.Feeds,
		symbols:     cfg.Symbols,
		freqs:       append([]string(nil), cfg.Freqs...),
		levels:      append([]store.Level(nil), levels...),
		concurrency: n,
		timeout:     cfg.Timeout,
	}, nil
}

// Jobs 展开当前 watchlist。
func (r *Runner) Jobs(ctx context.Context) ([]Job, error) {
	symbols, err := r.symbols.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取标的列表(%s)失败: %w", r.symbols.Name(), err)
	}
	jobs := make([]Job, 0, len(symbols)*len(r.freqs)*len(r.levels))
	for _, s := range symbols {
		for _, f := range r.freqs {
			for _, lv := range r.levels {
				jobs = append(jobs, Job{Symbol: s, Freq: f, Level: lv})
			}
		}
	}
	return jobs, nil
}

func (r *Runner) Run(ctx context.Context) (Batch, error) {
	jobs, err := r.Jobs(ctx)
	if err != nil {
		return Batch{}, err
	}
	return r.RunJobs(ctx, jobs)
}

// RunJobs 执行给定单元。只有 ctx 取消时返回 error，其余失败记录在对应 Result。
func (r *Runner) RunJobs(ctx context.Context, jobs []Job) (Batch, error) {
	b := Batch{ID: uuid.NewString(), Started: time.Now(), Results: make([]Result, len(jobs))}
	logger.Infof("[scanner] batch=%s 开始，单元=%d 并发=%d", b.ID, len(jobs), r.concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		i, job := i, job
		g.Go(func() error {
			b.Results[i] = r.runOne(gctx, job)
			return nil
		})
	}
	_ = g.Wait()
	b.Finished = time.Now()
	if err := ctx.Err(); err != nil {
		return b, err
	}
	logger.Infof("[scanner] batch=%s 完成，用时 %s，统计 %s", b.ID, b.Finished.Sub(b.Started).Round(time.Millisecond), formatSummary(b.Summary()))
	return b, nil
}

func (r *Runner) runOne(ctx context.Context, job Job) (res Result) {
	res.Job = job
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("%w: panic: %v", decision.ErrStructuralAmbiguity, p)
			logger.Errorf("[scanner] %s panic 已恢复: %v", job, p)
			res.Outcome = decision.Outcome{
				Symbol: job.Symbol,
				Freq:   job.Freq,
				Level:  job.Level,
				Kind:   store.KindOther,
				Reason: decision.ReasonStructuralAmbiguity,
				Err:    err,
			}
			res.Err = nil
		}
		res.Elapsed = time.Since(start)
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	feed, err := r.feeds.Load(ctx, job.Symbol, job.Freq)
	if err != nil {
		logger.Warnf("[scanner] %s 加载 feed(%s) 失败: %v", job, r.feeds.Name(), err)
		res.Err = err
		return res
	}
	if rep, err := feed.Integrity(); err == nil && !rep.Complete() {
		logger.Warnf("[scanner] %s K 线缺失 %d 段，共 %d/%d 根", job, len(rep.Gaps), rep.Present, rep.Expected)
	}
	out, err := r.classifier.Classify(ctx, decision.Unit{Feed: feed, Level: job.Level})
	if err != nil {
		logger.Errorf("[scanner] %s 分类失败: %v", job, err)
		res.Err = err
		return res
	}
	res.Outcome = out
	if out.Reason == decision.ReasonPersistenceConflict {
		logger.Warnf("[scanner] %s 写入冲突，跳过: %v", job, out.Err)
	}
	return res
}

func formatSummary(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return fmt.Sprint(parts)
}

var _ Classifier = (*decision.Classifier)(nil)
