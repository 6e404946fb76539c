package decision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chanlun/internal/analysis/indicator"
	"chanlun/internal/analysis/pivot"
	"chanlun/internal/analysis/segment"
	"chanlun/internal/logger"
	"chanlun/internal/market"
	"chanlun/internal/store"
)

// MomentumSource 保证 feed 上所有可达 K 线带有动量缓存。
type MomentumSource interface {
	EnsureMomentum(feed *market.Feed) (market.MomentumKey, error)
}

// Classifier 结构信号分类器。单次调用同步完成，可被多个 goroutine 并发使用。
type Classifier struct {
	params   Params
	store    store.SignalStore
	locker   store.KeyLocker
	momentum MomentumSource
	rules    []Rule
}

type Option func(*Classifier)

// WithLocker 替换默认的进程内 key 锁（例如 redislock）。
func WithLocker(l store.KeyLocker) Option {
	return func(c *Classifier) {
		if l != nil {
			c.locker = l
		}
	}
}

func WithMomentum(m MomentumSource) Option {
	return func(c *Classifier) {
		if m != nil {
			c.momentum = m
		}
	}
}

func NewClassifier(p Params, st store.SignalStore, opts ...Option) (*Classifier, error) {
	if st == nil {
		return nil, errors.New("signal store 不能为空")
	}
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	c := &Classifier{
		params:   p,
		store:    st,
		locker:   store.NewMemoryKeyLocker(),
		momentum: indicator.NewMACDCache(p.MACD),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, name := range p.RuleOrder() {
		r, ok := lookupRule(name)
		if !ok {
			return nil, fmt.Errorf("未知规则: %s", name)
		}
		c.rules = append(c.rules, r)
	}
	return c, nil
}

// Classify 对单个 unit 分类。命中时先写入存储再返回；
// 领域拒绝体现在 Outcome.Reason/Err，error 仅表示存储等基础设施故障或 ctx 取消。
func (c *Classifier) Classify(ctx context.Context, u Unit) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	feed := u.Feed
	if feed == nil {
		return Outcome{}, errors.New("feed 不能为空")
	}
	if u.Level == "" {
		u.Level = store.LevelStroke
	}
	if err := feed.Validate(); err != nil {
		return rejected(u, fmt.Errorf("%w: %v", ErrStructuralAmbiguity, err), ""), nil
	}
	view := feed.AsOf(u.AsOf)
	asOf := u.AsOf
	if asOf.IsZero() && len(view.Bars) > 0 {
		asOf = view.Bars[len(view.Bars)-1].Time
	}

	members, err := c.members(view, u.Level)
	if err != nil {
		return rejected(u, err, ""), nil
	}
	if len(members) < c.params.MinMembers {
		return rejected(u, ErrInputTooShort, fmt.Sprintf("members=%d < %d", len(members), c.params.MinMembers)), nil
	}

	fx := feed.Latest
	switch {
	case fx == nil:
		return rejected(u, ErrNoRecentBottomFractal, "无分型"), nil
	case fx.Mark != market.MarkBottom:
		return rejected(u, ErrNoRecentBottomFractal, "最近分型为顶分型"), nil
	case !asOf.IsZero() && fx.Time.After(asOf):
		return rejected(u, ErrNoRecentBottomFractal, fmt.Sprintf("分型 %s 晚于截止时间 %s",
			fx.Time.Format(time.RFC3339), asOf.Format(time.RFC3339))), nil
	}
	if age := view.BarsSince(fx.Time); age > c.params.FreshnessWindow {
		return rejected(u, ErrNoRecentBottomFractal, fmt.Sprintf("分型距今 %d 根 > %d", age, c.params.FreshnessWindow)), nil
	}

	unlock, err := c.locker.Lock(ctx, store.SignalKey(feed.Symbol, feed.Freq, u.Level, fx.Time))
	if err != nil {
		return Outcome{}, fmt.Errorf("lock %s: %w", feed.Key(), err)
	}
	defer unlock()

	existing, err := c.store.Lookup(ctx, feed.Symbol, fx.Time, feed.Freq, u.Level)
	if err != nil {
		return Outcome{}, fmt.Errorf("lookup %s: %w", feed.Key(), err)
	}
	if existing != nil {
		o := rejected(u, ErrAlreadyRecorded, existing.Reason)
		o.Kind, o.Power, o.EstimatedProfit = existing.Kind, existing.Power, existing.Profit
		o.Surfaced, o.Record, o.FractalTime = existing.Surfaced, existing, fx.Time
		return o, nil
	}

	key, err := c.momentum.EnsureMomentum(feed)
	if err != nil {
		return rejected(u, fmt.Errorf("%w: %v", ErrCacheMissing, err), ""), nil
	}

	snap := &snapshot{
		ctx:     ctx,
		symbol:  feed.Symbol,
		freq:    feed.Freq,
		level:   u.Level,
		members: members,
		pivots:  pivot.Chain(members),
		pending: feed.Pending,
		fx:      fx,
		bars:    view.Bars,
		price:   view.LastPrice(),
		key:     key,
		asOf:    asOf,
		params:  c.params,
		store:   c.store,
	}
	return c.evaluate(u, snap)
}

func (c *Classifier) evaluate(u Unit, snap *snapshot) (Outcome, error) {
	var (
		failures  []string
		ambiguous error
	)
	for _, r := range c.rules {
		if err := snap.ctx.Err(); err != nil {
			return Outcome{}, err
		}
		v, err := r.Eval(snap)
		if err != nil {
			switch {
			case errors.Is(err, ErrStructuralAmbiguity):
				logger.Warnf("[classifier] %s@%s 规则 %s 结构歧义: %v", snap.symbol, snap.freq, r.Name, err)
				ambiguous = err
				continue
			case errors.Is(err, ErrCacheMissing):
				return rejected(u, err, r.Name), nil
			default:
				return Outcome{}, fmt.Errorf("rule %s: %w", r.Name, err)
			}
		}
		if !v.matched {
			logger.Infof("[classifier] %s@%s %s 不成立原因: %v", snap.symbol, snap.freq, r.Name, v.failed)
			failures = append(failures, r.Name+": "+strings.Join(v.failed, "; "))
			continue
		}
		return c.emit(u, snap, r, v)
	}
	if ambiguous != nil {
		return rejected(u, ambiguous, strings.Join(failures, " | ")), nil
	}
	o := rejected(u, nil, strings.Join(failures, " | "))
	o.Power, o.FractalTime = snap.fx.Power, snap.fx.Time
	return o, nil
}

// emit 先写入记录再返回结果；弱分型只写入不展示。
func (c *Classifier) emit(u Unit, snap *snapshot, r Rule, v verdict) (Outcome, error) {
	surfaced := !(v.weakGated && snap.fx.Power == market.PowerWeak)
	rec := store.SignalRecord{
		ID:       uuid.NewString(),
		Symbol:   snap.symbol,
		Name:     u.Feed.Name,
		Freq:     snap.freq,
		Kind:     v.kind,
		Power:    snap.fx.Power,
		Profit:   v.profit,
		Date:     snap.fx.Time,
		Reason:   r.Name,
		Level:    snap.level,
		Surfaced: surfaced,
	}
	o := Outcome{
		Symbol:          snap.symbol,
		Name:            u.Feed.Name,
		Freq:            snap.freq,
		Level:           snap.level,
		Kind:            v.kind,
		Power:           snap.fx.Power,
		EstimatedProfit: v.profit,
		Rule:            r.Name,
		Detail:          v.detail,
		Surfaced:        surfaced,
		FractalTime:     snap.fx.Time,
	}
	if err := c.store.Insert(snap.ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			o.Reason = ReasonPersistenceConflict
			o.Err = fmt.Errorf("%w: %s@%s %s", ErrPersistenceConflict, snap.symbol, snap.freq, snap.fx.Time.Format(time.RFC3339))
			o.Surfaced = false
			return o, nil
		}
		return Outcome{}, fmt.Errorf("insert %s@%s: %w", snap.symbol, snap.freq, err)
	}
	o.Record = &rec
	o.Reason = ReasonEmitted
	if !surfaced {
		o.Reason = ReasonSuppressed
		logger.Infof("[classifier] %s@%s %s 弱分型，已记录未展示", snap.symbol, snap.freq, v.kind)
	} else {
		logger.Infof("[classifier] %s@%s 命中 %s kind=%s power=%s profit=%.4f", snap.symbol, snap.freq, r.Name, v.kind, snap.fx.Power, v.profit)
	}
	return o, nil
}

func (c *Classifier) members(feed *market.Feed, level store.Level) ([]pivot.Member, error) {
	switch level {
	case store.LevelStroke:
		out := make([]pivot.Member, len(feed.Strokes))
		for i, s := range feed.Strokes {
			out[i] = s
		}
		return out, nil
	case store.LevelSegment:
		segs, err := segment.Assemble(feed.Symbol, feed.Strokes)
		if err != nil {
			if errors.Is(err, segment.ErrStructuralAmbiguity) {
				return nil, fmt.Errorf("%w: %v", ErrStructuralAmbiguity, err)
			}
			return nil, err
		}
		out := make([]pivot.Member, 0, len(segs))
		for _, s := range segs {
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: 未知级别 %q", ErrStructuralAmbiguity, level)
	}
}
