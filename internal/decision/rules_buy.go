package decision

import (
	"errors"
	"fmt"
	"time"

	"chanlun/internal/analysis/indicator"
	"chanlun/internal/analysis/pivot"
	"chanlun/internal/market"
	"chanlun/internal/store"
)

// recentLeg 取最近一段走势，找不到最高点所在的向下成员时返回结构歧义。
func (s *snapshot) recentLeg() (pivot.Pivot[pivot.Member], bool, error) {
	leg, err := pivot.SelectRecentLeg(s.pivots)
	if errors.Is(err, pivot.ErrNoPivot) {
		return leg, false, nil
	}
	if err != nil {
		return leg, false, fmt.Errorf("%w: %s@%s members=%d: %v", ErrStructuralAmbiguity, s.symbol, s.freq, len(s.members), err)
	}
	return leg, true, nil
}

// consolidationConds 盘整背驰的公共条件。
func (s *snapshot) consolidationConds(leg pivot.Pivot[pivot.Member]) ([]cond, error) {
	a, b := leg.First(), leg.Last()
	ma, err := measure(a, s.key)
	if err != nil {
		return nil, err
	}
	mb, err := measure(b, s.key)
	if err != nil {
		return nil, err
	}
	bLow, _ := b.PriceRange()
	div := compare(ma, mb)
	cs := []cond{{leg.Valid(), "最近中枢有效"}}
	cs = append(cs, s.pendingUp()...)
	cs = append(cs,
		cond{leg.StartDirection() == market.Down, "中枢起始成员向下"},
		cond{leg.EndDirection() == market.Down, "中枢结束成员向下"},
		cond{leg.DD() == bLow, fmt.Sprintf("中枢最低点 %.4f == B 段低点 %.4f", leg.DD(), bLow)},
		cond{div.holds(s.params.DivergenceMode), fmt.Sprintf("背驰(%s): %s difA=%.4f difB=%.4f areaA=%.4f areaB=%.4f",
			s.params.DivergenceMode, div, ma.MinDif, mb.MinDif, ma.NegArea, mb.NegArea)},
	)
	return cs, nil
}

// evalConsolidationDivergence 盘整背驰一买。
func evalConsolidationDivergence(s *snapshot) (verdict, error) {
	leg, ok, err := s.recentLeg()
	if err != nil {
		return verdict{}, err
	}
	if !ok {
		return notMatched(cond{false, "无中枢"}), nil
	}
	cs, err := s.consolidationConds(leg)
	if err != nil {
		return verdict{}, err
	}
	if failed := failedConditions(cs...); len(failed) > 0 {
		return verdict{failed: failed}, nil
	}
	return verdict{
		matched:   true,
		kind:      store.KindFirstBuy,
		profit:    s.profitTo(leg.ZD()),
		weakGated: true,
		detail:    fmt.Sprintf("盘整背驰 leg=%s", leg),
	}, nil
}

// evalMASupport 长期均线向上且有支撑时的强势盘整背驰。
func evalMASupport(s *snapshot) (verdict, error) {
	high := 0.0
	if n := len(s.bars); n > 0 {
		high = s.bars[n-1].High
	}
	support, err := indicator.MASupport(s.bars, s.params.MAPeriod, 2, high)
	if errors.Is(err, indicator.ErrInsufficientBars) {
		return notMatched(cond{false, fmt.Sprintf("K 线不足 %d 根", s.params.MAPeriod)}), nil
	}
	if err != nil {
		return verdict{}, err
	}
	if !support {
		return notMatched(cond{false, fmt.Sprintf("SMA%d 未向上或价格在均线下方", s.params.MAPeriod)}), nil
	}
	leg, ok, err := s.recentLeg()
	if err != nil {
		return verdict{}, err
	}
	if !ok {
		return notMatched(cond{false, "无中枢"}), nil
	}
	cs, err := s.consolidationConds(leg)
	if err != nil {
		return verdict{}, err
	}
	if failed := failedConditions(cs...); len(failed) > 0 {
		return verdict{failed: failed}, nil
	}
	return verdict{
		matched: true,
		kind:    store.KindConsolidationDivergence,
		profit:  0,
		detail:  fmt.Sprintf("SMA%d 支撑 leg=%s", s.params.MAPeriod, leg),
	}, nil
}

// evalTrendDivergence 趋势背驰一买：后两个中枢依次下移，最后一段相对前一段背驰。
func evalTrendDivergence(s *snapshot) (verdict, error) {
	if len(s.pivots) < 3 {
		return notMatched(cond{false, fmt.Sprintf("中枢数=%d < 3", len(s.pivots))}), nil
	}
	z2, z3 := s.pivots[len(s.pivots)-2], s.pivots[len(s.pivots)-1]
	if !z3.Valid() {
		return notMatched(cond{false, "最后中枢无效"}), nil
	}
	a, b := z2.Last(), z3.Last()
	ma, err := measure(a, s.key)
	if err != nil {
		return verdict{}, err
	}
	mb, err := measure(b, s.key)
	if err != nil {
		return verdict{}, err
	}
	aLow, aHigh := a.PriceRange()
	bLow, bHigh := b.PriceRange()
	pa := market.PowerOf(a.Trend(), aLow, aHigh, a.RawBars())
	pb := market.PowerOf(b.Trend(), bLow, bHigh, b.RawBars())
	div := compare(ma, mb)
	profit := s.profitTo(z3.ZD())

	cs := s.pendingUp()
	cs = append(cs,
		cond{s.pending != nil && s.pending.Low < z3.ZD(), "未完成笔低点 < 最后中枢 zd"},
		cond{z2.ZD() > z3.ZG(), fmt.Sprintf("前中枢 zd %.4f > 后中枢 zg %.4f", z2.ZD(), z3.ZG())},
		cond{div.DifOK, fmt.Sprintf("difB %.4f 未高于 difA %.4f", mb.MinDif, ma.MinDif)},
		cond{div.AreaOK, fmt.Sprintf("|areaB| %.4f 未小于 |areaA| %.4f", mb.NegArea, ma.NegArea)},
		cond{profit >= s.params.ProfitThreshold, fmt.Sprintf("预期收益 %.4f < %.4f", profit, s.params.ProfitThreshold)},
		cond{bLow == z3.DD(), "B 段低点为中枢最低点"},
		cond{pb.StrongerThan(pa, s.params.TrendChangeRatio), fmt.Sprintf("B 段幅度 %s 不足 A 段 %s 的 %.0f%%",
			pb.Change.StringFixed(4), pa.Change.StringFixed(4), s.params.TrendChangeRatio*100)},
	)
	if failed := failedConditions(cs...); len(failed) > 0 {
		return verdict{failed: failed}, nil
	}
	return verdict{
		matched:   true,
		kind:      store.KindFirstBuy,
		profit:    profit,
		weakGated: true,
		detail:    fmt.Sprintf("趋势背驰 z2=%s z3=%s", z2, z3),
	}, nil
}

// evalDescendingRecovery 三个依次下移的中枢之后，未完成笔跌破最后中枢再收回。
func evalDescendingRecovery(s *snapshot) (verdict, error) {
	if len(s.pivots) < 3 {
		return notMatched(cond{false, fmt.Sprintf("中枢数=%d < 3", len(s.pivots))}), nil
	}
	n := len(s.pivots)
	p1, p2, p3 := s.pivots[n-3], s.pivots[n-2], s.pivots[n-1]
	profit := s.profitTo(p3.ZG())
	cs := []cond{
		{p1.ZD() > p2.ZG(), fmt.Sprintf("P1.zd %.4f > P2.zg %.4f", p1.ZD(), p2.ZG())},
		{p2.ZD() > p3.ZG(), fmt.Sprintf("P2.zd %.4f > P3.zg %.4f", p2.ZD(), p3.ZG())},
		{p3.Valid(), "P3 有效"},
	}
	cs = append(cs, s.pendingUp()...)
	cs = append(cs,
		cond{s.pending != nil && s.pending.Low < p3.ZD(), "未完成笔低点 < P3.zd"},
		cond{s.fx.Low >= p3.ZD() && s.fx.Low <= p3.ZG(), fmt.Sprintf("分型低点 %.4f 回到 [%.4f, %.4f]", s.fx.Low, p3.ZD(), p3.ZG())},
		cond{profit >= s.params.ProfitThreshold, fmt.Sprintf("预期收益 %.4f < %.4f", profit, s.params.ProfitThreshold)},
	)
	if failed := failedConditions(cs...); len(failed) > 0 {
		return verdict{failed: failed}, nil
	}
	return verdict{
		matched: true,
		kind:    store.KindThirdBuy,
		profit:  profit,
		detail:  fmt.Sprintf("下移中枢收回 P3=%s", p3),
	}, nil
}

// evalPostFirstBuy 近期有一买时判断二买、三买。
func evalPostFirstBuy(s *snapshot) (verdict, error) {
	if s.store == nil {
		return notMatched(cond{false, "未配置信号存储"}), nil
	}
	prior, err := s.store.Latest(s.ctx, s.symbol, s.level, store.KindFirstBuy)
	if err != nil {
		return verdict{}, fmt.Errorf("查询一买: %w", err)
	}
	lookback := s.asOf.AddDate(0, 0, -s.params.LookbackDays)
	if prior == nil || prior.Date.Before(lookback) || prior.Date.After(s.asOf) {
		return notMatched(cond{false, fmt.Sprintf("近 %d 天无一买", s.params.LookbackDays)}), nil
	}
	since := startOfDay(prior.Date)
	members := pivot.Since(s.members, since)
	if len(members) == 0 {
		return notMatched(cond{false, "一买后无成员"}), nil
	}
	chain := pivot.Chain(members)
	cs := []cond{{len(chain) > 0 && len(chain) < 3, fmt.Sprintf("一买后中枢数=%d 不在 [1,2]", len(chain))}}
	cs = append(cs, s.pendingUp()...)
	if failed := failedConditions(cs...); len(failed) > 0 {
		return verdict{failed: failed}, nil
	}

	z1 := chain[0]
	if len(chain) == 2 && s.fx.Low > z1.ZG() && chain[1].Len() < 3 {
		return verdict{
			matched: true,
			kind:    store.KindThirdBuy,
			profit:  s.profitTo(chain[1].GG()),
			detail:  fmt.Sprintf("一买 %s 后三买 z1=%s", prior.Date.Format("2006-01-02"), z1),
		}, nil
	}
	if s.fx.Low < z1.ZG() && len(chain) == 1 && z1.Len() > 2 {
		// 二买要求动能回升：柱子缩短并放大，dif/dea 回到零轴上方
		first, err := measure(members[0], s.key)
		if err != nil {
			return verdict{}, err
		}
		last, prev, err := latestMomentum(s.bars, s.key)
		if err != nil {
			return verdict{}, err
		}
		limit := first.PeakHist * s.params.HistDecayRatio
		failed := failedConditions(
			cond{absf(last.Hist) < limit, fmt.Sprintf("|hist| %.4f >= %.4f", absf(last.Hist), limit)},
			cond{last.Hist > prev.Hist, "柱子未放大"},
			cond{last.Dif > 0, "dif <= 0"},
			cond{last.Dea > 0, "dea <= 0"},
		)
		if len(failed) > 0 {
			return verdict{failed: failed}, nil
		}
		return verdict{
			matched:   true,
			kind:      store.KindSecondBuy,
			profit:    s.profitTo(z1.ZG()),
			weakGated: true,
			detail:    fmt.Sprintf("一买 %s 后二买 z1=%s", prior.Date.Format("2006-01-02"), z1),
		}, nil
	}
	return notMatched(cond{false, fmt.Sprintf("分型低点 %.4f 与 z1.zg %.4f 不构成二三买", s.fx.Low, z1.ZG())}), nil
}

// evalPivotElevation 中枢上移三买：前中枢足够大，后中枢起止均为向下成员且整体在前中枢上方。
func evalPivotElevation(s *snapshot) (verdict, error) {
	if len(s.pivots) < 2 {
		return notMatched(cond{false, "中枢不够"}), nil
	}
	z1, z2 := s.pivots[len(s.pivots)-2], s.pivots[len(s.pivots)-1]
	need := s.params.ElevationMembers(s.level)
	cs := []cond{
		{z1.Len() >= need, fmt.Sprintf("前中枢成员 %d < %d", z1.Len(), need)},
		{z2.Len() >= 3, fmt.Sprintf("后中枢成员 %d < 3", z2.Len())},
	}
	cs = append(cs, s.pendingUp()...)
	cs = append(cs,
		cond{z2.StartDirection() == market.Down, "后中枢起始成员向下"},
		cond{z2.EndDirection() == market.Down, "后中枢结束成员向下"},
		cond{z1.ZG() < s.fx.Low, fmt.Sprintf("前中枢 zg %.4f < 分型低点 %.4f", z1.ZG(), s.fx.Low)},
	)
	if failed := failedConditions(cs...); len(failed) > 0 {
		return verdict{failed: failed}, nil
	}
	return verdict{
		matched:   true,
		kind:      store.KindThirdBuy,
		profit:    s.profitTo(z2.ZG()),
		weakGated: true,
		detail:    fmt.Sprintf("中枢上移 z1=%s z2=%s", z1, z2),
	}, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
