package decision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chanlun/internal/analysis/pivot"
	"chanlun/internal/market"
	"chanlun/internal/store"
)

const (
	RuleMASupport               = "ma-support"
	RuleConsolidationDivergence = "consolidation-divergence"
	RuleTrendDivergence         = "trend-divergence"
	RuleDescendingRecovery      = "descending-recovery"
	RulePostFirstBuy            = "post-first-buy"
	RulePivotElevation          = "pivot-elevation"
)

var defaultRuleOrder = []string{
	RuleConsolidationDivergence,
	RuleTrendDivergence,
	RuleDescendingRecovery,
	RulePostFirstBuy,
	RulePivotElevation,
}

// snapshot 规则求值的只读输入。
type snapshot struct {
	ctx     context.Context
	symbol  string
	freq    string
	level   store.Level
	members []pivot.Member
	pivots  []pivot.Pivot[pivot.Member]
	pending *market.PendingStroke
	fx      *market.Fractal
	bars    []*market.Bar
	price   float64
	key     market.MomentumKey
	asOf    time.Time
	params  Params
	store   store.SignalStore
}

// pendingUp 未完成笔向上且内部分型少于 2 个。
func (s *snapshot) pendingUp() []cond {
	up := s.pending != nil && s.pending.Direction == market.Up
	fxs := -1
	if s.pending != nil {
		fxs = s.pending.Fractals
	}
	return []cond{
		{up, "未完成笔向上"},
		{up && fxs < 2, fmt.Sprintf("未完成笔分型数=%d < 2", fxs)},
	}
}

func (s *snapshot) profitTo(target float64) float64 {
	if s.price == 0 {
		return 0
	}
	return (target - s.price) / s.price
}

// verdict 单条规则的判定结果。
type verdict struct {
	matched   bool
	kind      store.SignalKind
	profit    float64
	weakGated bool
	failed    []string
	detail    string
}

type cond struct {
	ok   bool
	desc string
}

func failedConditions(cs ...cond) []string {
	var out []string
	for _, c := range cs {
		if !c.ok {
			out = append(out, c.desc)
		}
	}
	return out
}

func notMatched(cs ...cond) verdict {
	return verdict{failed: failedConditions(cs...)}
}

// Rule 信号类型注册项：判定函数与其可调参数。
type Rule struct {
	Name string
	Eval func(s *snapshot) (verdict, error)
}

var ruleRegistry = map[string]Rule{}

func registerRule(r Rule) {
	if _, dup := ruleRegistry[r.Name]; dup {
		panic("duplicate rule: " + r.Name)
	}
	ruleRegistry[r.Name] = r
}

func lookupRule(name string) (Rule, bool) {
	r, ok := ruleRegistry[strings.TrimSpace(name)]
	return r, ok
}

// RuleNames 已注册规则，按默认顺序。
func RuleNames() []string {
	return append([]string{RuleMASupport}, defaultRuleOrder...)
}

func init() {
	registerRule(Rule{Name: RuleMASupport, Eval: evalMASupport})
	registerRule(Rule{Name: RuleConsolidationDivergence, Eval: evalConsolidationDivergence})
	registerRule(Rule{Name: RuleTrendDivergence, Eval: evalTrendDivergence})
	registerRule(Rule{Name: RuleDescendingRecovery, Eval: evalDescendingRecovery})
	registerRule(Rule{Name: RulePostFirstBuy, Eval: evalPostFirstBuy})
	registerRule(Rule{Name: RulePivotElevation, Eval: evalPivotElevation})
}
