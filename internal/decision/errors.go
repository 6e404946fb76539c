package decision

import "errors"

// 领域拒绝原因。Classify 以 Outcome.Err 返回，不作为 error 抛出。
var (
	ErrInputTooShort         = errors.New("input too short")
	ErrNoRecentBottomFractal = errors.New("no recent bottom fractal")
	ErrAlreadyRecorded       = errors.New("already recorded")
	ErrCacheMissing          = errors.New("momentum cache missing")
	ErrPersistenceConflict   = errors.New("persistence conflict")
	ErrStructuralAmbiguity   = errors.New("structural ambiguity")
)

// Reason 结果原因，便于日志与报表聚合。
type Reason string

const (
	ReasonEmitted               Reason = "Emitted"
	ReasonSuppressed            Reason = "WeakFractalSuppressed"
	ReasonNoMatch               Reason = "NoMatch"
	ReasonInputTooShort         Reason = "InputTooShort"
	ReasonNoRecentBottomFractal Reason = "NoRecentBottomFractal"
	ReasonAlreadyRecorded       Reason = "AlreadyRecorded"
	ReasonCacheMissing          Reason = "CacheMissing"
	ReasonPersistenceConflict   Reason = "PersistenceConflict"
	ReasonStructuralAmbiguity   Reason = "StructuralAmbiguity"
)

var reasonByErr = []struct {
	err    error
	reason Reason
}{
	{ErrInputTooShort, ReasonInputTooShort},
	{ErrNoRecentBottomFractal, ReasonNoRecentBottomFractal},
	{ErrAlreadyRecorded, ReasonAlreadyRecorded},
	{ErrCacheMissing, ReasonCacheMissing},
	{ErrPersistenceConflict, ReasonPersistenceConflict},
	{ErrStructuralAmbiguity, ReasonStructuralAmbiguity},
}

// ReasonOf 将 sentinel 映射为 Reason，未知错误视为结构歧义。
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonNoMatch
	}
	for _, m := range reasonByErr {
		if errors.Is(err, m.err) {
			return m.reason
		}
	}
	return ReasonStructuralAmbiguity
}
