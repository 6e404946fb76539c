package signals

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"chanlun/internal/logger"
	"chanlun/internal/scanner"
	"chanlun/internal/store"
)

// ScanFunc 手动触发一次扫描。
type ScanFunc func(ctx context.Context) (scanner.Batch, error)

// Router 信号查询接口。
type Router struct {
	store store.SignalStore
	scan  ScanFunc
}

func NewRouter(st store.SignalStore, scan ScanFunc) (*Router, error) {
	if st == nil {
		return nil, errors.New("signal store 不能为空")
	}
	return &Router{store: st, scan: scan}, nil
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("", r.handleList)
	group.GET("/latest", r.handleLatest)
	if r.scan != nil {
		group.POST("/scan", r.handleScan)
	}
}

// SignalResponse 对外输出的信号记录。
type SignalResponse struct {
	ID       string  `json:"id"`
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name,omitempty"`
	Freq     string  `json:"freq"`
	Level    string  `json:"level"`
	Kind     string  `json:"kind"`
	Power    string  `json:"power"`
	Profit   float64 `json:"profit"`
	Date     string  `json:"date"`
	Reason   string  `json:"reason"`
	Surfaced bool    `json:"surfaced"`
}

func toResponse(rec store.SignalRecord) SignalResponse {
	return SignalResponse{
		ID:       rec.ID,
		Symbol:   rec.Symbol,
		Name:     rec.Name,
		Freq:     rec.Freq,
		Level:    string(rec.Level),
		Kind:     string(rec.Kind),
		Power:    string(rec.Power),
		Profit:   rec.Profit,
		Date:     rec.Date.UTC().Format(time.RFC3339),
		Reason:   rec.Reason,
		Surfaced: rec.Surfaced,
	}
}

func (r *Router) handleList(c *gin.Context) {
	level, ok := parseLevel(c.Query("level"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "level 非法"})
		return
	}
	f := store.Filter{
		Symbol: c.Query("symbol"),
		Freq:   c.Query("freq"),
		Kind:   store.SignalKind(c.Query("kind")),
		Level:  level,
	}
	if raw := c.Query("since"); raw != "" {
		since, err := parseSince(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since 非法"})
			return
		}
		f.Since = since
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit 非法"})
		return
	}
	f.Limit = limit
	onlySurfaced := c.Query("surfaced") == "true"

	recs, err := r.store.List(c.Request.Context(), f)
	if err != nil {
		logger.Errorf("[signals-api] list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]SignalResponse, 0, len(recs))
	for _, rec := range recs {
		if onlySurfaced && !rec.Surfaced {
			continue
		}
		out = append(out, toResponse(rec))
	}
	c.JSON(http.StatusOK, gin.H{"signals": out})
}

func (r *Router) handleLatest(c *gin.Context) {
	symbol := c.Query("symbol")
	kind := c.Query("kind")
	if symbol == "" || kind == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol/kind 必填"})
		return
	}
	level, ok := parseLevel(c.Query("level"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "level 非法"})
		return
	}
	rec, err := r.store.Latest(c.Request.Context(), symbol, level, store.SignalKind(kind))
	if err != nil {
		logger.Errorf("[signals-api] latest failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "signal not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signal": toResponse(*rec)})
}

// parseLevel 空值表示不按级别过滤。
func parseLevel(raw string) (store.Level, bool) {
	switch lv := store.Level(strings.ToLower(strings.TrimSpace(raw))); lv {
	case "", store.LevelStroke, store.LevelSegment:
		return lv, true
	default:
		return "", false
	}
}

func (r *Router) handleScan(c *gin.Context) {
	batch, err := r.scan(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	emitted := make([]gin.H, 0)
	for _, res := range batch.Emitted() {
		emitted = append(emitted, gin.H{"unit": res.Job.String(), "kind": res.Outcome.Kind, "surfaced": res.Outcome.Surfaced})
	}
	c.JSON(http.StatusOK, gin.H{"batch": batch.ID, "summary": batch.Summary(), "emitted": emitted})
}

func parseSince(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}
