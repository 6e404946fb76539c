package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"chanlun/internal/logger"
)

// BatchHandler 接收每次定时扫描的结果。
type BatchHandler func(Batch)

// Scheduler 按 cron 表达式周期执行 Runner，上一次未结束时跳过本次。
type Scheduler struct {
	cron    *cron.Cron
	runner  *Runner
	handler BatchHandler
	spec    string

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	id     cron.EntryID
}

type cronLogger struct{}

func (cronLogger) Printf(format string, args ...interface{}) {
	logger.Debugf("[cron] "+format, args...)
}

func NewScheduler(spec string, runner *Runner, handler BatchHandler) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("runner 不能为空")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("cron 表达式无效 %q: %w", spec, err)
	}
	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(cronLogger{})),
		cron.SkipIfStillRunning(cron.PrintfLogger(cronLogger{})),
	))
	return &Scheduler{cron: c, runner: runner, handler: handler, spec: spec}, nil
}

// Start 注册任务并启动调度，ctx 取消时停止。
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler 已启动")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	id, err := s.cron.AddFunc(s.spec, s.tick)
	if err != nil {
		s.cancel()
		s.cancel = nil
		return err
	}
	s.id = id
	s.cron.Start()
	logger.Infof("[scanner] 定时扫描已启动 spec=%q next=%s", s.spec, s.Next().Format(time.DateTime))
	go func() {
		<-s.ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) tick() {
	batch, err := s.runner.Run(s.ctx)
	if err != nil {
		logger.Warnf("[scanner] 定时扫描失败: %v", err)
		return
	}
	if s.handler != nil {
		s.handler(batch)
	}
}

// Next 下一次触发时间，未启动时为零值。
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.id).Next
}

// Stop 停止调度并等待正在执行的扫描结束。
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-s.cron.Stop().Done()
}
