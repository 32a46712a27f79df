package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"librarydesk/internal/circulation"
	"librarydesk/internal/model"
	"librarydesk/internal/pkg/dedup"
	"librarydesk/internal/pkg/metrics"
	"librarydesk/internal/pkg/notify"
)

// OverdueLister 提供逾期记录的查询能力。
type OverdueLister interface {
	ListOverdue(ctx context.Context, today string) ([]circulation.OverdueRecord, error)
}

// Scheduler 周期性扫描逾期借阅并发送提醒邮件。
//
// 每条记录每天最多提醒一次，去重标记存在 Redis 里。
type Scheduler struct {
	circ     OverdueLister
	notifier notify.Notifier
	marker   *dedup.Marker
	logger   *slog.Logger
	interval time.Duration
}

// New 创建逾期提醒调度器。
func New(circ OverdueLister, notifier notify.Notifier, marker *dedup.Marker, logger *slog.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{
		circ:     circ,
		notifier: notifier,
		marker:   marker,
		logger:   logger,
		interval: interval,
	}
}

// Run 启动调度循环，直到 ctx 取消。
//
// 启动后立即执行一次扫描，之后按固定间隔执行。
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("reminder scheduler started",
		slog.Duration("interval", s.interval))

	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep 执行一次逾期扫描。
//
// 单条记录的失败只记日志，不中断整轮扫描。
func (s *Scheduler) Sweep(ctx context.Context) {
	today := time.Now().Format(model.DateLayout)

	records, err := s.circ.ListOverdue(ctx, today)
	if err != nil {
		s.logger.Error("overdue scan failed", slog.String("error", err.Error()))
		return
	}
	if len(records) == 0 {
		return
	}

	sent := 0
	for _, rec := range records {
		key := fmt.Sprintf("%d:%s", rec.RecordID, today)

		claimed, err := s.marker.Claim(ctx, key)
		if err != nil {
			s.logger.Warn("reminder dedup check failed",
				slog.Uint64("record_id", uint64(rec.RecordID)),
				slog.String("error", err.Error()))
			continue
		}
		if !claimed {
			continue
		}

		if err := s.notifier.SendDueReminder(ctx, rec.Email, rec.Username, rec.Title, rec.DueDate); err != nil {
			s.logger.Error("send due reminder failed",
				slog.Uint64("record_id", uint64(rec.RecordID)),
				slog.String("error", err.Error()))
			// 发送失败时释放标记，下一轮可以重试。
			_ = s.marker.Release(ctx, key)
			continue
		}

		metrics.ReminderEmailsSent.Inc()
		sent++
	}

	if sent > 0 {
		s.logger.Info("due reminders sent",
			slog.Int("count", sent),
			slog.Int("overdue", len(records)))
	}
}
