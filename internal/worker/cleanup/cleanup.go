// Package cleanup は二次キャッシュの期限切れ行を削除するジョブを提供する。
// 読み取り側は expires_at を見て期限切れをミス扱いにするため、
// このジョブはテーブルの肥大化を防ぐためだけに動く。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hitoshi/voicelibrary/internal/repository"
)

// CleanupJob は期限切れの二次キャッシュ行を削除するジョブ。
// 冪等であり、削除対象がなくてもエラーにならない。
type CleanupJob struct {
	store   repository.ExpiredCacheItemDeleter
	logger  *slog.Logger
	timeNow func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(store repository.ExpiredCacheItemDeleter, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		store:   store,
		logger:  logger,
		timeNow: time.Now,
	}
}

// Run は現在時刻より前に期限切れとなった行を削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.store.DeleteExpired(ctx, j.timeNow())
	if err != nil {
		j.logger.Error("secondary cache cleanup failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to delete expired cache items: %w", err)
	}

	j.logger.Info("secondary cache cleanup completed",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Scheduler はCleanupJobをcron式に従って定期実行する。
type Scheduler struct {
	job    *CleanupJob
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler は新しいSchedulerを生成する。スケジュールはUTCで解釈する。
func NewScheduler(job *CleanupJob, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		job:    job,
		cron:   cron.New(cron.WithLocation(time.UTC)),
		logger: logger,
	}
}

// Start は起動直後に1回ジョブを実行し、以降は schedule に従って実行する。
// ctx がキャンセルされるまでブロックし、実行中のジョブの完了を待ってから戻る。
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}

	s.runOnce(ctx)

	s.cron.Start()
	s.logger.Info("cleanup scheduler started",
		slog.String("schedule", schedule),
	)

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.logger.Info("cleanup scheduler stopped")
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	// エラーはRun内でログ済み。次回の実行で再試行する。
	_ = s.job.Run(ctx)
}
