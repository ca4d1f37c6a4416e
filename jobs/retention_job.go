package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"xhunt-server/config"
	"xhunt-server/models"
	"xhunt-server/services"
)

// RetentionJob purges read notifications that have not changed for ReadTTL.
type RetentionJob struct {
	db       *gorm.DB
	ttl      time.Duration
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRetentionJob creates a new retention job
func NewRetentionJob(db *gorm.DB, cfg config.RetentionConfig, log *zap.Logger) *RetentionJob {
	if log == nil {
		log = zap.NewNop()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetentionJob{
		db:       db,
		ttl:      cfg.ReadTTL,
		interval: interval,
		log:      log.Named("retention"),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Enabled reports whether a TTL is configured.
func (j *RetentionJob) Enabled() bool {
	return j.ttl > 0
}

// Start begins the retention job. It is a no-op when disabled.
func (j *RetentionJob) Start() {
	if !j.Enabled() {
		j.log.Info("retention job disabled")
		return
	}
	j.wg.Add(1)
	go j.run()
	j.log.Info("retention job started", zap.Duration("read_ttl", j.ttl), zap.Duration("interval", j.interval))
}

// Stop stops the job and waits for an in-flight purge to finish.
func (j *RetentionJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
	j.wg.Wait()
}

func (j *RetentionJob) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), j.interval)
			if _, err := j.PurgeOnce(ctx); err != nil {
				j.log.Error("purge failed", zap.Error(err))
			}
			cancel()
		case <-j.stopChan:
			return
		}
	}
}

// PurgeOnce deletes read notifications last updated before now-TTL and returns the count.
func (j *RetentionJob) PurgeOnce(ctx context.Context) (int64, error) {
	if !j.Enabled() {
		return 0, nil
	}
	cutoff := j.now().UTC().Add(-j.ttl)

	result := j.db.WithContext(ctx).
		Where("read = ? AND updated_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected > 0 {
		services.RecordPurged(result.RowsAffected)
		j.log.Info("purged read notifications", zap.Int64("count", result.RowsAffected), zap.Time("cutoff", cutoff))
	}
	return result.RowsAffected, nil
}
