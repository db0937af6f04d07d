package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/makeouthillx32/Discord/internal/cache"
	"github.com/makeouthillx32/Discord/internal/config"
	"github.com/makeouthillx32/Discord/internal/model"
	"github.com/makeouthillx32/Discord/internal/repository"
)

const (
	reasonVoiceRecovered = "Voice Activity (Recovered)"

	abandonedSessionAge  = 6 * time.Hour
	transactionRetention = 90 * 24 * time.Hour
)

// Maintenance runs the periodic housekeeping: expired metric buckets,
// voice sessions orphaned by a crashed node, and old audit rows.
type Maintenance struct {
	cron   *cron.Cron
	cache  *cache.Service
	stats  repository.StatsRepository
	voice  repository.VoiceRepository
	ledger pointsAwarder
	points config.PointsConfig
	log    *zap.Logger
}

func NewMaintenance(cacheSvc *cache.Service, stats repository.StatsRepository, voice repository.VoiceRepository, ledger pointsAwarder, points config.PointsConfig, log *zap.Logger) *Maintenance {
	return &Maintenance{
		cron:   cron.New(),
		cache:  cacheSvc,
		stats:  stats,
		voice:  voice,
		ledger: ledger,
		points: points,
		log:    log,
	}
}

func (m *Maintenance) Start() error {
	if _, err := m.cron.AddFunc("@every 10m", m.cleanupMetrics); err != nil {
		return err
	}
	if _, err := m.cron.AddFunc("@every 1h", m.recoverAbandonedSessions); err != nil {
		return err
	}
	if _, err := m.cron.AddFunc("@every 1h", m.pruneTransactions); err != nil {
		return err
	}
	m.cron.Start()
	m.log.Info("maintenance scheduler started")
	return nil
}

// Stop halts the scheduler and waits for any running job to finish.
func (m *Maintenance) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.log.Info("maintenance scheduler stopped")
}

func (m *Maintenance) cleanupMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := m.cache.CleanupMetrics(ctx); err != nil {
		m.log.Warn("metric cleanup failed", zap.Error(err))
	}
}

// recoverAbandonedSessions closes sessions whose node died without a
// leave event, crediting the estimated points through the ledger so
// the user keeps their time in channel.
func (m *Maintenance) recoverAbandonedSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	closed, err := m.voice.CloseAbandoned(ctx, abandonedSessionAge, m.points.VoiceMinute)
	if err != nil {
		m.log.Warn("abandoned session sweep failed", zap.Error(err))
		return
	}
	for _, s := range closed {
		if s.PointsAwarded <= 0 {
			continue
		}
		_, err := m.ledger.AwardPoints(ctx, s.UserID, s.GuildID, s.PointsAwarded, reasonVoiceRecovered, model.ActivityVoice, model.Metadata{
			"session_id": s.ID.String(),
		})
		if err != nil {
			m.log.Warn("recovered session award failed",
				zap.String("user_id", s.UserID), zap.Error(err))
		}
	}
	if len(closed) > 0 {
		m.log.Info("abandoned voice sessions recovered", zap.Int("count", len(closed)))
	}
}

func (m *Maintenance) pruneTransactions() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	removed, err := m.stats.CleanupTransactions(ctx, transactionRetention)
	if err != nil {
		m.log.Warn("transaction prune failed", zap.Error(err))
		return
	}
	if removed > 0 {
		m.log.Info("old transactions pruned", zap.Int64("removed", removed))
	}
}
