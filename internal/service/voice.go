package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/makeouthillx32/Discord/internal/config"
	"github.com/makeouthillx32/Discord/internal/model"
	"github.com/makeouthillx32/Discord/internal/repository"
	"github.com/makeouthillx32/Discord/pkg/apperror"
)

const (
	reasonVoicePeriodic = "Voice Activity (Periodic)"
	reasonVoiceFinal    = "Voice Activity"
)

// pointsAwarder is the slice of the ledger the voice tracker needs.
type pointsAwarder interface {
	AwardPoints(ctx context.Context, userID, guildID string, points int, reason, activityType string, metadata model.Metadata) (*AwardResult, error)
}

// liveSession is the in-memory side of one open voice session. The
// database row is the durable record; this holds the accrual cursor
// and the timer plumbing.
type liveSession struct {
	sessionID uuid.UUID
	userID    string
	guildID   string
	channelID string

	joinedAt    time.Time
	lastAccrual time.Time
	awarded     int
	muted       bool
	deafened    bool
	ended       bool

	stop     chan struct{}
	stopOnce sync.Once
}

func (s *liveSession) cancel() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// VoiceTracker owns the open voice sessions on this node. Each session
// gets an accrual timer that pays points per full minute in channel.
type VoiceTracker struct {
	repo     repository.VoiceRepository
	ledger   pointsAwarder
	points   config.PointsConfig
	interval time.Duration
	log      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*liveSession
}

func NewVoiceTracker(repo repository.VoiceRepository, ledger pointsAwarder, points config.PointsConfig, interval time.Duration, log *zap.Logger) *VoiceTracker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &VoiceTracker{
		repo:     repo,
		ledger:   ledger,
		points:   points,
		interval: interval,
		log:      log,
		sessions: make(map[string]*liveSession),
	}
}

func sessionKey(userID, guildID string) string {
	return userID + ":" + guildID
}

// HandleJoin opens a session for the user. A session this node still
// believes is open gets closed and paid out first, so a user never has
// two live sessions.
func (t *VoiceTracker) HandleJoin(ctx context.Context, userID, guildID, channelID string) error {
	if userID == "" {
		return apperror.ErrMissingUserID
	}
	if guildID == "" {
		return apperror.ErrMissingGuildID
	}

	if err := t.HandleLeave(ctx, userID, guildID, true); err != nil {
		t.log.Warn("closing stale session before join failed",
			zap.String("user_id", userID), zap.Error(err))
	}

	id, err := t.repo.StartSession(ctx, userID, guildID, channelID)
	if err != nil {
		return err
	}

	now := time.Now()
	session := &liveSession{
		sessionID:   id,
		userID:      userID,
		guildID:     guildID,
		channelID:   channelID,
		joinedAt:    now,
		lastAccrual: now,
		stop:        make(chan struct{}),
	}

	t.mu.Lock()
	t.sessions[sessionKey(userID, guildID)] = session
	t.mu.Unlock()

	go t.runAccrual(session)

	t.log.Info("voice session started",
		zap.String("user_id", userID),
		zap.String("guild_id", guildID),
		zap.String("channel_id", channelID))
	return nil
}

func (t *VoiceTracker) runAccrual(s *liveSession) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			t.accrue(s)
		}
	}
}

// accrue pays the full minutes elapsed since the cursor and advances
// it. Mute and deafen are session metadata and do not affect accrual.
func (t *VoiceTracker) accrue(s *liveSession) {
	t.mu.Lock()
	now := time.Now()
	if s.ended {
		t.mu.Unlock()
		return
	}
	minutes := int(now.Sub(s.lastAccrual) / time.Minute)
	if minutes <= 0 {
		t.mu.Unlock()
		return
	}
	s.lastAccrual = s.lastAccrual.Add(time.Duration(minutes) * time.Minute)
	points := minutes * t.points.VoiceMinute
	s.awarded += points
	userID, guildID, channelID := s.userID, s.guildID, s.channelID
	t.mu.Unlock()

	_, err := t.ledger.AwardPoints(context.Background(), userID, guildID, points, reasonVoicePeriodic, model.ActivityVoice, model.Metadata{
		"channel_id": channelID,
		"minutes":    minutes,
	})
	if err != nil {
		t.log.Warn("periodic voice award failed",
			zap.String("user_id", userID), zap.Error(err))
	}
}

// HandleLeave closes the user's session. When awardFinal is set, any
// unpaid full minutes since the last accrual are paid out; stopping a
// session a second time is a no-op.
func (t *VoiceTracker) HandleLeave(ctx context.Context, userID, guildID string, awardFinal bool) error {
	t.mu.Lock()
	key := sessionKey(userID, guildID)
	s, ok := t.sessions[key]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	delete(t.sessions, key)
	s.ended = true
	s.cancel()

	final := 0
	if awardFinal {
		final = int(time.Since(s.lastAccrual)/time.Minute) * t.points.VoiceMinute
	}
	total := s.awarded + final
	channelID := s.channelID
	t.mu.Unlock()

	if final > 0 {
		_, err := t.ledger.AwardPoints(ctx, userID, guildID, final, reasonVoiceFinal, model.ActivityVoice, model.Metadata{
			"channel_id": channelID,
		})
		if err != nil {
			t.log.Warn("final voice award failed",
				zap.String("user_id", userID), zap.Error(err))
		}
	}

	duration, err := t.repo.EndSession(ctx, userID, guildID, total)
	if err != nil {
		return err
	}
	t.log.Info("voice session ended",
		zap.String("user_id", userID),
		zap.String("guild_id", guildID),
		zap.Int("duration_seconds", duration),
		zap.Int("points_awarded", total))
	return nil
}

// HandleSwitch moves a live session to another channel. A switch for a
// user with no live session is treated as a join.
func (t *VoiceTracker) HandleSwitch(ctx context.Context, userID, guildID, channelID string) error {
	t.mu.Lock()
	s, ok := t.sessions[sessionKey(userID, guildID)]
	if ok {
		s.channelID = channelID
		sessionID := s.sessionID
		t.mu.Unlock()
		return t.repo.SwitchChannel(ctx, sessionID, channelID)
	}
	t.mu.Unlock()
	return t.HandleJoin(ctx, userID, guildID, channelID)
}

// SetVoiceState records the user's mute and deafen flags on the live
// session and the store row. Flags are metadata only; accrual runs the
// same either way.
func (t *VoiceTracker) SetVoiceState(ctx context.Context, userID, guildID string, muted, deafened bool) error {
	t.mu.Lock()
	s, ok := t.sessions[sessionKey(userID, guildID)]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	s.muted = muted
	s.deafened = deafened
	sessionID := s.sessionID
	t.mu.Unlock()

	return t.repo.SetFlags(ctx, sessionID, muted, deafened)
}

// ActiveSessions is the number of live sessions on this node.
func (t *VoiceTracker) ActiveSessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// ForceEndAll closes every live session with a final payout. Called on
// shutdown so in-channel users keep their earned time.
func (t *VoiceTracker) ForceEndAll(ctx context.Context) {
	t.mu.Lock()
	users := make([][2]string, 0, len(t.sessions))
	for _, s := range t.sessions {
		users = append(users, [2]string{s.userID, s.guildID})
	}
	t.mu.Unlock()

	for _, u := range users {
		if err := t.HandleLeave(ctx, u[0], u[1], true); err != nil {
			t.log.Warn("force-ending voice session failed",
				zap.String("user_id", u[0]), zap.Error(err))
		}
	}
}
