package services

import (
	"sync"
	"sync/atomic"
	"time"

	"casedesk/internal/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	sweeperIdle int32 = iota
	sweeperSweeping
)

// SessionCleanupSweeper periodically flips sessions that are still active but
// past their expiry to inactive with logout_reason = expired. The flip is one
// batch update with no per-session audit event: this path is administrative
// hygiene, not a security event, and volume may be large.
type SessionCleanupSweeper struct {
	dbFn     func() *gorm.DB
	interval time.Duration
	log      zerolog.Logger

	state atomic.Int32
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// NewSessionCleanupSweeper builds a sweeper. dbFn is called every tick so a
// startup race with database initialization just skips the tick instead of
// crashing the scheduler.
func NewSessionCleanupSweeper(dbFn func() *gorm.DB, interval time.Duration, logger zerolog.Logger) *SessionCleanupSweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &SessionCleanupSweeper{
		dbFn:     dbFn,
		interval: interval,
		log:      logger.With().Str("component", "session-sweeper").Logger(),
		stop:     make(chan struct{}),
	}
}

// Start launches the background loop.
func (s *SessionCleanupSweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if _, err := s.Sweep(); err != nil {
					s.log.Warn().Err(err).Msg("session sweep failed")
				}
			}
		}
	}()
}

// Stop terminates the loop and waits for an in-flight sweep to finish.
func (s *SessionCleanupSweeper) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// Sweep runs one cleanup pass. Returns the number of sessions expired.
// Re-entrant calls while a sweep is running are no-ops.
func (s *SessionCleanupSweeper) Sweep() (int64, error) {
	db := s.dbFn()
	if db == nil {
		s.log.Debug().Msg("database not ready, skipping sweep tick")
		return 0, nil
	}

	if !s.state.CompareAndSwap(sweeperIdle, sweeperSweeping) {
		return 0, nil
	}
	defer s.state.Store(sweeperIdle)

	res := db.Model(&models.Session{}).
		Where("is_active = ? AND expires_at < ?", true, time.Now()).
		Updates(map[string]any{
			"is_active":     false,
			"active_key":    nil,
			"logout_reason": models.LogoutReasonExpired,
		})
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected > 0 {
		s.log.Info().Int64("expired", res.RowsAffected).Msg("swept expired sessions")
	}
	return res.RowsAffected, nil
}
