package services

import (
	"context"
	"errors"
	"time"

	"casedesk/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	// ErrSessionInvalid covers every rejection cause (unknown token,
	// superseded, expired). Callers must not learn which one applied.
	ErrSessionInvalid = errors.New("invalid or expired session")

	// ErrSessionConflict is surfaced only after the concurrent-login retry
	// also lost the uniqueness race.
	ErrSessionConflict = errors.New("could not establish a unique session")
)

// DeviceContext carries the request metadata a new session is created from.
type DeviceContext struct {
	UserAgent     string
	SourceAddress string
}

// SessionManager owns the session lifecycle: single-active-session
// enforcement, validation, expiry and invalidation. Every transition is
// reported to the audit recorder.
type SessionManager struct {
	db       *gorm.DB
	recorder *AuditRecorder
	ttl      time.Duration
	log      zerolog.Logger
}

func NewSessionManager(db *gorm.DB, recorder *AuditRecorder, ttl time.Duration, logger zerolog.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{
		db:       db,
		recorder: recorder,
		ttl:      ttl,
		log:      logger.With().Str("component", "sessions").Logger(),
	}
}

// CreateUniqueSession deactivates every prior active session of the user and
// inserts the new one inside a single transaction. A concurrent login racing
// past the transactional read is stopped by the active-key unique index; the
// loser retries once before failing hard. One FORCE_LOGOUT event is emitted
// per displaced session, then a LOGIN event for the new one.
func (m *SessionManager) CreateUniqueSession(
	ctx context.Context,
	user *models.User,
	token, refreshToken string,
	device DeviceContext,
) (*models.Session, error) {
	sess, displaced, err := m.establish(ctx, user, token, refreshToken, device)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		m.log.Debug().Uint("user_id", user.ID).Msg("concurrent login race lost, retrying once")
		sess, displaced, err = m.establish(ctx, user, token, refreshToken, device)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrSessionConflict
		}
	}
	if err != nil {
		return nil, err
	}

	for i := range displaced {
		m.recorder.RecordSessionEvent(ctx, user, &displaced[i], models.ActionForceLogout)
	}
	m.recorder.RecordSessionEvent(ctx, user, sess, models.ActionLogin)

	return sess, nil
}

func (m *SessionManager) establish(
	ctx context.Context,
	user *models.User,
	token, refreshToken string,
	device DeviceContext,
) (*models.Session, []models.Session, error) {
	now := time.Now()
	fp := FingerprintDevice(device.UserAgent)

	sess := &models.Session{
		ID:               uuid.NewString(),
		UserID:           user.ID,
		TokenHash:        HashToken(token),
		RefreshTokenHash: HashToken(refreshToken),
		Browser:          fp.Browser,
		OS:               fp.OS,
		DeviceClass:      fp.DeviceClass,
		SourceAddress:    device.SourceAddress,
		IsActive:         true,
		ActiveKey:        &user.ID,
		LogoutReason:     models.LogoutReasonNone,
		ExpiresAt:        now.Add(m.ttl),
		LastActivityAt:   now,
	}

	var displaced []models.Session
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND is_active = ?", user.ID, true).Find(&displaced).Error; err != nil {
			return err
		}
		for i := range displaced {
			if err := tx.Model(&displaced[i]).Updates(map[string]any{
				"is_active":     false,
				"active_key":    nil,
				"logout_reason": models.LogoutReasonNewLogin,
			}).Error; err != nil {
				return err
			}
			displaced[i].IsActive = false
			displaced[i].LogoutReason = models.LogoutReasonNewLogin
		}
		return tx.Create(sess).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, displaced, nil
}

// ValidateActiveSession resolves a bearer token to its active session. Fails
// closed: an unknown hash is unauthenticated regardless of what the token's
// own claims say, which is what makes the superseded-session rejection work.
// Lazy expiry self-corrects here.
func (m *SessionManager) ValidateActiveSession(ctx context.Context, token string) (*models.Session, error) {
	var sess models.Session
	err := m.db.WithContext(ctx).
		Where("token_hash = ? AND is_active = ?", HashToken(token), true).
		Preload("User").
		First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, err
	}

	if !sess.ExpiresAt.After(time.Now()) {
		if err := m.InvalidateSession(ctx, sess.ID, models.LogoutReasonExpired); err != nil {
			m.log.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to expire stale session")
		}
		return nil, ErrSessionInvalid
	}

	if err := m.db.WithContext(ctx).Model(&sess).
		UpdateColumn("last_activity_at", time.Now()).Error; err != nil {
		m.log.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to touch session activity")
	}

	return &sess, nil
}

// InvalidateSession terminates one session. Idempotent: an already-inactive
// session is a no-op.
func (m *SessionManager) InvalidateSession(ctx context.Context, sessionID string, reason models.LogoutReason) error {
	var sess models.Session
	if err := m.db.WithContext(ctx).Preload("User").First(&sess, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionInvalid
		}
		return err
	}
	if !sess.IsActive {
		return nil
	}

	if err := m.deactivate(ctx, &sess, reason); err != nil {
		return err
	}
	m.recorder.RecordSessionEvent(ctx, &sess.User, &sess, models.ActionLogout)
	return nil
}

// InvalidateAllSessions terminates every active session of a principal,
// emitting one LOGOUT_ALL event per affected session.
func (m *SessionManager) InvalidateAllSessions(ctx context.Context, userID uint, reason models.LogoutReason) (int, error) {
	var sessions []models.Session
	if err := m.db.WithContext(ctx).Preload("User").
		Where("user_id = ? AND is_active = ?", userID, true).
		Find(&sessions).Error; err != nil {
		return 0, err
	}

	for i := range sessions {
		if err := m.deactivate(ctx, &sessions[i], reason); err != nil {
			return i, err
		}
		m.recorder.RecordSessionEvent(ctx, &sessions[i].User, &sessions[i], models.ActionLogoutAll)
	}
	return len(sessions), nil
}

// ListActiveSessions returns the principal's active sessions, most recent
// activity first.
func (m *SessionManager) ListActiveSessions(ctx context.Context, userID uint) ([]models.Session, error) {
	var sessions []models.Session
	err := m.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("last_activity_at DESC").
		Find(&sessions).Error
	return sessions, err
}

func (m *SessionManager) deactivate(ctx context.Context, sess *models.Session, reason models.LogoutReason) error {
	if err := m.db.WithContext(ctx).Model(sess).Updates(map[string]any{
		"is_active":     false,
		"active_key":    nil,
		"logout_reason": reason,
	}).Error; err != nil {
		return err
	}
	sess.IsActive = false
	sess.ActiveKey = nil
	sess.LogoutReason = reason
	return nil
}
