package services

import (
	"context"
	"encoding/json"
	"fmt"

	"casedesk/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SystemActor is the sentinel identity used to attribute requests that carry
// no authenticated principal. It is never used for session creation.
const SystemActor = "sistema"

// AuditWriteError wraps any failure inside the recorder. It exists so the
// swallow-at-the-boundary rule has one well-defined type instead of ad hoc
// error handling at every call site; it never crosses the recorder boundary.
type AuditWriteError struct {
	Op  string
	Err error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("audit write failed during %s: %v", e.Op, e.Err)
}

func (e *AuditWriteError) Unwrap() error {
	return e.Err
}

// SnapshotFetcher loads the current persisted state of one entity as a
// JSON-decoded map. ok is false when the entity does not exist.
type SnapshotFetcher func(id string) (map[string]any, bool)

// AuditContext is the per-request attribution bundle, derived once before the
// handler runs.
type AuditContext struct {
	UserID        *uint
	UserEmail     string
	UserName      string
	UserRole      string
	Module        string
	EntityType    string
	IPAddress     string
	UserAgent     string
	SessionID     string
	RequestPath   string
	RequestMethod string
	RequestBody   map[string]any // PUT/PATCH body echo, captured before the handler
}

// SystemContext returns an AuditContext attributed to the sentinel identity.
func SystemContext() AuditContext {
	return AuditContext{
		UserEmail: SystemActor,
		UserName:  SystemActor,
		UserRole:  "system",
	}
}

// AuditRecorder persists the append-only audit ledger. Every failure inside it
// is logged and swallowed: observability must never fail the business request.
type AuditRecorder struct {
	db       *gorm.DB
	log      zerolog.Logger
	fetchers map[string]SnapshotFetcher
}

func NewAuditRecorder(db *gorm.DB, logger zerolog.Logger) *AuditRecorder {
	return &AuditRecorder{
		db:       db,
		log:      logger.With().Str("component", "audit").Logger(),
		fetchers: make(map[string]SnapshotFetcher),
	}
}

// RegisterSnapshotFetcher binds an entity type to its snapshot lookup. The
// registry is built once at startup; it replaces runtime reflection over
// entity classes with an explicit capability map.
func (r *AuditRecorder) RegisterSnapshotFetcher(entityType string, fn SnapshotFetcher) {
	r.fetchers[entityType] = fn
}

// Snapshot fetches the current state of an entity. Unmapped types return
// (nil, false) and no prior-state diff is attempted for them.
func (r *AuditRecorder) Snapshot(entityType, id string) (map[string]any, bool) {
	fn, ok := r.fetchers[entityType]
	if !ok {
		return nil, false
	}
	return fn(id)
}

// Record persists one audit entry plus its field changes. Writes are skipped
// (not failed) when the entry is unattributable; all other errors are logged
// and swallowed. The write runs on a detached context so an aborted request
// cannot cancel the trail of work that already happened.
func (r *AuditRecorder) Record(
	ctx context.Context,
	actx AuditContext,
	action models.AuditAction,
	entityType, entityID, entityName string,
	status int,
	errorMessage string,
	changes []FieldChange,
	operationContext any,
) {
	if actx.UserID == nil && actx.UserEmail == "" {
		r.log.Warn().
			Str("action", string(action)).
			Str("entity_type", entityType).
			Msg("skipping unattributable audit entry: no actor identity")
		return
	}
	if entityType == "" || entityID == "" {
		r.log.Warn().
			Str("action", string(action)).
			Str("entity_type", entityType).
			Str("entity_id", entityID).
			Msg("skipping unattributable audit entry: missing entity identity")
		return
	}

	if entityName == "" {
		entityName = entityType + ":" + entityID
	}

	entry := models.AuditLog{
		ID:               uuid.NewString(),
		UserID:           actx.UserID,
		UserEmail:        actx.UserEmail,
		UserName:         actx.UserName,
		UserRole:         actx.UserRole,
		Action:           action,
		EntityType:       entityType,
		EntityID:         entityID,
		EntityName:       entityName,
		Module:           actx.Module,
		IPAddress:        actx.IPAddress,
		UserAgent:        actx.UserAgent,
		SessionID:        actx.SessionID,
		RequestPath:      actx.RequestPath,
		RequestMethod:    actx.RequestMethod,
		OperationSuccess: status >= 200 && status < 300,
	}
	if !entry.OperationSuccess {
		entry.ErrorMessage = errorMessage
	}
	if operationContext != nil {
		if raw, err := json.Marshal(operationContext); err == nil {
			entry.OperationContext = datatypes.JSON(raw)
		}
	}

	detached := context.WithoutCancel(ctx)
	if err := r.db.WithContext(detached).Create(&entry).Error; err != nil {
		r.logWriteError(&AuditWriteError{Op: "entry insert", Err: err}, entry)
		return
	}

	if len(changes) == 0 {
		return
	}

	rows := make([]models.AuditFieldChange, 0, len(changes))
	for _, ch := range changes {
		rows = append(rows, models.AuditFieldChange{
			AuditLogID:  entry.ID,
			FieldName:   ch.FieldName,
			FieldType:   ch.FieldType,
			OldValue:    ch.OldValue,
			NewValue:    ch.NewValue,
			ChangeType:  ch.ChangeType,
			IsSensitive: ch.IsSensitive,
		})
	}
	// Partial failure of the change batch is logged, not retried, not propagated.
	if err := r.db.WithContext(detached).CreateInBatches(rows, 100).Error; err != nil {
		r.logWriteError(&AuditWriteError{Op: "change batch insert", Err: err}, entry)
	}
}

// RecordManual writes an entry for actions with no natural before/after body
// (VIEW, DOWNLOAD, READ, EXPORT). The changes slice describes the accessed
// resource.
func (r *AuditRecorder) RecordManual(
	ctx context.Context,
	actx AuditContext,
	action models.AuditAction,
	entityType, entityID, entityName string,
	changes []FieldChange,
	operationContext any,
) {
	r.Record(ctx, actx, action, entityType, entityID, entityName, 200, "", changes, operationContext)
}

// RecordSessionEvent writes a session-lifecycle entry (LOGIN, LOGOUT,
// LOGOUT_ALL, FORCE_LOGOUT) attributed to the session owner. These bypass the
// HTTP interception path; SessionManager calls this directly.
func (r *AuditRecorder) RecordSessionEvent(
	ctx context.Context,
	user *models.User,
	sess *models.Session,
	action models.AuditAction,
) {
	if user == nil || sess == nil {
		r.log.Warn().Str("action", string(action)).Msg("skipping session event with missing identity")
		return
	}
	actx := AuditContext{
		UserID:    &user.ID,
		UserEmail: user.Email,
		UserName:  user.FullName,
		UserRole:  user.Role,
		Module:    "auth",
		IPAddress: sess.SourceAddress,
		SessionID: sess.ID,
	}
	changes := []FieldChange{{
		FieldName:  "device",
		FieldType:  models.FieldTypeString,
		NewValue:   encodeValue(sess.DeviceLabel()),
		ChangeType: models.ChangeAdded,
	}}
	r.Record(ctx, actx, action, "session", sess.ID, sess.DeviceLabel(), 200, "", changes, nil)
}

func (r *AuditRecorder) logWriteError(err *AuditWriteError, entry models.AuditLog) {
	r.log.Warn().
		Err(err).
		Str("action", string(entry.Action)).
		Str("entity_type", entry.EntityType).
		Str("entity_id", entry.EntityID).
		Msg("audit persistence failed")
}
