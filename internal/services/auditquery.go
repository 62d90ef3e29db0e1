package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"casedesk/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var (
	ErrInvalidExportFormat = errors.New("unsupported export format")
	ErrInvalidRetention    = errors.New("retention days must be between 30 and 2555")
)

const (
	minRetentionDays = 30
	maxRetentionDays = 2555

	defaultPageSize = 50
	maxPageSize     = 200
)

// AuditFilter narrows audit queries. Zero values mean "no constraint".
type AuditFilter struct {
	UserID     *uint
	Action     models.AuditAction
	EntityType string
	Module     string
	Success    *bool
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// AuditStats aggregates ledger activity.
type AuditStats struct {
	Total    int64            `json:"total"`
	Failed   int64            `json:"failed"`
	ByAction map[string]int64 `json:"by_action"`
	ByModule map[string]int64 `json:"by_module"`
	ByUser   []UserActivity   `json:"by_user"`
}

type UserActivity struct {
	UserEmail string `json:"user_email"`
	Count     int64  `json:"count"`
}

// ExportedEntry is the JSON export shape: the full entry with its nested
// change rows, sensitive values masked.
type ExportedEntry struct {
	models.AuditLog
	Changes []ExportedChange `json:"changes"`
}

type ExportedChange struct {
	FieldName   string            `json:"field_name"`
	FieldType   models.FieldType  `json:"field_type"`
	OldValue    *string           `json:"old_value"`
	NewValue    *string           `json:"new_value"`
	ChangeType  models.ChangeType `json:"change_type"`
	IsSensitive bool              `json:"is_sensitive"`
}

// AuditQueryService is the read side of the ledger: filtered listing, history
// reconstruction, statistics, export and retention cleanup. It never mutates
// entries except through the bounded cleanup-by-age path.
type AuditQueryService struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewAuditQueryService(db *gorm.DB, logger zerolog.Logger) *AuditQueryService {
	return &AuditQueryService{
		db:  db,
		log: logger.With().Str("component", "audit-query").Logger(),
	}
}

// List returns one page of entries matching the filter, newest first, plus the
// total match count.
func (s *AuditQueryService) List(filter AuditFilter) ([]models.AuditLog, int64, error) {
	query := s.filtered(filter)

	var total int64
	if err := query.Model(&models.AuditLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var entries []models.AuditLog
	err := query.
		Preload("Changes").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error
	return entries, total, err
}

// EntityHistory returns every entry for one entity, oldest first, so the
// caller can replay the entity's life.
func (s *AuditQueryService) EntityHistory(entityType, entityID string) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	err := s.db.
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Preload("Changes").
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// Stats aggregates the ledger over an optional time window.
func (s *AuditQueryService) Stats(from, to *time.Time) (*AuditStats, error) {
	base := s.filtered(AuditFilter{From: from, To: to}).Model(&models.AuditLog{})

	stats := &AuditStats{
		ByAction: make(map[string]int64),
		ByModule: make(map[string]int64),
	}

	if err := base.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("operation_success = ?", false).Count(&stats.Failed).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		Key   string
		Count int64
	}

	var byAction []bucket
	if err := base.Session(&gorm.Session{}).
		Select("action AS key, COUNT(*) AS count").
		Group("action").Scan(&byAction).Error; err != nil {
		return nil, err
	}
	for _, b := range byAction {
		stats.ByAction[b.Key] = b.Count
	}

	var byModule []bucket
	if err := base.Session(&gorm.Session{}).
		Select("module AS key, COUNT(*) AS count").
		Group("module").Scan(&byModule).Error; err != nil {
		return nil, err
	}
	for _, b := range byModule {
		stats.ByModule[b.Key] = b.Count
	}

	if err := base.Session(&gorm.Session{}).
		Select("user_email, COUNT(*) AS count").
		Group("user_email").
		Order("count DESC").
		Limit(10).
		Scan(&stats.ByUser).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// Export renders the filtered ledger as json, csv or xlsx. JSON keeps the
// nested change arrays; csv and xlsx are flattened one-row-per-field-change
// (entries without changes emit a single row with empty change columns), which
// the header row documents. Sensitive values are masked in every format.
func (s *AuditQueryService) Export(filter AuditFilter, format string) (filename string, content []byte, contentType string, err error) {
	var entries []models.AuditLog
	if err := s.filtered(filter).Preload("Changes").Order("created_at DESC").Find(&entries).Error; err != nil {
		return "", nil, "", err
	}

	stamp := time.Now().Format("20060102-150405")
	switch format {
	case "json":
		content, err = s.exportJSON(entries)
		return "audit-export-" + stamp + ".json", content, "application/json", err
	case "csv":
		content, err = s.exportCSV(entries)
		return "audit-export-" + stamp + ".csv", content, "text/csv", err
	case "xlsx":
		content, err = s.exportXLSX(entries)
		return "audit-export-" + stamp + ".xlsx",
			content,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			err
	default:
		return "", nil, "", ErrInvalidExportFormat
	}
}

// Cleanup deletes entries older than the cutoff, cascading their field
// changes. daysToKeep outside [30, 2555] is rejected, not clamped.
func (s *AuditQueryService) Cleanup(daysToKeep int) (int64, error) {
	if daysToKeep < minRetentionDays || daysToKeep > maxRetentionDays {
		return 0, ErrInvalidRetention
	}

	cutoff := time.Now().AddDate(0, 0, -daysToKeep)

	// One transaction: a failure between the two deletes must not leave
	// entries stripped of their field changes. The child delete is explicit
	// because sqlite does not enforce the cascade constraint unless foreign
	// keys are switched on for the connection.
	var deleted int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("audit_log_id IN (?)",
				tx.Model(&models.AuditLog{}).Select("id").Where("created_at < ?", cutoff)).
			Delete(&models.AuditFieldChange{}).Error; err != nil {
			return err
		}

		res := tx.Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info().Int64("deleted", deleted).Int("days_kept", daysToKeep).Msg("audit retention cleanup")
	return deleted, nil
}

func (s *AuditQueryService) filtered(filter AuditFilter) *gorm.DB {
	query := s.db.Model(&models.AuditLog{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.Module != "" {
		query = query.Where("module = ?", filter.Module)
	}
	if filter.Success != nil {
		query = query.Where("operation_success = ?", *filter.Success)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	return query
}

func (s *AuditQueryService) exportJSON(entries []models.AuditLog) ([]byte, error) {
	exported := make([]ExportedEntry, 0, len(entries))
	for _, entry := range entries {
		item := ExportedEntry{AuditLog: entry, Changes: make([]ExportedChange, 0, len(entry.Changes))}
		item.AuditLog.Changes = nil
		for i := range entry.Changes {
			ch := &entry.Changes[i]
			item.Changes = append(item.Changes, ExportedChange{
				FieldName:   ch.FieldName,
				FieldType:   ch.FieldType,
				OldValue:    ch.DisplayOldValue(),
				NewValue:    ch.DisplayNewValue(),
				ChangeType:  ch.ChangeType,
				IsSensitive: ch.IsSensitive,
			})
		}
		exported = append(exported, item)
	}
	return json.MarshalIndent(exported, "", "  ")
}

// exportHeader documents the flattened layout: one row per field change,
// entry columns repeated, change columns empty for entries without changes.
var exportHeader = []string{
	"entry_id", "created_at", "user_email", "user_name", "user_role",
	"action", "module", "entity_type", "entity_id", "entity_name",
	"ip_address", "session_id", "request_method", "request_path", "success",
	"field_name", "field_type", "change_type", "old_value", "new_value",
}

func (s *AuditQueryService) exportCSV(entries []models.AuditLog) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for i := range entries {
		for _, row := range flattenEntry(&entries[i]) {
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func (s *AuditQueryService) exportXLSX(entries []models.AuditLog) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Audit"
	f.SetSheetName(f.GetSheetName(0), sheet)

	for col, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return nil, err
		}
	}

	rowNum := 2
	for i := range entries {
		for _, row := range flattenEntry(&entries[i]) {
			for col, value := range row {
				cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
				if err != nil {
					return nil, err
				}
				if err := f.SetCellValue(sheet, cell, value); err != nil {
					return nil, err
				}
			}
			rowNum++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func flattenEntry(entry *models.AuditLog) [][]string {
	base := []string{
		entry.ID,
		entry.CreatedAt.Format(time.RFC3339),
		entry.UserEmail,
		entry.UserName,
		entry.UserRole,
		string(entry.Action),
		entry.Module,
		entry.EntityType,
		entry.EntityID,
		entry.EntityName,
		entry.IPAddress,
		entry.SessionID,
		entry.RequestMethod,
		entry.RequestPath,
		strconv.FormatBool(entry.OperationSuccess),
	}

	if len(entry.Changes) == 0 {
		return [][]string{append(base, "", "", "", "", "")}
	}

	rows := make([][]string, 0, len(entry.Changes))
	for i := range entry.Changes {
		ch := &entry.Changes[i]
		row := make([]string, 0, len(base)+5)
		row = append(row, base...)
		row = append(row,
			ch.FieldName,
			string(ch.FieldType),
			string(ch.ChangeType),
			derefOr(ch.DisplayOldValue(), ""),
			derefOr(ch.DisplayNewValue(), ""),
		)
		rows = append(rows, row)
	}
	return rows
}

func derefOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}
