package services

import (
	"encoding/json"

	"casedesk/internal/models"

	"gorm.io/gorm"
)

// RegisterSnapshotFetchers binds every audited entity type to a typed lookup
// against the live store. Built once at startup; entity types not registered
// here simply get no prior-state diff.
func RegisterSnapshotFetchers(recorder *AuditRecorder, db *gorm.DB) {
	recorder.RegisterSnapshotFetcher("case", func(id string) (map[string]any, bool) {
		var m models.Case
		return fetchSnapshot(db, &m, id)
	})
	recorder.RegisterSnapshotFetcher("todo", func(id string) (map[string]any, bool) {
		var m models.Todo
		return fetchSnapshot(db, &m, id)
	})
	recorder.RegisterSnapshotFetcher("note", func(id string) (map[string]any, bool) {
		var m models.Note
		return fetchSnapshot(db, &m, id)
	})
	recorder.RegisterSnapshotFetcher("knowledge_doc", func(id string) (map[string]any, bool) {
		var m models.KnowledgeDoc
		return fetchSnapshot(db, &m, id)
	})
	recorder.RegisterSnapshotFetcher("user", func(id string) (map[string]any, bool) {
		var m models.User
		return fetchSnapshot(db, &m, id)
	})
}

// fetchSnapshot loads one record and converts it to the diff engine's map
// shape via its JSON encoding, so `json:"-"` fields (password hashes, token
// hashes) never reach the audit trail.
func fetchSnapshot(db *gorm.DB, model any, id string) (map[string]any, bool) {
	if err := db.First(model, "id = ?", id).Error; err != nil {
		return nil, false
	}
	raw, err := json.Marshal(model)
	if err != nil {
		return nil, false
	}
	var snapshot map[string]any
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, false
	}
	return snapshot, true
}
