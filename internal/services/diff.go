package services

import (
	"encoding/json"
	"regexp"
	"strings"

	"casedesk/internal/models"
)

// FieldChange is one field-level difference between two entity snapshots.
// Snapshots are JSON-decoded maps, so values carry encoding/json's dynamic
// types (nil, bool, float64, string, []any, map[string]any).
type FieldChange struct {
	FieldName   string
	FieldType   models.FieldType
	OldValue    *string
	NewValue    *string
	ChangeType  models.ChangeType
	IsSensitive bool
}

// Field names containing any of these substrings (case-insensitive) are
// flagged sensitive. Values are still stored raw; masking is display-time.
var sensitiveFieldTokens = []string{
	"password",
	"token",
	"secret",
	"key",
	"hash",
	"salt",
	"credit_card",
	"ssn",
	"social_security",
}

var isoDatePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// IsSensitiveField reports whether a field name matches the denylist.
func IsSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, token := range sensitiveFieldTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// InferFieldType classifies a JSON-decoded value.
func InferFieldType(v any) models.FieldType {
	switch val := v.(type) {
	case nil:
		return models.FieldTypeNull
	case bool:
		return models.FieldTypeBoolean
	case float64, float32, int, int64, int32, uint, uint64, json.Number:
		return models.FieldTypeNumber
	case string:
		if isoDatePrefix.MatchString(val) {
			return models.FieldTypeDate
		}
		return models.FieldTypeString
	case []any:
		return models.FieldTypeArray
	case map[string]any:
		return models.FieldTypeJSON
	default:
		return models.FieldTypeUnknown
	}
}

// DiffCreate turns every non-null field of a new snapshot into an ADDED change.
func DiffCreate(newSnapshot map[string]any) []FieldChange {
	changes := make([]FieldChange, 0, len(newSnapshot))
	for name, value := range newSnapshot {
		if value == nil {
			continue
		}
		changes = append(changes, FieldChange{
			FieldName:   name,
			FieldType:   InferFieldType(value),
			OldValue:    nil,
			NewValue:    encodeValue(value),
			ChangeType:  models.ChangeAdded,
			IsSensitive: IsSensitiveField(name),
		})
	}
	return changes
}

// DiffUpdate compares every key present in newPartial against oldSnapshot and
// emits a change only when the values differ structurally. The change type is
// a pure function of old/new nullity.
func DiffUpdate(oldSnapshot, newPartial map[string]any) []FieldChange {
	var changes []FieldChange
	for name, newValue := range newPartial {
		var oldValue any
		if oldSnapshot != nil {
			oldValue = oldSnapshot[name]
		}

		if valuesEqual(oldValue, newValue) {
			continue
		}

		var changeType models.ChangeType
		switch {
		case oldValue == nil && newValue != nil:
			changeType = models.ChangeAdded
		case oldValue != nil && newValue == nil:
			changeType = models.ChangeRemoved
		default:
			changeType = models.ChangeModified
		}

		fieldType := InferFieldType(newValue)
		if newValue == nil {
			fieldType = InferFieldType(oldValue)
		}

		changes = append(changes, FieldChange{
			FieldName:   name,
			FieldType:   fieldType,
			OldValue:    encodeValue(oldValue),
			NewValue:    encodeValue(newValue),
			ChangeType:  changeType,
			IsSensitive: IsSensitiveField(name),
		})
	}
	return changes
}

// DiffDelete turns every non-null field of the prior snapshot into a REMOVED change.
func DiffDelete(oldSnapshot map[string]any) []FieldChange {
	changes := make([]FieldChange, 0, len(oldSnapshot))
	for name, value := range oldSnapshot {
		if value == nil {
			continue
		}
		changes = append(changes, FieldChange{
			FieldName:   name,
			FieldType:   InferFieldType(value),
			OldValue:    encodeValue(value),
			NewValue:    nil,
			ChangeType:  models.ChangeRemoved,
			IsSensitive: IsSensitiveField(name),
		})
	}
	return changes
}

// valuesEqual compares primitives by value and composites by canonical JSON
// serialization.
func valuesEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	}

	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}

// encodeValue renders a snapshot value for storage. Strings are stored as-is,
// composites and numbers via their JSON encoding, nil stays nil.
func encodeValue(v any) *string {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return &s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		fallback := "unencodable"
		return &fallback
	}
	encoded := string(raw)
	return &encoded
}
