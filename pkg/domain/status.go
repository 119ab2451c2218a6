// Package domain defines the core persistent entities, value types, typed
// errors, and storage contracts used by statuscore.
package domain

import (
	"encoding/json"
	"slices"
	"time"
)

// Status is the primary entity: one tracked workflow/case record owned by a
// client. Callers always receive copies; the engine owns the canonical state.
type Status struct {
	StatusID   string `json:"status_id"`
	TrackingID string `json:"tracking_id"`
	SourceID   string `json:"source_id,omitempty"`

	StatusType  string `json:"status_type"`
	Category    string `json:"category"`
	SubCategory string `json:"sub_category"`
	Priority    string `json:"priority"`

	CurrentStage  string           `json:"current_stage"`
	StatusSummary string           `json:"status_summary"`
	StatusDetails map[string]Value `json:"status_details,omitempty"`

	ClientID          string            `json:"client_id"`
	AdvisorID         string            `json:"advisor_id,omitempty"`
	HouseholdID       string            `json:"household_id,omitempty"`
	RelatedClientIDs  []string          `json:"related_client_ids,omitempty"`
	BeneficiaryIDs    []string          `json:"beneficiary_ids,omitempty"`
	RelationshipTypes map[string]string `json:"relationship_types,omitempty"`

	RequiredActions         []string   `json:"required_actions,omitempty"`
	CompletedActions        []string   `json:"completed_actions,omitempty"`
	EstimatedCompletionDate *time.Time `json:"estimated_completion_date,omitempty"`
	ActualCompletionDate    *time.Time `json:"actual_completion_date,omitempty"`

	CreatedDate     time.Time `json:"created_date"`
	CreatedBy       string    `json:"created_by"`
	LastUpdatedDate time.Time `json:"last_updated_date"`
	LastUpdatedBy   string    `json:"last_updated_by"`

	Tags     map[string]string `json:"tags,omitempty"`
	Metadata map[string]Value  `json:"metadata,omitempty"`

	// Version increments on every successful mutation and backs optimistic
	// concurrency control.
	Version int64 `json:"version"`
}

// Normalize canonicalizes set-valued fields (sorted, deduplicated) so that
// equality checks and diffs compare by value set rather than insertion order.
func (s *Status) Normalize() {
	s.RelatedClientIDs = normalizeSet(s.RelatedClientIDs)
	s.BeneficiaryIDs = normalizeSet(s.BeneficiaryIDs)
}

func normalizeSet(in []string) []string {
	if in == nil {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

// FieldChange captures one field's old and new values inside a history entry.
type FieldChange struct {
	Old Value `json:"old_value"`
	New Value `json:"new_value"`
}

// StatusHistory is one immutable audit record of a single change. Entries are
// append-only and never edited or deleted.
type StatusHistory struct {
	HistoryID         string                 `json:"history_id"`
	StatusID          string                 `json:"status_id"`
	Timestamp         time.Time              `json:"timestamp"`
	ChangedBy         string                 `json:"changed_by"`
	PreviousStage     string                 `json:"previous_stage"`
	NewStage          string                 `json:"new_stage"`
	ChangeReason      string                 `json:"change_reason,omitempty"`
	ChangeDescription string                 `json:"change_description,omitempty"`
	ChangedFields     map[string]FieldChange `json:"changed_fields"`
}

// StatusRecord is the persisted document: the current status plus its full
// audit history. Storing both in one document lets a single compare-and-swap
// write commit a mutation and its history entry atomically.
type StatusRecord struct {
	Status  Status          `json:"status"`
	History []StatusHistory `json:"history,omitempty"`
}

// CloneStatus deep-copies a status so callers cannot mutate stored state.
func CloneStatus(s Status) Status {
	cp := s
	cp.StatusDetails = CloneValueMap(s.StatusDetails)
	cp.Metadata = CloneValueMap(s.Metadata)
	cp.RelatedClientIDs = slices.Clone(s.RelatedClientIDs)
	cp.BeneficiaryIDs = slices.Clone(s.BeneficiaryIDs)
	cp.RequiredActions = slices.Clone(s.RequiredActions)
	cp.CompletedActions = slices.Clone(s.CompletedActions)
	cp.RelationshipTypes = cloneStringMap(s.RelationshipTypes)
	cp.Tags = cloneStringMap(s.Tags)
	cp.EstimatedCompletionDate = cloneTime(s.EstimatedCompletionDate)
	cp.ActualCompletionDate = cloneTime(s.ActualCompletionDate)
	return cp
}

// CloneHistory deep-copies a history entry.
func CloneHistory(h StatusHistory) StatusHistory {
	cp := h
	if h.ChangedFields != nil {
		cp.ChangedFields = make(map[string]FieldChange, len(h.ChangedFields))
		for k, fc := range h.ChangedFields {
			cp.ChangedFields[k] = FieldChange{Old: fc.Old.Clone(), New: fc.New.Clone()}
		}
	}
	return cp
}

// CloneRecord deep-copies a record including its history.
func CloneRecord(r StatusRecord) StatusRecord {
	cp := StatusRecord{Status: CloneStatus(r.Status)}
	if r.History != nil {
		cp.History = make([]StatusHistory, len(r.History))
		for i, h := range r.History {
			cp.History[i] = CloneHistory(h)
		}
	}
	return cp
}

// EncodeRecord serializes a record for the storage collaborator.
func EncodeRecord(r StatusRecord) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRecord deserializes a stored record document.
func DecodeRecord(data []byte) (StatusRecord, error) {
	var rec StatusRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return StatusRecord{}, err
	}
	return rec, nil
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
