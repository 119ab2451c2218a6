// Package history computes field-level diffs between status versions and
// produces immutable audit entries.
package history

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"statuscore/pkg/domain"
)

// Recorder builds StatusHistory entries from before/after snapshots. It is
// the only producer of history entries; entries are never mutated after
// creation.
type Recorder struct {
	now   func() time.Time
	newID func() string
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDFunc replaces the history ID source.
func WithIDFunc(newID func() string) Option {
	return func(r *Recorder) {
		if newID != nil {
			r.newID = newID
		}
	}
}

// New constructs a recorder with UUID history IDs and a UTC clock unless
// overridden.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Diff compares every tracked field between prev and next and returns one
// history entry. Provenance fields (created/updated stamps, version) are not
// tracked. Stages are always recorded even when unchanged. Identical
// snapshots yield an entry with an empty ChangedFields map, which is a valid
// degenerate case rather than an error.
func (r *Recorder) Diff(prev, next domain.Status, changedBy, reason, description string) domain.StatusHistory {
	changed := make(map[string]domain.FieldChange)
	record := func(field string, old, updated domain.Value) {
		if !old.Equal(updated) {
			changed[field] = domain.FieldChange{Old: old, New: updated}
		}
	}

	record("status_type", stringValue(prev.StatusType), stringValue(next.StatusType))
	record("category", stringValue(prev.Category), stringValue(next.Category))
	record("sub_category", stringValue(prev.SubCategory), stringValue(next.SubCategory))
	record("priority", stringValue(prev.Priority), stringValue(next.Priority))
	record("current_stage", stringValue(prev.CurrentStage), stringValue(next.CurrentStage))
	record("status_summary", stringValue(prev.StatusSummary), stringValue(next.StatusSummary))
	record("status_details", valueMap(prev.StatusDetails), valueMap(next.StatusDetails))
	record("advisor_id", stringValue(prev.AdvisorID), stringValue(next.AdvisorID))
	record("household_id", stringValue(prev.HouseholdID), stringValue(next.HouseholdID))
	record("related_client_ids", stringSet(prev.RelatedClientIDs), stringSet(next.RelatedClientIDs))
	record("beneficiary_ids", stringSet(prev.BeneficiaryIDs), stringSet(next.BeneficiaryIDs))
	record("relationship_types", stringMap(prev.RelationshipTypes), stringMap(next.RelationshipTypes))
	record("required_actions", stringList(prev.RequiredActions), stringList(next.RequiredActions))
	record("completed_actions", stringList(prev.CompletedActions), stringList(next.CompletedActions))
	record("estimated_completion_date", timeValue(prev.EstimatedCompletionDate), timeValue(next.EstimatedCompletionDate))
	record("actual_completion_date", timeValue(prev.ActualCompletionDate), timeValue(next.ActualCompletionDate))
	record("tags", stringMap(prev.Tags), stringMap(next.Tags))
	record("metadata", valueMap(prev.Metadata), valueMap(next.Metadata))

	return domain.StatusHistory{
		HistoryID:         r.newID(),
		StatusID:          next.StatusID,
		Timestamp:         r.now(),
		ChangedBy:         changedBy,
		PreviousStage:     prev.CurrentStage,
		NewStage:          next.CurrentStage,
		ChangeReason:      reason,
		ChangeDescription: description,
		ChangedFields:     changed,
	}
}

func stringValue(s string) domain.Value {
	if s == "" {
		return domain.NullValue()
	}
	return domain.StringValue(s)
}

func stringList(items []string) domain.Value {
	if items == nil {
		return domain.NullValue()
	}
	values := make([]domain.Value, len(items))
	for i, item := range items {
		values[i] = domain.StringValue(item)
	}
	return domain.ListValue(values...)
}

// stringSet compares by value set: order and duplicates are ignored.
func stringSet(items []string) domain.Value {
	if items == nil {
		return domain.NullValue()
	}
	sorted := slices.Clone(items)
	slices.Sort(sorted)
	return stringList(slices.Compact(sorted))
}

func stringMap(m map[string]string) domain.Value {
	if m == nil {
		return domain.NullValue()
	}
	values := make(map[string]domain.Value, len(m))
	for k, v := range m {
		values[k] = domain.StringValue(v)
	}
	return domain.MapValue(values)
}

func valueMap(m map[string]domain.Value) domain.Value {
	if m == nil {
		return domain.NullValue()
	}
	return domain.MapValue(m)
}

func timeValue(t *time.Time) domain.Value {
	if t == nil {
		return domain.NullValue()
	}
	return domain.StringValue(t.UTC().Format(time.RFC3339Nano))
}
