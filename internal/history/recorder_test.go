package history

import (
	"testing"
	"time"

	"statuscore/pkg/domain"
)

func testRecorder() *Recorder {
	seq := 0
	return New(
		WithClock(func() time.Time { return time.Date(2023, 6, 16, 9, 0, 0, 0, time.UTC) }),
		WithIDFunc(func() string {
			seq++
			return "hist-1"
		}),
	)
}

func baseStatus() domain.Status {
	return domain.Status{
		StatusID:         "status-1",
		TrackingID:       "ST-A7B3C-230615",
		ClientID:         "client123",
		StatusType:       "account_opening",
		Category:         "Retirement",
		CurrentStage:     "received",
		StatusSummary:    "Creating retirement plan",
		Priority:         "high",
		RelatedClientIDs: []string{"client777"},
		RequiredActions:  []string{"sign forms"},
		Tags:             map[string]string{"segment": "premier"},
		Version:          1,
	}
}

func TestDiffRecordsOnlyChangedFields(t *testing.T) {
	prev := baseStatus()
	next := domain.CloneStatus(prev)
	next.CurrentStage = "in_progress"
	next.StatusSummary = "Documents under review"
	next.Version = 2

	entry := testRecorder().Diff(prev, next, "advisor456", "docs received", "")

	if entry.HistoryID != "hist-1" || entry.StatusID != "status-1" {
		t.Fatalf("entry identity = %q / %q", entry.HistoryID, entry.StatusID)
	}
	if entry.PreviousStage != "received" || entry.NewStage != "in_progress" {
		t.Fatalf("stages = %q -> %q", entry.PreviousStage, entry.NewStage)
	}
	if entry.ChangedBy != "advisor456" || entry.ChangeReason != "docs received" {
		t.Fatalf("provenance = %q / %q", entry.ChangedBy, entry.ChangeReason)
	}
	if len(entry.ChangedFields) != 2 {
		t.Fatalf("changed fields = %v", entry.ChangedFields)
	}
	stage, ok := entry.ChangedFields["current_stage"]
	if !ok {
		t.Fatal("current_stage missing from changed fields")
	}
	if got, _ := stage.Old.AsString(); got != "received" {
		t.Fatalf("old stage = %q", got)
	}
	if got, _ := stage.New.AsString(); got != "in_progress" {
		t.Fatalf("new stage = %q", got)
	}
	if _, ok := entry.ChangedFields["status_summary"]; !ok {
		t.Fatal("status_summary missing from changed fields")
	}
}

func TestDiffIdenticalSnapshotsYieldsEmptyChangeSet(t *testing.T) {
	prev := baseStatus()
	next := domain.CloneStatus(prev)

	entry := testRecorder().Diff(prev, next, "advisor456", "", "")

	if len(entry.ChangedFields) != 0 {
		t.Fatalf("expected empty change set, got %v", entry.ChangedFields)
	}
	if entry.PreviousStage != entry.NewStage {
		t.Fatal("stages must still be recorded when unchanged")
	}
}

func TestDiffTreatsSetsByValueEquality(t *testing.T) {
	prev := baseStatus()
	prev.RelatedClientIDs = []string{"a", "b"}
	next := domain.CloneStatus(prev)
	next.RelatedClientIDs = []string{"b", "a", "a"}

	entry := testRecorder().Diff(prev, next, "ops", "", "")
	if _, ok := entry.ChangedFields["related_client_ids"]; ok {
		t.Fatal("reordered set should not count as a change")
	}

	next.RelatedClientIDs = []string{"a", "c"}
	entry = testRecorder().Diff(prev, next, "ops", "", "")
	if _, ok := entry.ChangedFields["related_client_ids"]; !ok {
		t.Fatal("membership change must count as a change")
	}
}

func TestDiffTreatsActionListsAsOrdered(t *testing.T) {
	prev := baseStatus()
	prev.RequiredActions = []string{"a", "b"}
	next := domain.CloneStatus(prev)
	next.RequiredActions = []string{"b", "a"}

	entry := testRecorder().Diff(prev, next, "ops", "", "")
	if _, ok := entry.ChangedFields["required_actions"]; !ok {
		t.Fatal("action lists are ordered; reorder is a change")
	}
}

func TestDiffMapAndTimeFields(t *testing.T) {
	prev := baseStatus()
	est := time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)
	next := domain.CloneStatus(prev)
	next.Tags = map[string]string{"segment": "standard"}
	next.EstimatedCompletionDate = &est
	next.Metadata = map[string]domain.Value{"score": domain.NumberValue(0.5)}

	entry := testRecorder().Diff(prev, next, "ops", "", "")

	tags, ok := entry.ChangedFields["tags"]
	if !ok {
		t.Fatal("tags change missing")
	}
	oldTags, _ := tags.Old.AsMap()
	if got, _ := oldTags["segment"].AsString(); got != "premier" {
		t.Fatalf("old tag = %q", got)
	}
	date, ok := entry.ChangedFields["estimated_completion_date"]
	if !ok {
		t.Fatal("estimated_completion_date change missing")
	}
	if !date.Old.IsNull() {
		t.Fatal("old completion date should be null")
	}
	if got, _ := date.New.AsString(); got != "2023-09-01T00:00:00Z" {
		t.Fatalf("new completion date = %q", got)
	}
	if _, ok := entry.ChangedFields["metadata"]; !ok {
		t.Fatal("metadata change missing")
	}
}

func TestDiffIgnoresProvenanceAndVersion(t *testing.T) {
	prev := baseStatus()
	next := domain.CloneStatus(prev)
	next.LastUpdatedDate = prev.LastUpdatedDate.Add(time.Hour)
	next.LastUpdatedBy = "someone_else"
	next.Version = 7

	entry := testRecorder().Diff(prev, next, "ops", "", "")
	if len(entry.ChangedFields) != 0 {
		t.Fatalf("provenance must not be tracked, got %v", entry.ChangedFields)
	}
}
