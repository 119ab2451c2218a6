package domain

import (
	"testing"
	"time"
)

func sampleStatus() Status {
	est := time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)
	return Status{
		StatusID:          "status-1",
		TrackingID:        "ST-A7B3C-230615",
		SourceID:          "crm-100",
		StatusType:        "account_opening",
		Category:          "Retirement",
		SubCategory:       "IRA",
		Priority:          "high",
		CurrentStage:      "received",
		StatusSummary:     "Creating retirement plan",
		StatusDetails:     map[string]Value{"channel": StringValue("advisor")},
		ClientID:          "client123",
		AdvisorID:         "advisor456",
		HouseholdID:       "household9",
		RelatedClientIDs:  []string{"client777", "client123b"},
		BeneficiaryIDs:    []string{"ben-2", "ben-1"},
		RelationshipTypes: map[string]string{"client777": "spouse"},
		RequiredActions:   []string{"sign forms", "fund account"},
		CompletedActions:  []string{"identity check"},
		EstimatedCompletionDate: &est,
		CreatedDate:             time.Date(2023, 6, 15, 10, 0, 0, 0, time.UTC),
		CreatedBy:               "advisor456",
		LastUpdatedDate:         time.Date(2023, 6, 15, 10, 0, 0, 0, time.UTC),
		LastUpdatedBy:           "advisor456",
		Tags:                    map[string]string{"segment": "premier"},
		Metadata:                map[string]Value{"score": NumberValue(0.9)},
		Version:                 1,
	}
}

func TestCloneStatusIsolation(t *testing.T) {
	original := sampleStatus()
	clone := CloneStatus(original)

	clone.StatusDetails["channel"] = StringValue("self_service")
	clone.Tags["segment"] = "standard"
	clone.RelatedClientIDs[0] = "other"
	clone.RequiredActions[0] = "other action"
	*clone.EstimatedCompletionDate = clone.EstimatedCompletionDate.Add(time.Hour)

	if got, _ := original.StatusDetails["channel"].AsString(); got != "advisor" {
		t.Fatalf("details mutated through clone: %q", got)
	}
	if original.Tags["segment"] != "premier" {
		t.Fatal("tags mutated through clone")
	}
	if original.RelatedClientIDs[0] != "client777" {
		t.Fatal("related clients mutated through clone")
	}
	if original.RequiredActions[0] != "sign forms" {
		t.Fatal("required actions mutated through clone")
	}
	if !original.EstimatedCompletionDate.Equal(time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("completion date mutated through clone")
	}
}

func TestNormalizeSortsAndDeduplicatesSets(t *testing.T) {
	s := Status{
		RelatedClientIDs: []string{"b", "a", "b"},
		BeneficiaryIDs:   []string{"z", "z", "a"},
	}
	s.Normalize()
	if len(s.RelatedClientIDs) != 2 || s.RelatedClientIDs[0] != "a" || s.RelatedClientIDs[1] != "b" {
		t.Fatalf("related = %v", s.RelatedClientIDs)
	}
	if len(s.BeneficiaryIDs) != 2 || s.BeneficiaryIDs[0] != "a" || s.BeneficiaryIDs[1] != "z" {
		t.Fatalf("beneficiaries = %v", s.BeneficiaryIDs)
	}
}

func TestRecordEncodeDecodeRoundTrip(t *testing.T) {
	rec := StatusRecord{
		Status: sampleStatus(),
		History: []StatusHistory{{
			HistoryID:     "hist-1",
			StatusID:      "status-1",
			Timestamp:     time.Date(2023, 6, 16, 9, 0, 0, 0, time.UTC),
			ChangedBy:     "advisor456",
			PreviousStage: "received",
			NewStage:      "in_progress",
			ChangedFields: map[string]FieldChange{
				"current_stage": {Old: StringValue("received"), New: StringValue("in_progress")},
			},
		}},
	}
	data, err := EncodeRecord(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeRecord(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Status.TrackingID != rec.Status.TrackingID {
		t.Fatalf("tracking id = %q", decoded.Status.TrackingID)
	}
	if decoded.Status.Version != 1 {
		t.Fatalf("version = %d", decoded.Status.Version)
	}
	if len(decoded.History) != 1 {
		t.Fatalf("history length = %d", len(decoded.History))
	}
	fc, ok := decoded.History[0].ChangedFields["current_stage"]
	if !ok {
		t.Fatal("changed field missing after round trip")
	}
	if got, _ := fc.New.AsString(); got != "in_progress" {
		t.Fatalf("new stage value = %q", got)
	}
	if !decoded.Status.CreatedDate.Equal(rec.Status.CreatedDate) {
		t.Fatal("created date not preserved")
	}
}

func TestDecodeRecordRejectsGarbage(t *testing.T) {
	if _, err := DecodeRecord([]byte("{not json")); err == nil {
		t.Fatal("expected decode error")
	}
}
