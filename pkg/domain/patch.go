package domain

import (
	"slices"
	"time"
)

// StatusPatch is a sparse update: nil fields are left untouched, non-nil
// fields replace the stored value wholesale. Identity fields (status ID,
// tracking ID, source ID) and the owning client are not patchable.
type StatusPatch struct {
	StatusType  *string `json:"status_type,omitempty"`
	Category    *string `json:"category,omitempty"`
	SubCategory *string `json:"sub_category,omitempty"`
	Priority    *string `json:"priority,omitempty"`

	CurrentStage  *string          `json:"current_stage,omitempty"`
	StatusSummary *string          `json:"status_summary,omitempty"`
	StatusDetails map[string]Value `json:"status_details,omitempty"`

	AdvisorID         *string           `json:"advisor_id,omitempty"`
	HouseholdID       *string           `json:"household_id,omitempty"`
	RelatedClientIDs  []string          `json:"related_client_ids,omitempty"`
	BeneficiaryIDs    []string          `json:"beneficiary_ids,omitempty"`
	RelationshipTypes map[string]string `json:"relationship_types,omitempty"`

	RequiredActions         []string   `json:"required_actions,omitempty"`
	CompletedActions        []string   `json:"completed_actions,omitempty"`
	EstimatedCompletionDate *time.Time `json:"estimated_completion_date,omitempty"`
	ActualCompletionDate    *time.Time `json:"actual_completion_date,omitempty"`

	Tags     map[string]string `json:"tags,omitempty"`
	Metadata map[string]Value  `json:"metadata,omitempty"`
}

// Apply copies the present patch fields onto s. Collections are cloned so the
// patched status shares no memory with the patch.
func (p StatusPatch) Apply(s *Status) {
	if p.StatusType != nil {
		s.StatusType = *p.StatusType
	}
	if p.Category != nil {
		s.Category = *p.Category
	}
	if p.SubCategory != nil {
		s.SubCategory = *p.SubCategory
	}
	if p.Priority != nil {
		s.Priority = *p.Priority
	}
	if p.CurrentStage != nil {
		s.CurrentStage = *p.CurrentStage
	}
	if p.StatusSummary != nil {
		s.StatusSummary = *p.StatusSummary
	}
	if p.StatusDetails != nil {
		s.StatusDetails = CloneValueMap(p.StatusDetails)
	}
	if p.AdvisorID != nil {
		s.AdvisorID = *p.AdvisorID
	}
	if p.HouseholdID != nil {
		s.HouseholdID = *p.HouseholdID
	}
	if p.RelatedClientIDs != nil {
		s.RelatedClientIDs = slices.Clone(p.RelatedClientIDs)
	}
	if p.BeneficiaryIDs != nil {
		s.BeneficiaryIDs = slices.Clone(p.BeneficiaryIDs)
	}
	if p.RelationshipTypes != nil {
		s.RelationshipTypes = cloneStringMap(p.RelationshipTypes)
	}
	if p.RequiredActions != nil {
		s.RequiredActions = slices.Clone(p.RequiredActions)
	}
	if p.CompletedActions != nil {
		s.CompletedActions = slices.Clone(p.CompletedActions)
	}
	if p.EstimatedCompletionDate != nil {
		s.EstimatedCompletionDate = cloneTime(p.EstimatedCompletionDate)
	}
	if p.ActualCompletionDate != nil {
		s.ActualCompletionDate = cloneTime(p.ActualCompletionDate)
	}
	if p.Tags != nil {
		s.Tags = cloneStringMap(p.Tags)
	}
	if p.Metadata != nil {
		s.Metadata = CloneValueMap(p.Metadata)
	}
}
