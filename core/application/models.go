package application

import (
	"time"

	"github.com/trezcool/admissions/core"
)

type Status string

const (
	StatusDraft       Status = "DRAFT"
	StatusSubmitted   Status = "SUBMITTED"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
	StatusEnrolled    Status = "ENROLLED"
	StatusWithdrawn   Status = "WITHDRAWN"
)

var AllStatuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusUnderReview,
	StatusApproved,
	StatusRejected,
	StatusEnrolled,
	StatusWithdrawn,
}

func (s Status) IsValid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is a final outcome: open automation work becomes moot.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusEnrolled, StatusWithdrawn:
		return true
	}
	return false
}

type Application struct {
	ID          string     `json:"id"`
	LeadID      string     `json:"lead_id"`
	Status      Status     `json:"status"`
	SubmittedAt *time.Time `json:"submitted_at"`
	Decision    string     `json:"decision"`
	DecisionAt  *time.Time `json:"decision_at"`
	ReviewedBy  *string    `json:"reviewed_by"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at"` // UTC
}

// NewApplication contains information needed to create a new Application.
type NewApplication struct {
	LeadID string `json:"lead_id" validate:"required,notblank"`
	Status Status `json:"status" validate:"omitempty,app_status"` // defaults to DRAFT
}

// StatusUpdate moves an application to Status.
type StatusUpdate struct {
	Status     Status  `json:"status" validate:"required,app_status"`
	Decision   string  `json:"decision"`
	ReviewedBy *string `json:"reviewed_by"`
}

func (su *StatusUpdate) Clean() {
	su.Decision = core.CleanString(su.Decision)
	su.ReviewedBy = core.CleanStringPtr(su.ReviewedBy)
}
