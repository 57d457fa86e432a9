package lead

import (
	"time"

	"github.com/trezcool/admissions/core"
)

type Stage string

// Stages
const (
	StageNew         Stage = "NEW"
	StageContacted   Stage = "CONTACTED"
	StageVisitBooked Stage = "VISIT_BOOKED"
	StageVisited     Stage = "VISITED"
	StageApplied     Stage = "APPLIED"
	StageEnrolled    Stage = "ENROLLED"
	StageLost        Stage = "LOST"
)

// CreationReason is recorded on the synthetic history entry of every new lead.
const CreationReason = "Lead created"

var AllStages = []Stage{
	StageNew,
	StageContacted,
	StageVisitBooked,
	StageVisited,
	StageApplied,
	StageEnrolled,
	StageLost,
}

func (s Stage) IsValid() bool {
	for _, st := range AllStages {
		if s == st {
			return true
		}
	}
	return false
}

// RequiresReason reports whether moving into s must be explained.
func (s Stage) RequiresReason() bool {
	return s == StageLost
}

type Lead struct {
	ID              string            `json:"id"`
	BranchID        string            `json:"branch_id"`
	AssignedStaffID *string           `json:"assigned_staff_id"`
	FirstName       string            `json:"first_name"`
	LastName        string            `json:"last_name"`
	Email           string            `json:"email"`
	Phone           string            `json:"phone"`
	Stage           Stage             `json:"stage"`
	Source          string            `json:"source"`
	Tags            []string          `json:"tags"`
	Metadata        map[string]string `json:"metadata"`
	CreatedAt       time.Time         `json:"created_at"` // UTC
	UpdatedAt       time.Time         `json:"updated_at"` // UTC
}

func (l Lead) FullName() string {
	return core.CleanString(l.FirstName + " " + l.LastName)
}

// StageHistoryEntry is an immutable record of one stage transition.
// FromStage is nil for the creation entry.
type StageHistoryEntry struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	FromStage *Stage    `json:"from_stage"`
	ToStage   Stage     `json:"to_stage"`
	ChangedBy *string   `json:"changed_by"`
	Reason    *string   `json:"reason"`
	ChangedAt time.Time `json:"changed_at"` // UTC
}

// NewLead contains information needed to create a new Lead.
type NewLead struct {
	BranchID        string            `json:"branch_id" validate:"required,notblank"`
	AssignedStaffID *string           `json:"assigned_staff_id"`
	FirstName       string            `json:"first_name" validate:"required,notblank"`
	LastName        string            `json:"last_name"`
	Email           string            `json:"email" validate:"omitempty,email"`
	Phone           string            `json:"phone"`
	Source          string            `json:"source"`
	Tags            []string          `json:"tags"`
	Metadata        map[string]string `json:"metadata"`
}

func (nl *NewLead) Clean() {
	nl.BranchID = core.CleanString(nl.BranchID)
	nl.AssignedStaffID = core.CleanStringPtr(nl.AssignedStaffID)
	nl.FirstName = core.CleanString(nl.FirstName)
	nl.LastName = core.CleanString(nl.LastName)
	nl.Email = core.CleanString(nl.Email, true /* lower */)
	nl.Phone = core.CleanString(nl.Phone)
	nl.Source = core.CleanString(nl.Source, true /* lower */)
}

// Transition moves one lead to ToStage.
type Transition struct {
	ToStage  Stage   `json:"to_stage" validate:"required,lead_stage"`
	ActorID  string  `json:"actor_id" validate:"required,notblank"`
	Reason   string  `json:"reason"`
	AssignTo *string `json:"assign_to"`
}

// BulkTransition moves every lead of LeadIDs to ToStage, or none of them.
type BulkTransition struct {
	LeadIDs []string `json:"lead_ids" validate:"required,min=1,dive,required"`
	ToStage Stage    `json:"to_stage" validate:"required,lead_stage"`
	ActorID string   `json:"actor_id" validate:"required,notblank"`
	Reason  string   `json:"reason"`
}
