package task

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// OpenStatuses are the statuses automation may still cancel.
var OpenStatuses = []Status{StatusPending, StatusInProgress}

// Automation tags
const (
	TagApplicationStatusPrefix = "application-status:"
	TagApplicationReview       = TagApplicationStatusPrefix + "review"
	TagTasterNoShow            = "taster-no-show"
)

// ApplicationStatusTag builds the tag of a task opened for an application reaching `kind`.
func ApplicationStatusTag(kind string) string {
	return TagApplicationStatusPrefix + kind
}

func IsApplicationStatusTag(tag *string) bool {
	return tag != nil && strings.HasPrefix(*tag, TagApplicationStatusPrefix)
}

func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusInProgress
}

type Task struct {
	ID            string     `json:"id"`
	LeadID        *string    `json:"lead_id"`
	ApplicationID *string    `json:"application_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	DueAt         time.Time  `json:"due_at"` // UTC
	AssigneeID    *string    `json:"assignee_id"`
	Status        Status     `json:"status"`
	CompletedAt   *time.Time `json:"completed_at"`
	AutomationTag *string    `json:"automation_tag"` // nil for manually created tasks
	CreatedAt     time.Time  `json:"created_at"`     // UTC
	UpdatedAt     time.Time  `json:"updated_at"`     // UTC
}

// QueryFilter applies AND operation on the set fields.
type QueryFilter struct {
	LeadID        string
	ApplicationID string
	AutomationTag string
	Statuses      []Status
}

func (f QueryFilter) Match(t Task) bool {
	if f.LeadID != "" && (t.LeadID == nil || *t.LeadID != f.LeadID) {
		return false
	}
	if f.ApplicationID != "" && (t.ApplicationID == nil || *t.ApplicationID != f.ApplicationID) {
		return false
	}
	if f.AutomationTag != "" && (t.AutomationTag == nil || *t.AutomationTag != f.AutomationTag) {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, st := range f.Statuses {
			if t.Status == st {
				return true
			}
		}
		return false
	}
	return true
}
