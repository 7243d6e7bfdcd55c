package domain

import (
	"github.com/fundwit/go-commons/types"
)

type StageStatus string

const (
	StagePending         StageStatus = "pending"
	StageInProgress      StageStatus = "in_progress"
	StagePendingApproval StageStatus = "pending_approval"
	StageCompleted       StageStatus = "completed"
	StageRejected        StageStatus = "rejected"
)

// IsActive reports whether the stage is the one currently awaiting action.
// At most one stage per workflow may be active at a time.
func (s StageStatus) IsActive() bool {
	return s == StageInProgress || s == StagePendingApproval
}

// Stage is one ordered checkpoint owned by exactly one workflow. Name, roles
// and gate criteria are copied from the tier template at creation time, so
// later template edits never alter in-flight workflows.
type Stage struct {
	ID         types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	WorkflowID types.ID `json:"workflowId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Order int    `json:"order" gorm:"column:order_num"`
	Name  string `json:"name"`

	RequiredRoles RoleList     `json:"requiredRoles" sql:"type:TEXT"`
	GateCriteria  JSONDocument `json:"gateCriteria" sql:"type:TEXT"`

	Status StageStatus `json:"status"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
	UpdateTime types.Timestamp `json:"updateTime" sql:"type:DATETIME(6) NOT NULL"`
}
