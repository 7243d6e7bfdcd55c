package domain

import (
	"github.com/fundwit/go-commons/types"
)

type RiskTier string

const (
	RiskTierLow    RiskTier = "low"
	RiskTierMedium RiskTier = "medium"
	RiskTierHigh   RiskTier = "high"
)

func (t RiskTier) IsValid() bool {
	return t == RiskTierLow || t == RiskTierMedium || t == RiskTierHigh
}

type WorkflowStatus string

const (
	WorkflowInProgress WorkflowStatus = "in_progress"
	WorkflowCompleted  WorkflowStatus = "completed"
	WorkflowRejected   WorkflowStatus = "rejected"
)

// IsTerminal reports whether no further transition may leave the status.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowCompleted || s == WorkflowRejected
}

// Workflow is the governance lifecycle of exactly one initiative. Records are
// never deleted, only terminalized.
type Workflow struct {
	ID           types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	InitiativeID types.ID `json:"initiativeId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	RiskTier RiskTier       `json:"riskTier"`
	Status   WorkflowStatus `json:"status"`

	// index into the ordered stage list; nil once the workflow is terminal
	ActiveStageIndex *int `json:"activeStageIndex"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
	UpdateTime types.Timestamp `json:"updateTime" sql:"type:DATETIME(6) NOT NULL"`
}

type WorkflowDetail struct {
	Workflow

	Stages []Stage `json:"stages" gorm:"-"`
}
