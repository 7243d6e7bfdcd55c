package domain

import (
	"github.com/fundwit/go-commons/types"
)

type Decision string

const (
	DecisionApproved               Decision = "approved"
	DecisionApprovedWithConditions Decision = "approved_with_conditions"
	DecisionRequestChanges         Decision = "request_changes"
	DecisionRejected               Decision = "rejected"
)

func (d Decision) IsValid() bool {
	return d == DecisionApproved || d == DecisionApprovedWithConditions ||
		d == DecisionRequestChanges || d == DecisionRejected
}

// Approval is a single human decision event scoped to one stage. An approval
// request is opened with the decision unset; the decision is written exactly
// once, resubmission requires a new record. History accumulates per stage.
type Approval struct {
	ID      types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	StageID types.ID `json:"stageId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	ApproverRole string   `json:"approverRole"`
	Decision     Decision `json:"decision"`
	Comments     string   `json:"comments" sql:"type:TEXT"`

	CreateTime types.Timestamp  `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
	DecidedAt  *types.Timestamp `json:"decidedAt" sql:"type:DATETIME(6)"`
}

func (a *Approval) Decided() bool {
	return a.Decision != ""
}
