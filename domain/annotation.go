package domain

import (
	"github.com/fundwit/go-commons/types"
)

const (
	AnnotationComplianceCheck   = "compliance-check"
	AnnotationRegulationMapping = "regulation-mapping"
)

// Annotation carries a non-binding advisory result attached to a workflow for
// human reference. The engine never branches on its payload.
type Annotation struct {
	ID         types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	WorkflowID types.ID `json:"workflowId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Kind    string       `json:"kind"`
	Payload JSONDocument `json:"payload" sql:"type:TEXT"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}
