package storage

import (
	"context"
	"steward/domain"

	"github.com/fundwit/go-commons/types"
)

// WorkflowStore is the durable storage contract consumed by the governance
// engine. Every operation is atomic with respect to the workflow it touches.
// Status-changing updates are optimistic: the caller passes the status it
// read, and the store fails with bizerror.ErrConflict when the stored status
// changed in between, so concurrent writers never overwrite each other.
type WorkflowStore interface {
	// CreateWorkflow persists a workflow together with its stages,
	// all-or-nothing. Fails with bizerror.ErrDuplicateWorkflow when a
	// non-terminal workflow already exists for the initiative.
	CreateWorkflow(ctx context.Context, initiativeID types.ID, riskTier domain.RiskTier, stages []domain.Stage) (*domain.WorkflowDetail, error)

	GetWorkflow(ctx context.Context, workflowID types.ID) (*domain.Workflow, error)
	GetWorkflowByInitiative(ctx context.Context, initiativeID types.ID) (*domain.Workflow, error)
	UpdateWorkflow(ctx context.Context, workflow *domain.Workflow, priorStatus domain.WorkflowStatus) (*domain.Workflow, error)

	ListStages(ctx context.Context, workflowID types.ID) ([]domain.Stage, error)
	GetStage(ctx context.Context, stageID types.ID) (*domain.Stage, error)
	UpdateStage(ctx context.Context, stage *domain.Stage, priorStatus domain.StageStatus) (*domain.Stage, error)

	CreateApproval(ctx context.Context, stageID types.ID, approverRole string) (*domain.Approval, error)
	GetApproval(ctx context.Context, approvalID types.ID) (*domain.Approval, error)
	ListApprovals(ctx context.Context, stageID types.ID) ([]domain.Approval, error)
	// RecordDecision writes a decision exactly once. Fails with
	// bizerror.ErrAlreadyDecided when the approval already carries one.
	RecordDecision(ctx context.Context, approvalID types.ID, decision domain.Decision, comments string) (*domain.Approval, error)

	SaveAnnotation(ctx context.Context, workflowID types.ID, kind string, payload domain.JSONDocument) (*domain.Annotation, error)
	ListAnnotations(ctx context.Context, workflowID types.ID) ([]domain.Annotation, error)
}
