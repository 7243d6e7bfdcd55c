package governance

import (
	"context"
	"errors"
	"fmt"

	"steward/bizerror"
	"steward/domain"
	"steward/domain/tier"
	"steward/event"
	"steward/storage"

	"github.com/fundwit/go-commons/types"
)

// EngineTraits is the caller-facing surface of the governance workflow
// engine, consumed by the REST handlers.
type EngineTraits interface {
	InitializeWorkflow(ctx context.Context, creation *WorkflowCreation) (*domain.WorkflowDetail, error)
	Advance(ctx context.Context, workflowID types.ID) (*domain.Workflow, error)
	OpenApproval(ctx context.Context, stageID types.ID, creation *ApprovalCreation) (*domain.Approval, error)
	SubmitApprovalDecision(ctx context.Context, stageID, approvalID types.ID, submission *DecisionSubmission) (*domain.Stage, error)

	DetailWorkflow(ctx context.Context, workflowID types.ID) (*domain.WorkflowDetail, error)
	DetailWorkflowByInitiative(ctx context.Context, initiativeID types.ID) (*domain.WorkflowDetail, error)
	ListStages(ctx context.Context, workflowID types.ID) ([]domain.Stage, error)
	ListApprovals(ctx context.Context, stageID types.ID) ([]domain.Approval, error)
}

type WorkflowCreation struct {
	InitiativeID types.ID        `json:"initiativeId" binding:"required"`
	RiskTier     domain.RiskTier `json:"riskTier" binding:"required"`
}

type ApprovalCreation struct {
	ApproverRole string `json:"approverRole" binding:"required"`
}

type DecisionSubmission struct {
	Decision domain.Decision `json:"decision" binding:"required"`
	Comments string          `json:"comments"`
}

// Engine is a stateless orchestrator over a WorkflowStore: it holds no
// mutable state of its own, all mutation is serialized by the store's
// optimistic contract. Safe for concurrent callers; conflicts surface
// unchanged, never retried here (a blind retry could re-apply a decision).
type Engine struct {
	store storage.WorkflowStore
}

func NewEngine(store storage.WorkflowStore) *Engine {
	return &Engine{store: store}
}

// InitializeWorkflow expands the risk tier's template into stage records and
// creates the workflow with stage 1 in progress. The sole creation point of
// workflows and stages.
func (e *Engine) InitializeWorkflow(ctx context.Context, creation *WorkflowCreation) (*domain.WorkflowDetail, error) {
	templates, err := tier.TemplatesFor(creation.RiskTier)
	if err != nil {
		return nil, err
	}

	stages := make([]domain.Stage, 0, len(templates))
	for idx, template := range templates {
		status := domain.StagePending
		if idx == 0 {
			status = domain.StageInProgress
		}
		stages = append(stages, domain.Stage{
			Order:         template.Order,
			Name:          template.Name,
			RequiredRoles: template.RequiredRoles,
			GateCriteria:  template.GateCriteria,
			Status:        status,
		})
	}

	detail, err := e.store.CreateWorkflow(ctx, creation.InitiativeID, creation.RiskTier, stages)
	if err != nil {
		return nil, err
	}

	if err := event.CreateEvent(ctx, event.SourceTypeWorkflow, detail.ID, workflowDesc(&detail.Workflow),
		event.EventCategoryCreated, nil, ""); err != nil {
		return nil, err
	}
	return detail, nil
}

// Advance moves the active-stage pointer past a completed stage, or
// terminalizes the workflow when the completed stage was the last one.
// Never called implicitly: approval and progression are distinct gates.
func (e *Engine) Advance(ctx context.Context, workflowID types.ID) (*domain.Workflow, error) {
	workflow, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if workflow.Status.IsTerminal() {
		return nil, bizerror.ErrAlreadyTerminal
	}

	stages, err := e.store.ListStages(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if workflow.ActiveStageIndex == nil || *workflow.ActiveStageIndex >= len(stages) {
		return nil, bizerror.ErrStageNotReady
	}
	activeIndex := *workflow.ActiveStageIndex
	active := stages[activeIndex]
	if active.Status != domain.StageCompleted {
		return nil, bizerror.ErrStageNotReady
	}

	properties := []event.UpdatedProperty{}
	if activeIndex == len(stages)-1 {
		workflow.Status = domain.WorkflowCompleted
		workflow.ActiveStageIndex = nil
		properties = append(properties, event.UpdatedProperty{PropertyName: "status",
			OldValue: string(domain.WorkflowInProgress), NewValue: string(domain.WorkflowCompleted)})
	} else {
		// a prior advance may have promoted the next stage and failed before
		// moving the pointer; a retry then only repairs the pointer
		next := stages[activeIndex+1]
		if next.Status == domain.StagePending {
			next.Status = domain.StageInProgress
			if _, err := e.store.UpdateStage(ctx, &next, domain.StagePending); err != nil {
				if !errors.Is(err, bizerror.ErrConflict) {
					return nil, err
				}
			}
		}
		nextIndex := activeIndex + 1
		workflow.ActiveStageIndex = &nextIndex
		properties = append(properties, event.UpdatedProperty{PropertyName: "activeStageIndex",
			OldValue: fmt.Sprint(activeIndex), NewValue: fmt.Sprint(nextIndex)})
	}

	updated, err := e.store.UpdateWorkflow(ctx, workflow, domain.WorkflowInProgress)
	if err != nil {
		return nil, err
	}

	if err := event.CreateEvent(ctx, event.SourceTypeWorkflow, updated.ID, workflowDesc(updated),
		event.EventCategoryPropertyUpdated, properties, ""); err != nil {
		return nil, err
	}
	return updated, nil
}

// OpenApproval opens an undecided approval request against the active stage
// and parks the stage at pending_approval until a decision arrives.
func (e *Engine) OpenApproval(ctx context.Context, stageID types.ID, creation *ApprovalCreation) (*domain.Approval, error) {
	stage, err := e.store.GetStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	workflow, err := e.store.GetWorkflow(ctx, stage.WorkflowID)
	if err != nil {
		return nil, err
	}
	if workflow.Status.IsTerminal() {
		return nil, bizerror.ErrAlreadyTerminal
	}
	if !stage.Status.IsActive() {
		return nil, bizerror.ErrStageNotReady
	}

	approval, err := e.store.CreateApproval(ctx, stageID, creation.ApproverRole)
	if err != nil {
		return nil, err
	}

	if stage.Status == domain.StageInProgress {
		stage.Status = domain.StagePendingApproval
		if _, err := e.store.UpdateStage(ctx, stage, domain.StageInProgress); err != nil {
			// a concurrent caller already parked the stage; the request itself stands
			if !errors.Is(err, bizerror.ErrConflict) {
				return nil, err
			}
		}
	}

	if err := event.CreateEvent(ctx, event.SourceTypeApproval, approval.ID,
		"approval request of stage "+stage.Name, event.EventCategoryCreated, nil, creation.ApproverRole); err != nil {
		return nil, err
	}
	return approval, nil
}

// SubmitApprovalDecision records a one-time human decision and applies the
// decision-to-transition policy:
//
//	approved, approved_with_conditions -> stage completed
//	request_changes                    -> stage back to in_progress
//	rejected                           -> stage rejected, workflow rejected
//
// It never advances the active-stage pointer; that is Advance's job.
func (e *Engine) SubmitApprovalDecision(ctx context.Context, stageID, approvalID types.ID,
	submission *DecisionSubmission) (*domain.Stage, error) {
	if !submission.Decision.IsValid() {
		return nil, &bizerror.ErrBadParam{Cause: fmt.Errorf("unknown decision '%s'", submission.Decision)}
	}

	stage, err := e.store.GetStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	workflow, err := e.store.GetWorkflow(ctx, stage.WorkflowID)
	if err != nil {
		return nil, err
	}
	if workflow.Status.IsTerminal() {
		return nil, bizerror.ErrAlreadyTerminal
	}
	if !stage.Status.IsActive() {
		return nil, bizerror.ErrStageNotReady
	}

	approval, err := e.store.GetApproval(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if approval.StageID != stage.ID {
		return nil, bizerror.ErrNotFound
	}
	if approval.Decided() {
		return nil, bizerror.ErrAlreadyDecided
	}

	// one-time write; concurrent submitters collide here first. When the
	// stage update below loses a concurrent race, the decision stays
	// recorded but unapplied: the approval is then an audit artifact and
	// the stage needs a fresh approval cycle.
	approval, err = e.store.RecordDecision(ctx, approvalID, submission.Decision, submission.Comments)
	if err != nil {
		return nil, err
	}

	priorStatus := stage.Status
	switch submission.Decision {
	case domain.DecisionApproved, domain.DecisionApprovedWithConditions:
		stage.Status = domain.StageCompleted
	case domain.DecisionRequestChanges:
		stage.Status = domain.StageInProgress
	case domain.DecisionRejected:
		stage.Status = domain.StageRejected
	}

	updatedStage, err := e.store.UpdateStage(ctx, stage, priorStatus)
	if err != nil {
		return nil, err
	}

	if submission.Decision == domain.DecisionRejected {
		workflow.Status = domain.WorkflowRejected
		workflow.ActiveStageIndex = nil
		if _, err := e.store.UpdateWorkflow(ctx, workflow, domain.WorkflowInProgress); err != nil {
			return nil, err
		}
	}

	if err := event.CreateEvent(ctx, event.SourceTypeStage, updatedStage.ID, "stage "+updatedStage.Name,
		event.EventCategoryPropertyUpdated, []event.UpdatedProperty{
			{PropertyName: "status", OldValue: string(priorStatus), NewValue: string(updatedStage.Status)},
			{PropertyName: "decision", OldValue: "", NewValue: string(submission.Decision)},
		}, approval.ApproverRole); err != nil {
		return nil, err
	}
	return updatedStage, nil
}

func (e *Engine) DetailWorkflow(ctx context.Context, workflowID types.ID) (*domain.WorkflowDetail, error) {
	workflow, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return e.detailOf(ctx, workflow)
}

func (e *Engine) DetailWorkflowByInitiative(ctx context.Context, initiativeID types.ID) (*domain.WorkflowDetail, error) {
	workflow, err := e.store.GetWorkflowByInitiative(ctx, initiativeID)
	if err != nil {
		return nil, err
	}
	return e.detailOf(ctx, workflow)
}

func (e *Engine) ListStages(ctx context.Context, workflowID types.ID) ([]domain.Stage, error) {
	return e.store.ListStages(ctx, workflowID)
}

func (e *Engine) ListApprovals(ctx context.Context, stageID types.ID) ([]domain.Approval, error) {
	return e.store.ListApprovals(ctx, stageID)
}

func (e *Engine) detailOf(ctx context.Context, workflow *domain.Workflow) (*domain.WorkflowDetail, error) {
	stages, err := e.store.ListStages(ctx, workflow.ID)
	if err != nil {
		return nil, err
	}
	return &domain.WorkflowDetail{Workflow: *workflow, Stages: stages}, nil
}

func workflowDesc(w *domain.Workflow) string {
	return "governance workflow of initiative " + w.InitiativeID.String()
}
