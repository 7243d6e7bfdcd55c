package governance_test

import (
	"context"
	"testing"

	"steward/bizerror"
	"steward/domain"
	"steward/event"
	"steward/governance"
	"steward/storage"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
)

func setupEngine() (*governance.Engine, *storage.MemStore, *[]event.EventRecord) {
	store := storage.NewMemStore()
	records := []event.EventRecord{}
	event.EventPersistCreateFunc = func(ctx context.Context, record *event.EventRecord) error {
		records = append(records, *record)
		return nil
	}
	return governance.NewEngine(store), store, &records
}

// stageConflictStore loses every stage update to a simulated concurrent
// writer while delegating everything else to the wrapped store.
type stageConflictStore struct {
	storage.WorkflowStore
}

func (s *stageConflictStore) UpdateStage(ctx context.Context, stage *domain.Stage,
	priorStatus domain.StageStatus) (*domain.Stage, error) {
	return nil, bizerror.ErrConflict
}

func decide(t *testing.T, engine *governance.Engine, stage domain.Stage, role string,
	decision domain.Decision) *domain.Stage {
	t.Helper()
	approval, err := engine.OpenApproval(context.Background(), stage.ID, &governance.ApprovalCreation{ApproverRole: role})
	Expect(err).To(BeNil())
	updated, err := engine.SubmitApprovalDecision(context.Background(), stage.ID, approval.ID,
		&governance.DecisionSubmission{Decision: decision})
	Expect(err).To(BeNil())
	return updated
}

func TestInitializeWorkflow(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should expand the low tier into 3 stages with stage 1 in progress", func(t *testing.T) {
		engine, _, events := setupEngine()

		detail, err := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})
		Expect(err).To(BeNil())
		Expect(detail.InitiativeID).To(Equal(types.ID(7)))
		Expect(detail.RiskTier).To(Equal(domain.RiskTierLow))
		Expect(detail.Status).To(Equal(domain.WorkflowInProgress))
		Expect(*detail.ActiveStageIndex).To(Equal(0))

		Expect(len(detail.Stages)).To(Equal(3))
		Expect(detail.Stages[0].Name).To(Equal("Intake Review"))
		Expect(detail.Stages[0].Status).To(Equal(domain.StageInProgress))
		for idx, stage := range detail.Stages {
			Expect(stage.Order).To(Equal(idx + 1))
			Expect(stage.WorkflowID).To(Equal(detail.ID))
			if idx > 0 {
				Expect(stage.Status).To(Equal(domain.StagePending))
			}
		}

		Expect(len(*events)).To(Equal(1))
		Expect((*events)[0].EventCategory).To(Equal(event.EventCategory(event.EventCategoryCreated)))
		Expect((*events)[0].SourceType).To(Equal(event.SourceTypeWorkflow))
	})

	t.Run("should expand medium and high tiers into 5 and 7 stages", func(t *testing.T) {
		engine, _, _ := setupEngine()

		medium, err := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(1), RiskTier: domain.RiskTierMedium})
		Expect(err).To(BeNil())
		Expect(len(medium.Stages)).To(Equal(5))

		high, err := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(2), RiskTier: domain.RiskTierHigh})
		Expect(err).To(BeNil())
		Expect(len(high.Stages)).To(Equal(7))
	})

	t.Run("should fail with unknown tier", func(t *testing.T) {
		engine, _, _ := setupEngine()

		detail, err := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(1), RiskTier: domain.RiskTier("severe")})
		Expect(detail).To(BeNil())
		Expect(err).To(Equal(bizerror.ErrUnknownTier))
	})

	t.Run("should fail with duplicate workflow while a non-terminal one exists", func(t *testing.T) {
		engine, _, _ := setupEngine()

		_, err := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})
		Expect(err).To(BeNil())

		detail, err := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierHigh})
		Expect(detail).To(BeNil())
		Expect(err).To(Equal(bizerror.ErrDuplicateWorkflow))
	})

	t.Run("should allow a new workflow once the previous one is terminal", func(t *testing.T) {
		engine, _, _ := setupEngine()

		first, err := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})
		Expect(err).To(BeNil())
		decide(t, engine, first.Stages[0], "governance-analyst", domain.DecisionRejected)

		second, err := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})
		Expect(err).To(BeNil())
		Expect(second.ID).ToNot(Equal(first.ID))
	})
}

func TestSubmitApprovalDecision(t *testing.T) {
	RegisterTestingT(t)

	t.Run("approved should complete the stage without advancing the workflow", func(t *testing.T) {
		engine, _, _ := setupEngine()
		detail, _ := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})

		updated := decide(t, engine, detail.Stages[0], "governance-analyst", domain.DecisionApproved)
		Expect(updated.Status).To(Equal(domain.StageCompleted))

		workflow, err := engine.DetailWorkflow(context.Background(), detail.ID)
		Expect(err).To(BeNil())
		Expect(workflow.Status).To(Equal(domain.WorkflowInProgress))
		Expect(*workflow.ActiveStageIndex).To(Equal(0))
		Expect(workflow.Stages[1].Status).To(Equal(domain.StagePending))
	})

	t.Run("approved_with_conditions should complete the stage and retain the conditions", func(t *testing.T) {
		engine, _, _ := setupEngine()
		detail, _ := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})

		stage := detail.Stages[0]
		approval, err := engine.OpenApproval(context.Background(), stage.ID,
			&governance.ApprovalCreation{ApproverRole: "governance-analyst"})
		Expect(err).To(BeNil())

		updated, err := engine.SubmitApprovalDecision(context.Background(), stage.ID, approval.ID,
			&governance.DecisionSubmission{Decision: domain.DecisionApprovedWithConditions, Comments: "re-check data retention in 90 days"})
		Expect(err).To(BeNil())
		Expect(updated.Status).To(Equal(domain.StageCompleted))

		approvals, err := engine.ListApprovals(context.Background(), stage.ID)
		Expect(err).To(BeNil())
		Expect(len(approvals)).To(Equal(1))
		Expect(approvals[0].Decision).To(Equal(domain.DecisionApprovedWithConditions))
		Expect(approvals[0].Comments).To(Equal("re-check data retention in 90 days"))
		Expect(approvals[0].DecidedAt).ToNot(BeNil())
	})

	t.Run("request_changes should keep the stage active for a new submission cycle", func(t *testing.T) {
		engine, _, _ := setupEngine()
		detail, _ := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})
		stage := detail.Stages[0]

		updated := decide(t, engine, stage, "governance-analyst", domain.DecisionRequestChanges)
		Expect(updated.Status).To(Equal(domain.StageInProgress))

		workflow, _ := engine.DetailWorkflow(context.Background(), detail.ID)
		Expect(workflow.Status).To(Equal(domain.WorkflowInProgress))
		Expect(*workflow.ActiveStageIndex).To(Equal(0))

		// a fresh approval against the same stage succeeds normally
		updated = decide(t, engine, stage, "governance-analyst", domain.DecisionApproved)
		Expect(updated.Status).To(Equal(domain.StageCompleted))
	})

	t.Run("rejected should terminalize the workflow and freeze later stages", func(t *testing.T) {
		engine, _, _ := setupEngine()
		detail, _ := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierMedium})

		decide(t, engine, detail.Stages[0], "governance-analyst", domain.DecisionApproved)
		_, err := engine.Advance(context.Background(), detail.ID)
		Expect(err).To(BeNil())

		updated := decide(t, engine, detail.Stages[1], "privacy-officer", domain.DecisionRejected)
		Expect(updated.Status).To(Equal(domain.StageRejected))

		workflow, _ := engine.DetailWorkflow(context.Background(), detail.ID)
		Expect(workflow.Status).To(Equal(domain.WorkflowRejected))
		Expect(workflow.ActiveStageIndex).To(BeNil())
		for _, stage := range workflow.Stages[2:] {
			Expect(stage.Status).To(Equal(domain.StagePending))
		}

		// no further transitions are permitted
		_, err = engine.Advance(context.Background(), detail.ID)
		Expect(err).To(Equal(bizerror.ErrAlreadyTerminal))
		_, err = engine.OpenApproval(context.Background(), detail.Stages[2].ID,
			&governance.ApprovalCreation{ApproverRole: "compliance-officer"})
		Expect(err).To(Equal(bizerror.ErrAlreadyTerminal))
	})

	t.Run("should refuse a second decision on the same approval", func(t *testing.T) {
		engine, _, _ := setupEngine()
		detail, _ := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})
		stage := detail.Stages[0]

		approval, err := engine.OpenApproval(context.Background(), stage.ID,
			&governance.ApprovalCreation{ApproverRole: "governance-analyst"})
		Expect(err).To(BeNil())
		_, err = engine.SubmitApprovalDecision(context.Background(), stage.ID, approval.ID,
			&governance.DecisionSubmission{Decision: domain.DecisionRequestChanges})
		Expect(err).To(BeNil())

		_, err = engine.SubmitApprovalDecision(context.Background(), stage.ID, approval.ID,
			&governance.DecisionSubmission{Decision: domain.DecisionApproved})
		Expect(err).To(Equal(bizerror.ErrAlreadyDecided))
	})

	t.Run("should refuse a decision against a non-active stage", func(t *testing.T) {
		engine, _, _ := setupEngine()
		detail, _ := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})

		_, err := engine.OpenApproval(context.Background(), detail.Stages[1].ID,
			&governance.ApprovalCreation{ApproverRole: "compliance-officer"})
		Expect(err).To(Equal(bizerror.ErrStageNotReady))
	})

	t.Run("should refuse an approval that belongs to another stage", func(t *testing.T) {
		engine, _, _ := setupEngine()
		detail, _ := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})

		approval, err := engine.OpenApproval(context.Background(), detail.Stages[0].ID,
			&governance.ApprovalCreation{ApproverRole: "governance-analyst"})
		Expect(err).To(BeNil())

		decide(t, engine, detail.Stages[0], "governance-analyst", domain.DecisionApproved)
		_, err = engine.Advance(context.Background(), detail.ID)
		Expect(err).To(BeNil())

		_, err = engine.SubmitApprovalDecision(context.Background(), detail.Stages[1].ID, approval.ID,
			&governance.DecisionSubmission{Decision: domain.DecisionApproved})
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})

	t.Run("should refuse an unknown decision value", func(t *testing.T) {
		engine, _, _ := setupEngine()
		detail, _ := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})

		_, err := engine.SubmitApprovalDecision(context.Background(), detail.Stages[0].ID, types.ID(999),
			&governance.DecisionSubmission{Decision: domain.Decision("vetoed")})
		badParam, ok := err.(*bizerror.ErrBadParam)
		Expect(ok).To(BeTrue())
		Expect(badParam).ToNot(BeNil())
	})

	t.Run("a decision losing the stage race stays recorded and needs a fresh cycle", func(t *testing.T) {
		engine, store, _ := setupEngine()
		detail, _ := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})
		stage := detail.Stages[0]

		racingEngine := governance.NewEngine(&stageConflictStore{WorkflowStore: store})
		approval, err := racingEngine.OpenApproval(context.Background(), stage.ID,
			&governance.ApprovalCreation{ApproverRole: "governance-analyst"})
		Expect(err).To(BeNil())

		_, err = racingEngine.SubmitApprovalDecision(context.Background(), stage.ID, approval.ID,
			&governance.DecisionSubmission{Decision: domain.DecisionApproved})
		Expect(err).To(Equal(bizerror.ErrConflict))

		// the decision is an audit artifact: recorded, never applied
		recorded, err := store.GetApproval(context.Background(), approval.ID)
		Expect(err).To(BeNil())
		Expect(recorded.Decided()).To(BeTrue())
		Expect(recorded.Decision).To(Equal(domain.DecisionApproved))

		stages, _ := store.ListStages(context.Background(), detail.ID)
		Expect(stages[0].Status).To(Equal(domain.StageInProgress))

		// a fresh cycle against the real store succeeds
		decide(t, engine, stage, "governance-analyst", domain.DecisionApproved)
		stages, _ = store.ListStages(context.Background(), detail.ID)
		Expect(stages[0].Status).To(Equal(domain.StageCompleted))
	})

	t.Run("opening an approval should park the stage at pending_approval", func(t *testing.T) {
		engine, _, _ := setupEngine()
		detail, _ := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})

		_, err := engine.OpenApproval(context.Background(), detail.Stages[0].ID,
			&governance.ApprovalCreation{ApproverRole: "governance-analyst"})
		Expect(err).To(BeNil())

		stages, _ := engine.ListStages(context.Background(), detail.ID)
		Expect(stages[0].Status).To(Equal(domain.StagePendingApproval))
	})
}

func TestAdvance(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should fail with stage not ready until the active stage is completed", func(t *testing.T) {
		engine, _, _ := setupEngine()
		detail, _ := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})

		_, err := engine.Advance(context.Background(), detail.ID)
		Expect(err).To(Equal(bizerror.ErrStageNotReady))
	})

	t.Run("should move the pointer to the next stage", func(t *testing.T) {
		engine, _, _ := setupEngine()
		detail, _ := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})

		decide(t, engine, detail.Stages[0], "governance-analyst", domain.DecisionApproved)
		workflow, err := engine.Advance(context.Background(), detail.ID)
		Expect(err).To(BeNil())
		Expect(workflow.Status).To(Equal(domain.WorkflowInProgress))
		Expect(*workflow.ActiveStageIndex).To(Equal(1))

		stages, _ := engine.ListStages(context.Background(), detail.ID)
		Expect(stages[0].Status).To(Equal(domain.StageCompleted))
		Expect(stages[1].Status).To(Equal(domain.StageInProgress))
		Expect(stages[2].Status).To(Equal(domain.StagePending))
	})

	t.Run("should complete the workflow past the final stage and clear the pointer", func(t *testing.T) {
		engine, _, _ := setupEngine()
		detail, _ := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})

		for range detail.Stages {
			workflow, err := engine.DetailWorkflow(context.Background(), detail.ID)
			Expect(err).To(BeNil())
			active := workflow.Stages[*workflow.ActiveStageIndex]
			decide(t, engine, active, "governance-lead", domain.DecisionApproved)
			_, err = engine.Advance(context.Background(), detail.ID)
			Expect(err).To(BeNil())
		}

		workflow, _ := engine.DetailWorkflow(context.Background(), detail.ID)
		Expect(workflow.Status).To(Equal(domain.WorkflowCompleted))
		Expect(workflow.ActiveStageIndex).To(BeNil())
		for _, stage := range workflow.Stages {
			Expect(stage.Status).To(Equal(domain.StageCompleted))
		}
	})

	t.Run("should fail with already terminal instead of silently succeeding on retry", func(t *testing.T) {
		engine, _, _ := setupEngine()
		detail, _ := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})

		for range detail.Stages {
			workflow, _ := engine.DetailWorkflow(context.Background(), detail.ID)
			active := workflow.Stages[*workflow.ActiveStageIndex]
			decide(t, engine, active, "governance-lead", domain.DecisionApproved)
			_, err := engine.Advance(context.Background(), detail.ID)
			Expect(err).To(BeNil())
		}

		_, err := engine.Advance(context.Background(), detail.ID)
		Expect(err).To(Equal(bizerror.ErrAlreadyTerminal))
	})

	t.Run("should keep exactly one active stage at every step", func(t *testing.T) {
		engine, _, _ := setupEngine()
		detail, _ := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierMedium})

		assertSingleActive := func() {
			stages, err := engine.ListStages(context.Background(), detail.ID)
			Expect(err).To(BeNil())
			active := 0
			for _, stage := range stages {
				if stage.Status.IsActive() {
					active++
				}
			}
			Expect(active).To(Equal(1))
		}

		assertSingleActive()
		for idx := 0; idx < len(detail.Stages)-1; idx++ {
			workflow, _ := engine.DetailWorkflow(context.Background(), detail.ID)
			active := workflow.Stages[*workflow.ActiveStageIndex]
			decide(t, engine, active, "compliance-officer", domain.DecisionApproved)
			_, err := engine.Advance(context.Background(), detail.ID)
			Expect(err).To(BeNil())
			assertSingleActive()
		}
	})

	t.Run("should fail with not found for an unknown workflow", func(t *testing.T) {
		engine, _, _ := setupEngine()
		_, err := engine.Advance(context.Background(), types.ID(404))
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})

	t.Run("should repair the pointer when a prior advance was interrupted", func(t *testing.T) {
		engine, store, _ := setupEngine()
		detail, _ := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})

		decide(t, engine, detail.Stages[0], "governance-analyst", domain.DecisionApproved)

		// an advance that promoted the next stage but died before moving the pointer
		stages, _ := store.ListStages(context.Background(), detail.ID)
		next := stages[1]
		next.Status = domain.StageInProgress
		_, err := store.UpdateStage(context.Background(), &next, domain.StagePending)
		Expect(err).To(BeNil())

		workflow, err := engine.Advance(context.Background(), detail.ID)
		Expect(err).To(BeNil())
		Expect(*workflow.ActiveStageIndex).To(Equal(1))

		stages, _ = engine.ListStages(context.Background(), detail.ID)
		Expect(stages[1].Status).To(Equal(domain.StageInProgress))
		active := 0
		for _, stage := range stages {
			if stage.Status.IsActive() {
				active++
			}
		}
		Expect(active).To(Equal(1))
	})
}

func TestWorkflowQueries(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should detail a workflow by initiative", func(t *testing.T) {
		engine, _, _ := setupEngine()
		detail, _ := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})

		found, err := engine.DetailWorkflowByInitiative(context.Background(), types.ID(7))
		Expect(err).To(BeNil())
		Expect(found.ID).To(Equal(detail.ID))
		Expect(len(found.Stages)).To(Equal(3))

		_, err = engine.DetailWorkflowByInitiative(context.Background(), types.ID(8))
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})

	t.Run("should accumulate approval history per stage", func(t *testing.T) {
		engine, _, _ := setupEngine()
		detail, _ := engine.InitializeWorkflow(context.Background(),
			&governance.WorkflowCreation{InitiativeID: types.ID(7), RiskTier: domain.RiskTierLow})
		stage := detail.Stages[0]

		decide(t, engine, stage, "governance-analyst", domain.DecisionRequestChanges)
		decide(t, engine, stage, "governance-analyst", domain.DecisionApproved)

		approvals, err := engine.ListApprovals(context.Background(), stage.ID)
		Expect(err).To(BeNil())
		Expect(len(approvals)).To(Equal(2))
		Expect(approvals[0].Decision).To(Equal(domain.DecisionRequestChanges))
		Expect(approvals[1].Decision).To(Equal(domain.DecisionApproved))
	})
}
