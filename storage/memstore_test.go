package storage_test

import (
	"context"
	"testing"

	"steward/bizerror"
	"steward/domain"
	"steward/storage"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
)

func demoStages() []domain.Stage {
	return []domain.Stage{
		{Order: 1, Name: "Intake Review", Status: domain.StageInProgress,
			RequiredRoles: domain.RoleList{"governance-analyst"}, GateCriteria: domain.JSONDocument(`{}`)},
		{Order: 2, Name: "Final Approval", Status: domain.StagePending,
			RequiredRoles: domain.RoleList{"governance-lead"}, GateCriteria: domain.JSONDocument(`{}`)},
	}
}

func TestMemStoreCreateWorkflow(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should create workflow and stages together", func(t *testing.T) {
		store := storage.NewMemStore()

		detail, err := store.CreateWorkflow(context.Background(), types.ID(7), domain.RiskTierLow, demoStages())
		Expect(err).To(BeNil())
		Expect(detail.ID).ToNot(BeZero())
		Expect(detail.Status).To(Equal(domain.WorkflowInProgress))
		Expect(*detail.ActiveStageIndex).To(Equal(0))
		Expect(len(detail.Stages)).To(Equal(2))

		stages, err := store.ListStages(context.Background(), detail.ID)
		Expect(err).To(BeNil())
		Expect(len(stages)).To(Equal(2))
		Expect(stages[0].Order).To(Equal(1))
		Expect(stages[0].WorkflowID).To(Equal(detail.ID))
	})

	t.Run("should refuse a second workflow for the same initiative while non-terminal", func(t *testing.T) {
		store := storage.NewMemStore()

		first, err := store.CreateWorkflow(context.Background(), types.ID(7), domain.RiskTierLow, demoStages())
		Expect(err).To(BeNil())

		_, err = store.CreateWorkflow(context.Background(), types.ID(7), domain.RiskTierLow, demoStages())
		Expect(err).To(Equal(bizerror.ErrDuplicateWorkflow))

		// terminalize, then a new workflow is acceptable again
		first.Status = domain.WorkflowRejected
		first.ActiveStageIndex = nil
		_, err = store.UpdateWorkflow(context.Background(), &first.Workflow, domain.WorkflowInProgress)
		Expect(err).To(BeNil())

		_, err = store.CreateWorkflow(context.Background(), types.ID(7), domain.RiskTierLow, demoStages())
		Expect(err).To(BeNil())
	})
}

func TestMemStoreOptimisticUpdates(t *testing.T) {
	RegisterTestingT(t)

	t.Run("stage update should fail with conflict on a stale read", func(t *testing.T) {
		store := storage.NewMemStore()
		detail, _ := store.CreateWorkflow(context.Background(), types.ID(7), domain.RiskTierLow, demoStages())

		stage := detail.Stages[0]
		stage.Status = domain.StageCompleted
		updated, err := store.UpdateStage(context.Background(), &stage, domain.StageInProgress)
		Expect(err).To(BeNil())
		Expect(updated.Status).To(Equal(domain.StageCompleted))

		// second writer read in_progress as well; its write must not be applied
		stale := detail.Stages[0]
		stale.Status = domain.StageRejected
		_, err = store.UpdateStage(context.Background(), &stale, domain.StageInProgress)
		Expect(err).To(Equal(bizerror.ErrConflict))

		current, _ := store.GetStage(context.Background(), stage.ID)
		Expect(current.Status).To(Equal(domain.StageCompleted))
	})

	t.Run("workflow update should fail with conflict on a stale read", func(t *testing.T) {
		store := storage.NewMemStore()
		detail, _ := store.CreateWorkflow(context.Background(), types.ID(7), domain.RiskTierLow, demoStages())

		workflow := detail.Workflow
		workflow.Status = domain.WorkflowRejected
		workflow.ActiveStageIndex = nil
		_, err := store.UpdateWorkflow(context.Background(), &workflow, domain.WorkflowInProgress)
		Expect(err).To(BeNil())

		stale := detail.Workflow
		stale.Status = domain.WorkflowCompleted
		_, err = store.UpdateWorkflow(context.Background(), &stale, domain.WorkflowInProgress)
		Expect(err).To(Equal(bizerror.ErrConflict))
	})

	t.Run("updates against unknown records should fail with not found", func(t *testing.T) {
		store := storage.NewMemStore()

		_, err := store.UpdateStage(context.Background(), &domain.Stage{ID: types.ID(404)}, domain.StagePending)
		Expect(err).To(Equal(bizerror.ErrNotFound))
		_, err = store.UpdateWorkflow(context.Background(), &domain.Workflow{ID: types.ID(404)}, domain.WorkflowInProgress)
		Expect(err).To(Equal(bizerror.ErrNotFound))
		_, err = store.GetWorkflow(context.Background(), types.ID(404))
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})
}

func TestMemStoreApprovals(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should record a decision exactly once", func(t *testing.T) {
		store := storage.NewMemStore()
		detail, _ := store.CreateWorkflow(context.Background(), types.ID(7), domain.RiskTierLow, demoStages())
		stageID := detail.Stages[0].ID

		approval, err := store.CreateApproval(context.Background(), stageID, "governance-analyst")
		Expect(err).To(BeNil())
		Expect(approval.Decision).To(BeEquivalentTo(""))
		Expect(approval.DecidedAt).To(BeNil())

		decided, err := store.RecordDecision(context.Background(), approval.ID, domain.DecisionApproved, "fine")
		Expect(err).To(BeNil())
		Expect(decided.Decision).To(Equal(domain.DecisionApproved))
		Expect(decided.Comments).To(Equal("fine"))
		Expect(decided.DecidedAt).ToNot(BeNil())

		_, err = store.RecordDecision(context.Background(), approval.ID, domain.DecisionRejected, "changed my mind")
		Expect(err).To(Equal(bizerror.ErrAlreadyDecided))

		current, _ := store.GetApproval(context.Background(), approval.ID)
		Expect(current.Decision).To(Equal(domain.DecisionApproved))
	})

	t.Run("should refuse approvals against unknown stages", func(t *testing.T) {
		store := storage.NewMemStore()
		_, err := store.CreateApproval(context.Background(), types.ID(404), "governance-analyst")
		Expect(err).To(Equal(bizerror.ErrNotFound))
		_, err = store.RecordDecision(context.Background(), types.ID(404), domain.DecisionApproved, "")
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})
}

func TestMemStoreAnnotations(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should attach and list annotations per workflow", func(t *testing.T) {
		store := storage.NewMemStore()
		detail, _ := store.CreateWorkflow(context.Background(), types.ID(7), domain.RiskTierLow, demoStages())

		_, err := store.SaveAnnotation(context.Background(), detail.ID, domain.AnnotationComplianceCheck,
			domain.JSONDocument(`{"finding":"ok"}`))
		Expect(err).To(BeNil())
		_, err = store.SaveAnnotation(context.Background(), detail.ID, domain.AnnotationRegulationMapping,
			domain.JSONDocument(`{"regulations":["AI Act"]}`))
		Expect(err).To(BeNil())

		annotations, err := store.ListAnnotations(context.Background(), detail.ID)
		Expect(err).To(BeNil())
		Expect(len(annotations)).To(Equal(2))
		Expect(annotations[0].Kind).To(Equal(domain.AnnotationComplianceCheck))

		_, err = store.SaveAnnotation(context.Background(), types.ID(404), domain.AnnotationComplianceCheck, nil)
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})
}
