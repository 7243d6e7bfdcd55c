package storage

import (
	"context"
	"sort"
	"sync"

	"steward/bizerror"
	"steward/domain"

	"github.com/fundwit/go-commons/types"
)

// MemStore is the reference WorkflowStore: a mutex-guarded map store that
// returns copies of its records. It backs engine tests and single-process
// deployments without a database.
type MemStore struct {
	mutex sync.RWMutex

	workflows   map[types.ID]*domain.Workflow
	stages      map[types.ID]*domain.Stage
	approvals   map[types.ID]*domain.Approval
	annotations map[types.ID]*domain.Annotation

	nextID types.ID
}

func NewMemStore() *MemStore {
	return &MemStore{
		workflows:   map[types.ID]*domain.Workflow{},
		stages:      map[types.ID]*domain.Stage{},
		approvals:   map[types.ID]*domain.Approval{},
		annotations: map[types.ID]*domain.Annotation{},
	}
}

func (s *MemStore) allocateID() types.ID {
	s.nextID++
	return s.nextID
}

func (s *MemStore) CreateWorkflow(ctx context.Context, initiativeID types.ID, riskTier domain.RiskTier,
	stages []domain.Stage) (*domain.WorkflowDetail, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, w := range s.workflows {
		if w.InitiativeID == initiativeID && !w.Status.IsTerminal() {
			return nil, bizerror.ErrDuplicateWorkflow
		}
	}

	now := types.CurrentTimestamp()
	activeIndex := 0
	workflow := &domain.Workflow{
		ID:               s.allocateID(),
		InitiativeID:     initiativeID,
		RiskTier:         riskTier,
		Status:           domain.WorkflowInProgress,
		ActiveStageIndex: &activeIndex,
		CreateTime:       now,
		UpdateTime:       now,
	}
	s.workflows[workflow.ID] = workflow

	detail := &domain.WorkflowDetail{Workflow: *workflow}
	for _, stage := range stages {
		record := stage
		record.ID = s.allocateID()
		record.WorkflowID = workflow.ID
		record.CreateTime = now
		record.UpdateTime = now
		s.stages[record.ID] = &record
		detail.Stages = append(detail.Stages, record)
	}
	return detail, nil
}

func (s *MemStore) GetWorkflow(ctx context.Context, workflowID types.ID) (*domain.Workflow, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	workflow, found := s.workflows[workflowID]
	if !found {
		return nil, bizerror.ErrNotFound
	}
	result := *workflow
	return &result, nil
}

func (s *MemStore) GetWorkflowByInitiative(ctx context.Context, initiativeID types.ID) (*domain.Workflow, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var latest *domain.Workflow
	for _, w := range s.workflows {
		if w.InitiativeID != initiativeID {
			continue
		}
		// prefer the non-terminal workflow, then the most recent one
		if latest == nil || (latest.Status.IsTerminal() && !w.Status.IsTerminal()) || w.ID > latest.ID {
			latest = w
		}
	}
	if latest == nil {
		return nil, bizerror.ErrNotFound
	}
	result := *latest
	return &result, nil
}

func (s *MemStore) UpdateWorkflow(ctx context.Context, workflow *domain.Workflow,
	priorStatus domain.WorkflowStatus) (*domain.Workflow, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stored, found := s.workflows[workflow.ID]
	if !found {
		return nil, bizerror.ErrNotFound
	}
	if stored.Status != priorStatus {
		return nil, bizerror.ErrConflict
	}
	stored.Status = workflow.Status
	stored.ActiveStageIndex = workflow.ActiveStageIndex
	stored.UpdateTime = types.CurrentTimestamp()
	result := *stored
	return &result, nil
}

func (s *MemStore) ListStages(ctx context.Context, workflowID types.ID) ([]domain.Stage, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if _, found := s.workflows[workflowID]; !found {
		return nil, bizerror.ErrNotFound
	}
	result := []domain.Stage{}
	for _, stage := range s.stages {
		if stage.WorkflowID == workflowID {
			result = append(result, *stage)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Order < result[j].Order })
	return result, nil
}

func (s *MemStore) GetStage(ctx context.Context, stageID types.ID) (*domain.Stage, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stage, found := s.stages[stageID]
	if !found {
		return nil, bizerror.ErrNotFound
	}
	result := *stage
	return &result, nil
}

func (s *MemStore) UpdateStage(ctx context.Context, stage *domain.Stage,
	priorStatus domain.StageStatus) (*domain.Stage, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stored, found := s.stages[stage.ID]
	if !found {
		return nil, bizerror.ErrNotFound
	}
	if stored.Status != priorStatus {
		return nil, bizerror.ErrConflict
	}
	stored.Status = stage.Status
	stored.UpdateTime = types.CurrentTimestamp()
	result := *stored
	return &result, nil
}

func (s *MemStore) CreateApproval(ctx context.Context, stageID types.ID, approverRole string) (*domain.Approval, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, found := s.stages[stageID]; !found {
		return nil, bizerror.ErrNotFound
	}
	approval := &domain.Approval{
		ID:           s.allocateID(),
		StageID:      stageID,
		ApproverRole: approverRole,
		CreateTime:   types.CurrentTimestamp(),
	}
	s.approvals[approval.ID] = approval
	result := *approval
	return &result, nil
}

func (s *MemStore) GetApproval(ctx context.Context, approvalID types.ID) (*domain.Approval, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	approval, found := s.approvals[approvalID]
	if !found {
		return nil, bizerror.ErrNotFound
	}
	result := *approval
	return &result, nil
}

func (s *MemStore) ListApprovals(ctx context.Context, stageID types.ID) ([]domain.Approval, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if _, found := s.stages[stageID]; !found {
		return nil, bizerror.ErrNotFound
	}
	result := []domain.Approval{}
	for _, approval := range s.approvals {
		if approval.StageID == stageID {
			result = append(result, *approval)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemStore) RecordDecision(ctx context.Context, approvalID types.ID, decision domain.Decision,
	comments string) (*domain.Approval, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stored, found := s.approvals[approvalID]
	if !found {
		return nil, bizerror.ErrNotFound
	}
	if stored.Decided() {
		return nil, bizerror.ErrAlreadyDecided
	}
	now := types.CurrentTimestamp()
	stored.Decision = decision
	stored.Comments = comments
	stored.DecidedAt = &now
	result := *stored
	return &result, nil
}

func (s *MemStore) SaveAnnotation(ctx context.Context, workflowID types.ID, kind string,
	payload domain.JSONDocument) (*domain.Annotation, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, found := s.workflows[workflowID]; !found {
		return nil, bizerror.ErrNotFound
	}
	annotation := &domain.Annotation{
		ID:         s.allocateID(),
		WorkflowID: workflowID,
		Kind:       kind,
		Payload:    payload,
		CreateTime: types.CurrentTimestamp(),
	}
	s.annotations[annotation.ID] = annotation
	result := *annotation
	return &result, nil
}

func (s *MemStore) ListAnnotations(ctx context.Context, workflowID types.ID) ([]domain.Annotation, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if _, found := s.workflows[workflowID]; !found {
		return nil, bizerror.ErrNotFound
	}
	result := []domain.Annotation{}
	for _, annotation := range s.annotations {
		if annotation.WorkflowID == workflowID {
			result = append(result, *annotation)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
