package storage

import (
	"context"
	"errors"

	"steward/bizerror"
	"steward/domain"
	"steward/idgen"
	"steward/persistence"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

// GormStore is the MySQL-backed WorkflowStore. Creation is transactional and
// status updates are guarded UPDATEs, so concurrent writers collide on
// bizerror.ErrConflict instead of overwriting each other.
type GormStore struct {
	ds       *persistence.DataSourceManager
	idWorker *sonyflake.Sonyflake
}

func NewGormStore(ds *persistence.DataSourceManager) *GormStore {
	return &GormStore{ds: ds, idWorker: sonyflake.NewSonyflake(sonyflake.Settings{})}
}

func (s *GormStore) CreateWorkflow(ctx context.Context, initiativeID types.ID, riskTier domain.RiskTier,
	stages []domain.Stage) (*domain.WorkflowDetail, error) {
	db := s.ds.GormDB(ctx)
	detail := &domain.WorkflowDetail{}

	err := db.Transaction(func(tx *gorm.DB) error {
		var existing domain.Workflow
		err := tx.Where("initiative_id = ? AND status = ?", initiativeID, domain.WorkflowInProgress).
			First(&existing).Error
		if err == nil {
			return bizerror.ErrDuplicateWorkflow
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := types.CurrentTimestamp()
		activeIndex := 0
		detail.Workflow = domain.Workflow{
			ID:               idgen.NextID(s.idWorker),
			InitiativeID:     initiativeID,
			RiskTier:         riskTier,
			Status:           domain.WorkflowInProgress,
			ActiveStageIndex: &activeIndex,
			CreateTime:       now,
			UpdateTime:       now,
		}
		if err := tx.Create(detail.Workflow).Error; err != nil {
			return err
		}

		for _, stage := range stages {
			record := stage
			record.ID = idgen.NextID(s.idWorker)
			record.WorkflowID = detail.Workflow.ID
			record.CreateTime = now
			record.UpdateTime = now
			if err := tx.Create(record).Error; err != nil {
				return err
			}
			detail.Stages = append(detail.Stages, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *GormStore) GetWorkflow(ctx context.Context, workflowID types.ID) (*domain.Workflow, error) {
	workflow := domain.Workflow{}
	err := s.ds.GormDB(ctx).Where(&domain.Workflow{ID: workflowID}).First(&workflow).Error
	if err != nil {
		return nil, asStoreError(err)
	}
	return &workflow, nil
}

func (s *GormStore) GetWorkflowByInitiative(ctx context.Context, initiativeID types.ID) (*domain.Workflow, error) {
	db := s.ds.GormDB(ctx)
	workflow := domain.Workflow{}

	// the non-terminal workflow wins; otherwise the most recent one
	err := db.Where("initiative_id = ? AND status = ?", initiativeID, domain.WorkflowInProgress).
		First(&workflow).Error
	if err == nil {
		return &workflow, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	err = db.Where("initiative_id = ?", initiativeID).Order("create_time DESC").First(&workflow).Error
	if err != nil {
		return nil, asStoreError(err)
	}
	return &workflow, nil
}

func (s *GormStore) UpdateWorkflow(ctx context.Context, workflow *domain.Workflow,
	priorStatus domain.WorkflowStatus) (*domain.Workflow, error) {
	db := s.ds.GormDB(ctx)

	q := db.Model(&domain.Workflow{}).Where("id = ? AND status = ?", workflow.ID, priorStatus).
		Updates(map[string]interface{}{
			"status":             workflow.Status,
			"active_stage_index": workflow.ActiveStageIndex,
			"update_time":        types.CurrentTimestamp(),
		})
	if q.Error != nil {
		return nil, q.Error
	}
	if q.RowsAffected != 1 {
		return nil, s.conflictOrNotFound(db, &domain.Workflow{ID: workflow.ID})
	}

	updated := domain.Workflow{}
	if err := db.Where(&domain.Workflow{ID: workflow.ID}).First(&updated).Error; err != nil {
		return nil, asStoreError(err)
	}
	return &updated, nil
}

func (s *GormStore) ListStages(ctx context.Context, workflowID types.ID) ([]domain.Stage, error) {
	db := s.ds.GormDB(ctx)
	if err := db.Where(&domain.Workflow{ID: workflowID}).First(&domain.Workflow{}).Error; err != nil {
		return nil, asStoreError(err)
	}
	var stages []domain.Stage
	if err := db.Where(domain.Stage{WorkflowID: workflowID}).Order("order_num ASC").Find(&stages).Error; err != nil {
		return nil, err
	}
	return stages, nil
}

func (s *GormStore) GetStage(ctx context.Context, stageID types.ID) (*domain.Stage, error) {
	stage := domain.Stage{}
	err := s.ds.GormDB(ctx).Where(&domain.Stage{ID: stageID}).First(&stage).Error
	if err != nil {
		return nil, asStoreError(err)
	}
	return &stage, nil
}

func (s *GormStore) UpdateStage(ctx context.Context, stage *domain.Stage,
	priorStatus domain.StageStatus) (*domain.Stage, error) {
	db := s.ds.GormDB(ctx)

	q := db.Model(&domain.Stage{}).Where("id = ? AND status = ?", stage.ID, priorStatus).
		Updates(map[string]interface{}{
			"status":      stage.Status,
			"update_time": types.CurrentTimestamp(),
		})
	if q.Error != nil {
		return nil, q.Error
	}
	if q.RowsAffected != 1 {
		return nil, s.conflictOrNotFound(db, &domain.Stage{ID: stage.ID})
	}

	updated := domain.Stage{}
	if err := db.Where(&domain.Stage{ID: stage.ID}).First(&updated).Error; err != nil {
		return nil, asStoreError(err)
	}
	return &updated, nil
}

func (s *GormStore) CreateApproval(ctx context.Context, stageID types.ID, approverRole string) (*domain.Approval, error) {
	db := s.ds.GormDB(ctx)
	if err := db.Where(&domain.Stage{ID: stageID}).First(&domain.Stage{}).Error; err != nil {
		return nil, asStoreError(err)
	}

	approval := domain.Approval{
		ID:           idgen.NextID(s.idWorker),
		StageID:      stageID,
		ApproverRole: approverRole,
		CreateTime:   types.CurrentTimestamp(),
	}
	if err := db.Create(approval).Error; err != nil {
		return nil, err
	}
	return &approval, nil
}

func (s *GormStore) GetApproval(ctx context.Context, approvalID types.ID) (*domain.Approval, error) {
	approval := domain.Approval{}
	err := s.ds.GormDB(ctx).Where(&domain.Approval{ID: approvalID}).First(&approval).Error
	if err != nil {
		return nil, asStoreError(err)
	}
	return &approval, nil
}

func (s *GormStore) ListApprovals(ctx context.Context, stageID types.ID) ([]domain.Approval, error) {
	db := s.ds.GormDB(ctx)
	if err := db.Where(&domain.Stage{ID: stageID}).First(&domain.Stage{}).Error; err != nil {
		return nil, asStoreError(err)
	}
	var approvals []domain.Approval
	if err := db.Where(domain.Approval{StageID: stageID}).Order("create_time ASC").Find(&approvals).Error; err != nil {
		return nil, err
	}
	return approvals, nil
}

func (s *GormStore) RecordDecision(ctx context.Context, approvalID types.ID, decision domain.Decision,
	comments string) (*domain.Approval, error) {
	db := s.ds.GormDB(ctx)

	q := db.Model(&domain.Approval{}).Where("id = ? AND (decision IS NULL OR decision = '')", approvalID).
		Updates(map[string]interface{}{
			"decision":   decision,
			"comments":   comments,
			"decided_at": types.CurrentTimestamp(),
		})
	if q.Error != nil {
		return nil, q.Error
	}
	if q.RowsAffected != 1 {
		err := db.Where(&domain.Approval{ID: approvalID}).First(&domain.Approval{}).Error
		if err != nil {
			return nil, asStoreError(err)
		}
		return nil, bizerror.ErrAlreadyDecided
	}

	updated := domain.Approval{}
	if err := db.Where(&domain.Approval{ID: approvalID}).First(&updated).Error; err != nil {
		return nil, asStoreError(err)
	}
	return &updated, nil
}

func (s *GormStore) SaveAnnotation(ctx context.Context, workflowID types.ID, kind string,
	payload domain.JSONDocument) (*domain.Annotation, error) {
	db := s.ds.GormDB(ctx)
	if err := db.Where(&domain.Workflow{ID: workflowID}).First(&domain.Workflow{}).Error; err != nil {
		return nil, asStoreError(err)
	}

	annotation := domain.Annotation{
		ID:         idgen.NextID(s.idWorker),
		WorkflowID: workflowID,
		Kind:       kind,
		Payload:    payload,
		CreateTime: types.CurrentTimestamp(),
	}
	if err := db.Create(annotation).Error; err != nil {
		return nil, err
	}
	return &annotation, nil
}

func (s *GormStore) ListAnnotations(ctx context.Context, workflowID types.ID) ([]domain.Annotation, error) {
	db := s.ds.GormDB(ctx)
	if err := db.Where(&domain.Workflow{ID: workflowID}).First(&domain.Workflow{}).Error; err != nil {
		return nil, asStoreError(err)
	}
	var annotations []domain.Annotation
	if err := db.Where(domain.Annotation{WorkflowID: workflowID}).Order("create_time ASC").Find(&annotations).Error; err != nil {
		return nil, err
	}
	return annotations, nil
}

// conflictOrNotFound discriminates a guarded UPDATE that affected no rows.
func (s *GormStore) conflictOrNotFound(db *gorm.DB, query interface{}) error {
	err := db.Where(query).First(query).Error
	if err != nil {
		return asStoreError(err)
	}
	return bizerror.ErrConflict
}

func asStoreError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return bizerror.ErrNotFound
	}
	return err
}
