package advisory

import (
	"context"
	"time"

	"steward/bizerror"
	"steward/domain"
	"steward/misc"
	"steward/storage"

	"github.com/fundwit/go-commons/types"
	"github.com/patrickmn/go-cache"
)

// ServiceTraits is the advisory surface consumed by the REST handlers.
type ServiceTraits interface {
	RequestAdvisory(ctx context.Context, workflowID types.ID, kind string, snapshot domain.JSONDocument) (*domain.Annotation, error)
	ListAnnotations(ctx context.Context, workflowID types.ID) ([]domain.Annotation, error)
}

// Service attaches advisory results to workflows as non-binding annotations.
// Gateway failure is absorbed: the caller gets "no advisory", never an error
// that would block the governance workflow.
type Service struct {
	gateway Gateway
	store   storage.WorkflowStore

	// recent results per workflow+kind, spares the upstream on repeated asks
	memo *cache.Cache
}

func NewService(gateway Gateway, store storage.WorkflowStore) *Service {
	return &Service{
		gateway: gateway,
		store:   store,
		memo:    cache.New(10*time.Minute, time.Minute),
	}
}

func (s *Service) RequestAdvisory(ctx context.Context, workflowID types.ID, kind string,
	snapshot domain.JSONDocument) (*domain.Annotation, error) {
	if kind != domain.AnnotationComplianceCheck && kind != domain.AnnotationRegulationMapping {
		return nil, &bizerror.ErrBadParam{}
	}

	workflow, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	memoKey := workflow.ID.String() + "/" + kind
	if cached, found := s.memo.Get(memoKey); found {
		annotation := cached.(domain.Annotation)
		return &annotation, nil
	}

	if s.gateway == nil {
		misc.Log.WithField("workflowId", workflowID).Warn("advisory gateway not configured")
		return nil, nil
	}

	var payload domain.JSONDocument
	switch kind {
	case domain.AnnotationComplianceCheck:
		payload, err = s.gateway.RequestComplianceCheck(ctx, snapshot)
	case domain.AnnotationRegulationMapping:
		payload, err = s.gateway.RequestRegulationMapping(ctx, snapshot)
	}
	if err != nil {
		// absorbed: no advisory available is a valid outcome
		misc.Log.WithField("workflowId", workflowID).WithField("kind", kind).
			Warn("advisory unavailable: ", err)
		return nil, nil
	}

	annotation, err := s.store.SaveAnnotation(ctx, workflowID, kind, payload)
	if err != nil {
		return nil, err
	}
	s.memo.SetDefault(memoKey, *annotation)
	return annotation, nil
}

func (s *Service) ListAnnotations(ctx context.Context, workflowID types.ID) ([]domain.Annotation, error) {
	return s.store.ListAnnotations(ctx, workflowID)
}
