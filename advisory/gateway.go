package advisory

import (
	"context"

	"steward/domain"
)

// Gateway reaches the external AI recommendation service. Results are opaque
// payloads; the workflow engine never reads or branches on them. Every
// upstream failure surfaces as bizerror.ErrAdvisoryUnavailable and callers
// must treat it as "no advisory available", never as workflow-blocking.
type Gateway interface {
	RequestComplianceCheck(ctx context.Context, snapshot domain.JSONDocument) (domain.JSONDocument, error)
	RequestRegulationMapping(ctx context.Context, snapshot domain.JSONDocument) (domain.JSONDocument, error)
}
