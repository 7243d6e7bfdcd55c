package initiative

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/patrickmn/go-cache"
)

// Repository answers whether an initiative exists. Initiatives are owned by
// an external system; the governance core only consumes existence.
type Repository interface {
	Exists(ctx context.Context, initiativeID types.ID) (bool, error)
}

// HTTPRepository checks existence against the initiative service. Positive
// answers are cached briefly; initiatives are never deleted, so a stale
// positive is harmless.
type HTTPRepository struct {
	baseURL string
	client  *http.Client

	existsCache *cache.Cache
}

func NewHTTPRepository(baseURL string) *HTTPRepository {
	return &HTTPRepository{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		client:      &http.Client{Timeout: 5 * time.Second},
		existsCache: cache.New(5*time.Minute, time.Minute),
	}
}

func (r *HTTPRepository) Exists(ctx context.Context, initiativeID types.ID) (bool, error) {
	key := initiativeID.String()
	if _, found := r.existsCache.Get(key); found {
		return true, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/v1/initiatives/"+key, nil)
	if err != nil {
		return false, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		r.existsCache.SetDefault(key, true)
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("initiative service responded %d", resp.StatusCode)
	}
}
