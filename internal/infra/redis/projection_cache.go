package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/netpad/api/pkg/domain/workflow"
	"github.com/netpad/api/pkg/logger"
)

// defaultProjectionTTL bounds staleness of the public workflow projection.
// The endpoint is unauthenticated and read-heavy, so a short TTL trades a
// few seconds of staleness for not hitting Postgres on every embed load.
const defaultProjectionTTL = 30 * time.Second

const projectionKeyPrefix = "netpad:public:workflow:"

// ProjectionCache caches public workflow projections by slug. All operations
// are best effort: cache failures degrade to repository reads.
type ProjectionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewProjectionCache creates a projection cache on top of the shared client.
func NewProjectionCache(client *Client, log *logger.Logger) *ProjectionCache {
	return &ProjectionCache{
		client: client.Raw(),
		ttl:    defaultProjectionTTL,
		logger: log.With("component", "projection_cache"),
	}
}

// GetWorkflow returns the cached projection for a slug, if present.
func (p *ProjectionCache) GetWorkflow(ctx context.Context, slug string) (*workflow.Workflow, bool) {
	data, err := p.client.Get(ctx, projectionKeyPrefix+slug).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.logger.Warn("projection cache read failed", "slug", slug, "error", err)
		}
		return nil, false
	}

	var w workflow.Workflow
	if err := json.Unmarshal(data, &w); err != nil {
		p.logger.Warn("projection cache entry corrupt", "slug", slug, "error", err)
		return nil, false
	}
	return &w, true
}

// SetWorkflow stores a projection under its slug with the cache TTL.
func (p *ProjectionCache) SetWorkflow(ctx context.Context, slug string, w *workflow.Workflow) {
	data, err := json.Marshal(w)
	if err != nil {
		p.logger.Warn("projection cache encode failed", "slug", slug, "error", err)
		return
	}
	if err := p.client.Set(ctx, projectionKeyPrefix+slug, data, p.ttl).Err(); err != nil {
		p.logger.Warn("projection cache write failed", "slug", slug, "error", err)
	}
}
