package question

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/learning-notebook/question-service/internal/logging"
)

// Gateway abstracts the record store (relational table or object store
// with an index). All operations are single-record transactional; no
// multi-record atomicity is promised.
type Gateway interface {
	// Create inserts a new record keyed by id, assigning timestamps.
	// Returns ErrConflict when the id already exists.
	Create(ctx context.Context, rec Record) (Record, error)
	// Get fetches a record by id regardless of active/is_deleted state
	// (administrative access). Returns ErrNotFound when absent.
	Get(ctx context.Context, id string) (Record, error)
	// List returns live records (active and not soft-deleted), most
	// recent first, ties broken by insertion order.
	List(ctx context.Context, filter Filter) ([]Record, error)
	// Update merges non-nil patch fields into a live record and refreshes
	// updated_at. Deleted, inactive or missing ids return ErrNotFound.
	Update(ctx context.Context, id string, patch Patch) (Record, error)
	// SoftDelete marks a record deleted. Idempotent; unknown ids succeed.
	SoftDelete(ctx context.Context, id string) error
}

// ListCache fronts the gateway's List path (implemented by the
// Redis-backed Cache). A nil miss is (nil, nil).
type ListCache interface {
	Get(ctx context.Context, filter Filter) (*ListPage, error)
	Set(ctx context.Context, filter Filter, page ListPage) error
	Invalidate(ctx context.Context) error
}

// ListPage wraps a cached list result so an empty page is distinguishable
// from a cache miss.
type ListPage struct {
	Records []Record `json:"records"`
}

// ServiceOptions tunes defaulting and pagination.
type ServiceOptions struct {
	DefaultSource     string
	DefaultListLimit  int
	MaxListLimit      int
	ImportConcurrency int
}

// Service composes normalization and persistence into the question record
// API. Handlers stay transport-only; all semantics live here.
type Service struct {
	gateway Gateway
	cache   ListCache
	opts    ServiceOptions

	// cacheDegraded is set when a version bump fails; reads bypass the
	// cache until the next successful bump so a pre-write page can never
	// be served under a stale version.
	cacheDegraded atomic.Bool
}

func NewService(gateway Gateway, cache ListCache, opts ServiceOptions) *Service {
	if opts.DefaultSource == "" {
		opts.DefaultSource = DefaultSource
	}
	if opts.DefaultListLimit <= 0 {
		opts.DefaultListLimit = 100
	}
	if opts.MaxListLimit <= 0 {
		opts.MaxListLimit = 500
	}
	if opts.ImportConcurrency <= 0 {
		opts.ImportConcurrency = 4
	}
	return &Service{gateway: gateway, cache: cache, opts: opts}
}

// Create normalizes a raw payload, fills defaults, assigns an id when the
// caller did not supply one, and persists the record.
func (s *Service) Create(ctx context.Context, raw map[string]any) (Record, error) {
	rec, err := s.buildRecord(raw)
	if err != nil {
		return Record{}, err
	}
	created, err := s.gateway.Create(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.invalidate(ctx)
	return created, nil
}

// Get fetches a record by id. Soft-deleted and inactive records are still
// reachable here; only List filters them out.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("%w: empty id", ErrInvalidPayload)
	}
	return s.gateway.Get(ctx, id)
}

// List returns live records matching the filter, consulting the cache
// first when one is configured. Cache failures degrade to the gateway.
func (s *Service) List(ctx context.Context, filter Filter) ([]Record, error) {
	filter = s.clampFilter(filter)

	if s.cacheUsable() {
		if page, err := s.cache.Get(ctx, filter); err == nil && page != nil {
			return page.Records, nil
		}
	}

	records, err := s.gateway.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	if s.cacheUsable() {
		_ = s.cache.Set(ctx, filter, ListPage{Records: records})
	}
	return records, nil
}

// Update applies a partial payload to a live record.
func (s *Service) Update(ctx context.Context, id string, raw map[string]any) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("%w: empty id", ErrInvalidPayload)
	}
	if raw == nil {
		return Record{}, fmt.Errorf("%w: body must be a JSON object", ErrInvalidPayload)
	}
	patch := PatchFromPayload(Normalize(raw))
	updated, err := s.gateway.Update(ctx, id, patch)
	if err != nil {
		return Record{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// Delete soft-deletes a record. Deleting an already-deleted or unknown id
// still succeeds.
func (s *Service) Delete(ctx context.Context, id string) (DeleteResult, error) {
	if id == "" {
		return DeleteResult{}, fmt.Errorf("%w: empty id", ErrInvalidPayload)
	}
	if err := s.gateway.SoftDelete(ctx, id); err != nil {
		return DeleteResult{}, err
	}
	s.invalidate(ctx)
	return DeleteResult{Success: true, ID: id}, nil
}

// buildRecord runs the normalizer and applies create-boundary defaults.
func (s *Service) buildRecord(raw map[string]any) (Record, error) {
	if raw == nil {
		return Record{}, fmt.Errorf("%w: body must be a JSON object", ErrInvalidPayload)
	}
	normalized := Normalize(raw)
	// The configured default source covers both a missing key and an
	// explicitly empty one.
	if asString(normalized[FieldSource]) == "" {
		normalized[FieldSource] = s.opts.DefaultSource
	}
	rec := RecordFromPayload(normalized)
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	return rec, nil
}

func (s *Service) clampFilter(filter Filter) Filter {
	if filter.Limit <= 0 {
		filter.Limit = s.opts.DefaultListLimit
	}
	if filter.Limit > s.opts.MaxListLimit {
		filter.Limit = s.opts.MaxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter
}

func (s *Service) cacheUsable() bool {
	return s.cache != nil && !s.cacheDegraded.Load()
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		logger := logging.FromContext(ctx)
		logger.Warn().Err(err).Msg("list cache invalidation failed; bypassing cache")
		s.cacheDegraded.Store(true)
		return
	}
	s.cacheDegraded.Store(false)
}
