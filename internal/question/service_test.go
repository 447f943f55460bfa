package question

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryGateway is an in-memory Gateway with the same semantics as the
// Postgres repository: unique ids, live-only listing, COALESCE merge,
// idempotent soft delete.
type memoryGateway struct {
	mu      sync.Mutex
	seq     int
	records map[string]Record
	order   map[string]int
}

func newMemoryGateway() *memoryGateway {
	return &memoryGateway{records: map[string]Record{}, order: map[string]int{}}
}

// now produces a strictly increasing logical clock so ordering tests are
// deterministic.
func (g *memoryGateway) now() time.Time {
	g.seq++
	return time.Unix(1700000000, 0).Add(time.Duration(g.seq) * time.Second)
}

func (g *memoryGateway) Create(_ context.Context, rec Record) (Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.records[rec.ID]; exists {
		return Record{}, ErrConflict
	}
	ts := g.now()
	rec.CreatedAt = ts
	rec.UpdatedAt = ts
	g.records[rec.ID] = rec
	g.order[rec.ID] = g.seq
	return rec, nil
}

func (g *memoryGateway) Get(_ context.Context, id string) (Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (g *memoryGateway) List(_ context.Context, filter Filter) ([]Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var live []Record
	for _, rec := range g.records {
		if !rec.Active || rec.IsDeleted {
			continue
		}
		if filter.Subject != "" && rec.Subject != filter.Subject {
			continue
		}
		if filter.DifficultyLevel != "" && rec.DifficultyLevel != filter.DifficultyLevel {
			continue
		}
		live = append(live, rec)
	}
	sort.Slice(live, func(i, j int) bool {
		if !live[i].CreatedAt.Equal(live[j].CreatedAt) {
			return live[i].CreatedAt.After(live[j].CreatedAt)
		}
		return g.order[live[i].ID] < g.order[live[j].ID]
	})
	if filter.Offset >= len(live) {
		return nil, nil
	}
	live = live[filter.Offset:]
	if filter.Limit > 0 && len(live) > filter.Limit {
		live = live[:filter.Limit]
	}
	return live, nil
}

func (g *memoryGateway) Update(_ context.Context, id string, patch Patch) (Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[id]
	if !ok || !rec.Active || rec.IsDeleted {
		return Record{}, ErrNotFound
	}
	if patch.Subject != nil {
		rec.Subject = *patch.Subject
	}
	if patch.Title != nil {
		rec.Title = *patch.Title
	}
	if patch.QuestionText != nil {
		rec.QuestionText = *patch.QuestionText
	}
	if patch.CorrectAnswer != nil {
		rec.CorrectAnswer = *patch.CorrectAnswer
	}
	if patch.Explanation != nil {
		rec.Explanation = patch.Explanation
	}
	if patch.DifficultyLevel != nil {
		rec.DifficultyLevel = *patch.DifficultyLevel
	}
	if patch.Choices != nil {
		rec.Choices = *patch.Choices
	}
	if patch.Options != nil {
		rec.Options = *patch.Options
	}
	if patch.Tags != nil {
		rec.Tags = *patch.Tags
	}
	if patch.MediaURLs != nil {
		rec.MediaURLs = *patch.MediaURLs
	}
	if patch.Source != nil {
		rec.Source = *patch.Source
	}
	if patch.IsListening != nil {
		rec.IsListening = *patch.IsListening
	}
	if patch.Mode != nil {
		rec.Mode = patch.Mode
	}
	if patch.Word != nil {
		rec.Word = patch.Word
	}
	if patch.Active != nil {
		rec.Active = *patch.Active
	}
	rec.UpdatedAt = g.now()
	g.records[id] = rec
	return rec, nil
}

func (g *memoryGateway) SoftDelete(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[id]
	if !ok || rec.IsDeleted {
		return nil
	}
	rec.IsDeleted = true
	rec.UpdatedAt = g.now()
	g.records[id] = rec
	return nil
}

// memoryCache implements ListCache for invalidation tests.
type memoryCache struct {
	mu      sync.Mutex
	version int
	store   map[string]ListPage
	hits    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{store: map[string]ListPage{}}
}

func (c *memoryCache) key(filter Filter) string {
	return strings.Join([]string{
		fmt.Sprint(c.version), filter.Subject, filter.DifficultyLevel,
		fmt.Sprint(filter.Limit), fmt.Sprint(filter.Offset),
	}, ":")
}

func (c *memoryCache) Get(_ context.Context, filter Filter) (*ListPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if page, ok := c.store[c.key(filter)]; ok {
		c.hits++
		return &page, nil
	}
	return nil, nil
}

func (c *memoryCache) Set(_ context.Context, filter Filter, page ListPage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[c.key(filter)] = page
	return nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	return nil
}

func newTestService(gw Gateway, cache ListCache) *Service {
	return NewService(gw, cache, ServiceOptions{})
}

func TestServiceCreateAppliesShortFormAliasesAndDefaults(t *testing.T) {
	svc := newTestService(newMemoryGateway(), nil)

	rec, err := svc.Create(context.Background(), map[string]any{
		"q": "2+2=?",
		"a": "4",
		"d": "easy",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "2+2=?", rec.QuestionText)
	assert.Equal(t, "4", rec.CorrectAnswer)
	assert.Equal(t, "easy", rec.DifficultyLevel)
	assert.Equal(t, "general", rec.Subject)
	assert.Equal(t, "learning-notebook", rec.Source)
	assert.True(t, rec.Active)
	assert.False(t, rec.IsDeleted)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestServiceCreateRejectsNilPayload(t *testing.T) {
	svc := newTestService(newMemoryGateway(), nil)

	_, err := svc.Create(context.Background(), nil)

	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestServiceCreateKeepsCallerSuppliedID(t *testing.T) {
	svc := newTestService(newMemoryGateway(), nil)

	rec, err := svc.Create(context.Background(), map[string]any{"id": "vocab-42", "q": "hello?"})

	require.NoError(t, err)
	assert.Equal(t, "vocab-42", rec.ID)
}

func TestServiceCreateDuplicateIDConflicts(t *testing.T) {
	svc := newTestService(newMemoryGateway(), nil)

	_, err := svc.Create(context.Background(), map[string]any{"id": "dup"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), map[string]any{"id": "dup"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestServiceCreateUsesConfiguredDefaultSource(t *testing.T) {
	svc := NewService(newMemoryGateway(), nil, ServiceOptions{DefaultSource: "grammar-drills"})

	rec, err := svc.Create(context.Background(), map[string]any{"q": "a or an?"})
	require.NoError(t, err)
	assert.Equal(t, "grammar-drills", rec.Source)

	rec, err = svc.Create(context.Background(), map[string]any{"q": "x?", "src": "textbook"})
	require.NoError(t, err)
	assert.Equal(t, "textbook", rec.Source)

	// An explicitly empty source still gets the configured default, not
	// the package fallback.
	rec, err = svc.Create(context.Background(), map[string]any{"q": "y?", "source": ""})
	require.NoError(t, err)
	assert.Equal(t, "grammar-drills", rec.Source)
}

func TestServiceListExcludesSoftDeleted(t *testing.T) {
	svc := newTestService(newMemoryGateway(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, map[string]any{"q": "2+2=?", "a": "4", "subject": "general"})
	require.NoError(t, err)

	records, err := svc.List(ctx, Filter{Subject: "general"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, created.ID, records[0].ID)

	_, err = svc.Delete(ctx, created.ID)
	require.NoError(t, err)

	records, err = svc.List(ctx, Filter{Subject: "general"})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestServiceListExcludesInactiveButGetStillFinds(t *testing.T) {
	svc := newTestService(newMemoryGateway(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, map[string]any{"q": "archived?", "active": false})
	require.NoError(t, err)

	records, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)

	fetched, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, fetched.Active)
}

func TestServiceGetFindsSoftDeletedRecord(t *testing.T) {
	svc := newTestService(newMemoryGateway(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, map[string]any{"q": "gone?"})
	require.NoError(t, err)
	_, err = svc.Delete(ctx, created.ID)
	require.NoError(t, err)

	fetched, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, fetched.IsDeleted)
}

func TestServiceListOrdersMostRecentFirst(t *testing.T) {
	svc := newTestService(newMemoryGateway(), nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, map[string]any{"q": "first"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, map[string]any{"q": "second"})
	require.NoError(t, err)

	records, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, second.ID, records[0].ID)
	assert.Equal(t, first.ID, records[1].ID)
}

func TestServiceListPagination(t *testing.T) {
	svc := newTestService(newMemoryGateway(), nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, map[string]any{"q": fmt.Sprintf("q%d", i)})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := svc.List(ctx, Filter{Limit: 10, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestServiceUpdateMergesPartialPayload(t *testing.T) {
	svc := newTestService(newMemoryGateway(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, map[string]any{"q": "2+2=?", "a": "4", "title": "arithmetic"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, map[string]any{"title": "new"})
	require.NoError(t, err)

	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, "2+2=?", updated.QuestionText)
	assert.Equal(t, "4", updated.CorrectAnswer)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
}

func TestServiceUpdateDeletedRecordNotFound(t *testing.T) {
	svc := newTestService(newMemoryGateway(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, map[string]any{"q": "bye"})
	require.NoError(t, err)
	_, err = svc.Delete(ctx, created.ID)
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, map[string]any{"title": "too late"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceUpdateUnknownIDNotFound(t *testing.T) {
	svc := newTestService(newMemoryGateway(), nil)

	_, err := svc.Update(context.Background(), "missing", map[string]any{"title": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceDeleteIsIdempotent(t *testing.T) {
	gw := newMemoryGateway()
	svc := newTestService(gw, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, map[string]any{"q": "bye"})
	require.NoError(t, err)

	first, err := svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{Success: true, ID: created.ID}, first)

	afterFirst, err := gw.Get(ctx, created.ID)
	require.NoError(t, err)

	second, err := svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{Success: true, ID: created.ID}, second)

	afterSecond, err := gw.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, afterFirst, afterSecond)
}

func TestServiceDeleteUnknownIDSucceeds(t *testing.T) {
	svc := newTestService(newMemoryGateway(), nil)

	result, err := svc.Delete(context.Background(), "never-existed")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestServiceListUsesCacheAndInvalidatesOnWrite(t *testing.T) {
	cache := newMemoryCache()
	svc := newTestService(newMemoryGateway(), cache)
	ctx := context.Background()

	created, err := svc.Create(ctx, map[string]any{"q": "cached?"})
	require.NoError(t, err)

	_, err = svc.List(ctx, Filter{})
	require.NoError(t, err)
	_, err = svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)

	// Any write bumps the cache version; the next list misses.
	_, err = svc.Delete(ctx, created.ID)
	require.NoError(t, err)

	records, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1, cache.hits)
}

func TestServiceImportIsolatesFailures(t *testing.T) {
	svc := newTestService(newMemoryGateway(), nil)
	ctx := context.Background()

	payloads := []map[string]any{
		{"id": "ok-1", "q": "one"},
		nil, // malformed element
		{"id": "ok-2", "q": "two"},
		{"id": "ok-1", "q": "duplicate id"},
	}

	result := svc.Import(ctx, payloads)

	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 2, result.Success)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)

	identifiers := []string{result.Errors[0].Identifier, result.Errors[1].Identifier}
	assert.Contains(t, identifiers, "unknown")
	assert.Contains(t, identifiers, "ok-1")

	// Domain sentinels keep their message in the tally.
	for _, importErr := range result.Errors {
		switch importErr.Identifier {
		case "unknown":
			assert.Contains(t, importErr.Message, "invalid payload")
		case "ok-1":
			assert.Equal(t, ErrConflict.Error(), importErr.Message)
		}
	}

	records, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestServiceImportEmptyBatch(t *testing.T) {
	svc := newTestService(newMemoryGateway(), nil)

	result := svc.Import(context.Background(), nil)

	assert.Equal(t, ImportResult{}, result)
}

func TestServiceImportBoundedConcurrency(t *testing.T) {
	svc := NewService(newMemoryGateway(), nil, ServiceOptions{ImportConcurrency: 2})

	payloads := make([]map[string]any, 50)
	for i := range payloads {
		payloads[i] = map[string]any{"id": fmt.Sprintf("bulk-%d", i), "q": "x"}
	}

	result := svc.Import(context.Background(), payloads)

	assert.Equal(t, 50, result.Success)
	assert.Zero(t, result.Failed)
}

// failingGateway simulates an unavailable store.
type failingGateway struct{}

func (failingGateway) Create(context.Context, Record) (Record, error) {
	return Record{}, errors.New("connection refused")
}
func (failingGateway) Get(context.Context, string) (Record, error) {
	return Record{}, errors.New("connection refused")
}
func (failingGateway) List(context.Context, Filter) ([]Record, error) {
	return nil, errors.New("connection refused")
}
func (failingGateway) Update(context.Context, string, Patch) (Record, error) {
	return Record{}, errors.New("connection refused")
}
func (failingGateway) SoftDelete(context.Context, string) error {
	return errors.New("connection refused")
}

func TestServiceImportStorageFailuresTallied(t *testing.T) {
	svc := newTestService(failingGateway{}, nil)

	result := svc.Import(context.Background(), []map[string]any{
		{"id": "a"}, {"id": "b"},
	})

	assert.Equal(t, 2, result.Failed)
	assert.Zero(t, result.Success)
	require.Len(t, result.Errors, 2)

	// Driver error detail stays out of the tally; clients see a generic
	// message.
	for _, importErr := range result.Errors {
		assert.Equal(t, "storage operation failed", importErr.Message)
		assert.NotContains(t, importErr.Message, "connection refused")
	}
}

// flakyCache wraps memoryCache with a switchable Invalidate failure.
type flakyCache struct {
	*memoryCache
	failInvalidate bool
}

func (c *flakyCache) Invalidate(ctx context.Context) error {
	if c.failInvalidate {
		return errors.New("INCR failed")
	}
	return c.memoryCache.Invalidate(ctx)
}

func TestServiceBypassesCacheWhenInvalidationFails(t *testing.T) {
	cache := &flakyCache{memoryCache: newMemoryCache()}
	svc := newTestService(newMemoryGateway(), cache)
	ctx := context.Background()

	created, err := svc.Create(ctx, map[string]any{"q": "soon stale"})
	require.NoError(t, err)

	// Prime a cached page, then break invalidation for the next write.
	_, err = svc.List(ctx, Filter{})
	require.NoError(t, err)
	cache.failInvalidate = true

	_, err = svc.Delete(ctx, created.ID)
	require.NoError(t, err)

	// The cached page still exists under the unbumped version, but reads
	// must bypass it and reflect the delete.
	records, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 0, cache.hits)

	// A later successful bump re-enables the cache.
	cache.failInvalidate = false
	_, err = svc.Create(ctx, map[string]any{"q": "fresh"})
	require.NoError(t, err)

	_, err = svc.List(ctx, Filter{})
	require.NoError(t, err)
	_, err = svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
}
