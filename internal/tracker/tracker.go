// Package tracker is the memoization service for build requests. Given a
// request descriptor it either returns the stored result of a previous run
// that is still valid, or executes the request once and stores it. It also
// answers the cheap "is this prior computation still valid" check the
// builder's skip predicate relies on, and persists aggregate pass results
// under their cache key.
package tracker

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/AceTheCreator/parcel/internal/ctxlog"
	"github.com/AceTheCreator/parcel/internal/request"
)

// DefaultCacheSize bounds the number of retained request results.
const DefaultCacheSize = 4096

// call coordinates concurrent executions of the same request id so only
// one goroutine runs the request; the rest wait for its result.
type call struct {
	done chan struct{}
	res  request.Result
	err  error
}

// Tracker memoizes request executions.
type Tracker struct {
	env *request.Env

	mu       sync.Mutex
	results  *lru.Cache[string, request.Result]
	invalid  map[string]struct{}
	inflight map[string]*call

	passes sync.Map // cache key -> stored pass result
}

// New creates a tracker executing requests against env, retaining at most
// cacheSize results.
func New(env *request.Env, cacheSize int) (*Tracker, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	results, err := lru.New[string, request.Result](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Tracker{
		env:      env,
		results:  results,
		invalid:  make(map[string]struct{}),
		inflight: make(map[string]*call),
	}, nil
}

// RunRequest returns the stored result for the request when it is still
// valid, otherwise executes it. Concurrent calls for the same id share one
// execution. Failed executions are not stored; a later call retries.
func (t *Tracker) RunRequest(ctx context.Context, req request.Request) (request.Result, error) {
	id := req.ID()

	t.mu.Lock()
	if _, stale := t.invalid[id]; !stale {
		if res, ok := t.results.Get(id); ok {
			t.mu.Unlock()
			return res, nil
		}
	}
	if c, running := t.inflight[id]; running {
		t.mu.Unlock()
		<-c.done
		return c.res, c.err
	}
	c := &call{done: make(chan struct{})}
	t.inflight[id] = c
	t.mu.Unlock()

	ctxlog.FromContext(ctx).Debug("running request", "kind", req.Kind().String(), "request_id", id)
	c.res, c.err = req.Run(ctx, t.env)

	t.mu.Lock()
	delete(t.inflight, id)
	if c.err == nil {
		t.results.Add(id, c.res)
		delete(t.invalid, id)
	}
	t.mu.Unlock()

	close(c.done)
	return c.res, c.err
}

// IsStillValid reports whether the prior computation recorded under the
// request id can be reused as-is.
func (t *Tracker) IsStillValid(requestID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, stale := t.invalid[requestID]; stale {
		return false
	}
	return t.results.Contains(requestID)
}

// Invalidate marks one prior computation stale. The next RunRequest for
// the id re-executes.
func (t *Tracker) Invalidate(requestID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.invalid[requestID] = struct{}{}
}

// InvalidateAll marks every stored computation stale.
func (t *Tracker) InvalidateAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range t.results.Keys() {
		t.invalid[id] = struct{}{}
	}
}

// StorePassResult persists an aggregate build pass result under its cache
// key.
func (t *Tracker) StorePassResult(cacheKey string, result any) {
	t.passes.Store(cacheKey, result)
}

// PassResult returns the pass result stored under the cache key.
func (t *Tracker) PassResult(cacheKey string) (any, bool) {
	return t.passes.Load(cacheKey)
}
