package pipeline

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"legal-backend/internal/analysis"
	"legal-backend/internal/shared/telemetry"
)

var errFlightMissing = errors.New("in-flight attempt missing")

// Service guards the Orchestrator with a per-document single-flight: concurrent
// submissions for the same id inside this process share one attempt.
type Service struct {
	Orchestrator *Orchestrator
	group        singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the shared attempt for one id. Its context outlives any single
// caller and is cancelled once every waiting caller has given up.
type flight struct {
	cancel  context.CancelFunc
	waiters int
}

// NewService wraps o.
func NewService(o *Orchestrator) *Service {
	return &Service{Orchestrator: o, flights: make(map[string]*flight)}
}

// Submit runs or joins the in-flight attempt for id and waits on it with ctx.
// A caller whose ctx ends gets ctx.Err() without affecting the others; the
// attempt itself is cancelled only when no caller is left waiting.
func (s *Service) Submit(ctx context.Context, id string) (analysis.Result, error) {
	f, ch := s.join(ctx, id)

	select {
	case <-ctx.Done():
		s.leave(id, f)
		return analysis.Result{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			telemetry.Info("analysis.singleflight_shared", map[string]any{
				"request_id":  telemetry.RequestIDFromContext(ctx),
				"document_id": id,
			})
		}
		if res.Err != nil {
			return analysis.Result{}, res.Err
		}
		return res.Val.(analysis.Result), nil
	}
}

// ProcessDocument is the queue worker entry point.
func (s *Service) ProcessDocument(ctx context.Context, id string) error {
	_, err := s.Submit(ctx, id)
	return err
}

func (s *Service) join(ctx context.Context, id string) (*flight, <-chan singleflight.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flights == nil {
		s.flights = make(map[string]*flight)
	}

	f, ok := s.flights[id]
	if !ok {
		// Values such as the request id carry over from the first caller.
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{cancel: cancel}
		s.flights[id] = f
		ch := s.group.DoChan(id, func() (any, error) {
			defer s.finish(id, f)
			return s.Orchestrator.Process(fctx, id)
		})
		f.waiters++
		return f, ch
	}
	f.waiters++
	return f, s.group.DoChan(id, func() (any, error) {
		return nil, errFlightMissing
	})
}

// leave drops one waiter and cancels the attempt when it was the last.
func (s *Service) leave(id string, f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if s.flights[id] == f {
		delete(s.flights, id)
		s.group.Forget(id)
	}
}

func (s *Service) finish(id string, f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.cancel()
	if s.flights[id] == f {
		delete(s.flights, id)
		s.group.Forget(id)
	}
}
