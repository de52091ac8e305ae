package layout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const queueDepth = 64

type job struct {
	id       string
	image    []byte
	lang     string
	sentinel bool
}

type result struct {
	id         string
	detections []Detection
	err        error
}

// Server runs a single serving loop over one Model. Callers submit jobs on a
// shared request queue and poll a shared response queue; a dequeued response
// belonging to another caller is put back, never discarded, so the rightful
// owner can still receive it.
type Server struct {
	model   Model
	timeout time.Duration

	reqs  chan job
	resps chan result

	closeOnce sync.Once
	done      chan struct{}
}

// NewServer builds a server around one model handle. timeout bounds each
// caller's wait for a response; zero means the 30s default.
func NewServer(model Model, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		model:   model,
		timeout: timeout,
		reqs:    make(chan job, queueDepth),
		resps:   make(chan result, queueDepth),
		done:    make(chan struct{}),
	}
}

// Start probes the model and launches the serving loop. A failed probe is
// ErrServerUnavailable and fatal for the enclosing run.
func (s *Server) Start(ctx context.Context) error {
	if err := s.model.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrServerUnavailable, err)
	}
	go s.serve()
	slog.InfoContext(ctx, "layout model server started", "timeout", s.timeout)
	return nil
}

func (s *Server) serve() {
	for j := range s.reqs {
		if j.sentinel {
			close(s.done)
			return
		}
		dets, err := s.model.Detect(context.Background(), j.image, j.lang)
		s.resps <- result{id: j.id, detections: dets, err: err}
	}
}

// Submit enqueues one page job and waits for its response. Responses with a
// foreign job id are re-enqueued for their owner. Returns ErrJobTimeout when
// no matching response arrives within the server timeout.
func (s *Server) Submit(ctx context.Context, pageImage []byte, lang string) ([]Detection, error) {
	id := uuid.New().String()

	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()

	select {
	case s.reqs <- job{id: id, image: pageImage, lang: lang}:
	case <-deadline.C:
		return nil, fmt.Errorf("%w: job %s (enqueue)", ErrJobTimeout, id)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for {
		select {
		case r := <-s.resps:
			if r.id == id {
				return r.detections, r.err
			}
			// Not ours: route it back for the owner.
			select {
			case s.resps <- r:
			case <-deadline.C:
				return nil, fmt.Errorf("%w: job %s", ErrJobTimeout, id)
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			// Give the owner a chance to drain before we poll again.
			time.Sleep(time.Millisecond)
		case <-deadline.C:
			return nil, fmt.Errorf("%w: job %s", ErrJobTimeout, id)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close enqueues the shutdown sentinel. The loop drains no further work after
// receiving it; jobs still queued behind the sentinel time out in their
// callers. Safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.reqs <- job{sentinel: true}
	})
}

// Done is closed once the serving loop has exited.
func (s *Server) Done() <-chan struct{} {
	return s.done
}
