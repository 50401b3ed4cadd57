package resolve

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ytget/mediaq/internal/model"
	"github.com/ytget/mediaq/internal/registry"
)

// Timeout constants
const (
	DefaultResolveTimeout = 60 * time.Second
)

// Service expands user-submitted references into concrete fetch items.
// Expansion runs in a goroutine per reference so callers never block on
// network I/O.
type Service struct {
	registry *registry.Registry
	engine   Engine
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewService creates a new resolver service
func NewService(reg *registry.Registry, engine Engine) *Service {
	return &Service{
		registry: reg,
		engine:   engine,
		timeout:  DefaultResolveTimeout,
	}
}

// SetTimeout sets the timeout for a single resolution
func (s *Service) SetTimeout(timeout time.Duration) {
	s.timeout = timeout
}

// Submit registers a reference and starts resolving it asynchronously.
// The returned snapshot is the placeholder item; a collection reference will
// later replace it with one item per child.
func (s *Service) Submit(ctx context.Context, reference string) model.Item {
	item := s.registry.Add(reference, reference)
	if err := s.registry.BeginResolve(item.ID); err != nil {
		// Freshly added items are always Pending; log and fall through
		log.Printf("resolve: begin failed for item %d: %v", item.ID, err)
		return item
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.resolve(ctx, item.ID, reference)
	}()
	return item
}

// Wait blocks until every in-flight resolution has settled
func (s *Service) Wait() {
	s.wg.Wait()
}

// resolve runs one expansion and applies the outcome to the registry.
// Resolution failure is never surfaced as a hard error: the item degrades to
// the raw reference as its title and stays fetchable.
func (s *Service) resolve(ctx context.Context, id int64, reference string) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	md, err := s.engine.Resolve(ctx, reference)
	if err != nil || md == nil {
		if err != nil {
			log.Printf("resolve: %s: %v (falling back to raw reference)", reference, err)
		}
		s.fallback(id, reference)
		return
	}

	if md.IsCollection && len(md.Entries) > 0 {
		children := make([]registry.Child, 0, len(md.Entries))
		for _, e := range md.Entries {
			if e.Reference == "" {
				continue
			}
			title := e.Title
			if title == "" {
				title = e.Reference
			}
			children = append(children, registry.Child{Reference: e.Reference, Title: title})
		}
		if len(children) == 0 {
			s.fallback(id, reference)
			return
		}
		s.registry.ReplaceWithChildren(id, children)
		return
	}

	title := md.Title
	if title == "" {
		title = reference
	}
	if err := s.registry.FinishResolve(id, title); err != nil {
		log.Printf("resolve: finish failed for item %d: %v", id, err)
	}
}

func (s *Service) fallback(id int64, reference string) {
	if err := s.registry.FinishResolve(id, reference); err != nil {
		log.Printf("resolve: fallback failed for item %d: %v", id, err)
	}
}
