// Package runtime holds the process-wide provider and dependency registry.
package runtime

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// CheckFunc reports whether a dependency is reachable
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one health check
type CheckResult struct {
	Name string
	Err  error
}

// Services holds the AI providers and the health checks of every backing store.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	embedding driven.EmbeddingProvider
	generator driven.Generator

	checks  map[string]CheckFunc
	closers []func() error
}

// NewServices creates an empty registry
func NewServices() *Services {
	return &Services{checks: make(map[string]CheckFunc)}
}

// EmbeddingProvider returns the current embedding provider (may be nil)
func (s *Services) EmbeddingProvider() driven.EmbeddingProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embedding
}

// Generator returns the current generator (may be nil)
func (s *Services) Generator() driven.Generator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generator
}

// SetEmbeddingProvider replaces the embedding provider, closing the old one
func (s *Services) SetEmbeddingProvider(p driven.EmbeddingProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embedding != nil {
		_ = s.embedding.Close()
	}
	s.embedding = p
}

// SetGenerator replaces the generator, closing the old one
func (s *Services) SetGenerator(g driven.Generator) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generator != nil {
		_ = s.generator.Close()
	}
	s.generator = g
}

// ValidateAndSetEmbedding checks connectivity before installing the provider
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, p driven.EmbeddingProvider) error {
	if p == nil {
		s.SetEmbeddingProvider(nil)
		return nil
	}

	if err := p.HealthCheck(ctx); err != nil {
		_ = p.Close()
		return err
	}

	s.SetEmbeddingProvider(p)
	return nil
}

// ValidateAndSetGenerator checks connectivity before installing the generator
func (s *Services) ValidateAndSetGenerator(ctx context.Context, g driven.Generator) error {
	if g == nil {
		s.SetGenerator(nil)
		return nil
	}

	if err := g.Ping(ctx); err != nil {
		_ = g.Close()
		return err
	}

	s.SetGenerator(g)
	return nil
}

// Register adds a named health check and an optional closer run by Close
func (s *Services) Register(name string, check CheckFunc, closer func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if check != nil {
		s.checks[name] = check
	}
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
}

// HealthCheck runs every check, providers included, sorted by name.
// A missing provider reports domain.ErrServiceUnavailable.
func (s *Services) HealthCheck(ctx context.Context) []CheckResult {
	s.mu.RLock()
	checks := make(map[string]CheckFunc, len(s.checks)+2)
	for name, check := range s.checks {
		checks[name] = check
	}
	embedding, generator := s.embedding, s.generator
	s.mu.RUnlock()

	checks["embedding"] = func(ctx context.Context) error {
		if embedding == nil {
			return domain.ErrServiceUnavailable
		}
		return embedding.HealthCheck(ctx)
	}
	checks["llm"] = func(ctx context.Context) error {
		if generator == nil {
			return domain.ErrServiceUnavailable
		}
		return generator.Ping(ctx)
	}

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]CheckResult, 0, len(names))
	for _, name := range names {
		results = append(results, CheckResult{Name: name, Err: checks[name](ctx)})
	}
	return results
}

// Close shuts down providers and registered closers in reverse registration order
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.embedding != nil {
		errs = append(errs, s.embedding.Close())
		s.embedding = nil
	}
	if s.generator != nil {
		errs = append(errs, s.generator.Close())
		s.generator = nil
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil

	return errors.Join(errs...)
}
