// Package collection keeps a local copy of a remote collection and changes it only after the
// remote side confirmed the change.
package collection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/shopdash/internal/metrics"
)

var (
	ErrAuthUnavailable = errors.New("authentication unavailable")
	ErrRemote          = errors.New("remote call failed")
	ErrSuperseded      = errors.New("refresh superseded by a newer one")
)

const DefaultTimeout = 15 * time.Second

// Entity is a record identified by an opaque id assigned by the remote system.
type Entity interface {
	EntityID() string
}

// Client is the transport to the remote API. Each call carries a bearer token.
type Client interface {
	List(ctx context.Context, token, resource string, out any) error
	Create(ctx context.Context, token, resource string, body, out any) error
	Update(ctx context.Context, token, resource, id string, body, out any) error
	Delete(ctx context.Context, token, resource, id string) error
}

// TokenSource hands out a bearer token for the next call. Tokens are never reused between calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// View is the read model for a list screen. Err is set when the latest refresh failed
// and is kept until a refresh succeeds.
type View[T Entity] struct {
	Items   []T
	Loaded  bool
	Loading bool
	Err     error
}

type Option func(*options)

type options struct {
	timeout time.Duration
	zaplog  *zap.Logger
	metrics *metrics.Collection
}

func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

func WithLogger(zaplog *zap.Logger) Option {
	return func(o *options) {
		if zaplog != nil {
			o.zaplog = zaplog
		}
	}
}

func WithMetrics(m *metrics.Collection) Option {
	return func(o *options) { o.metrics = m }
}

type Store[T Entity] struct {
	resource string
	client   Client
	tokens   TokenSource
	opts     options

	// номер последнего начатого refresh или подтверждённой мутации
	generation atomic.Uint64
	background sync.WaitGroup

	mu       sync.RWMutex
	items    []T
	loaded   bool
	inflight int
	// закрывается, когда завершается последний refresh в полёте
	idle chan struct{}
	err  error
}

func New[T Entity](resource string, client Client, tokens TokenSource, opts ...Option) *Store[T] {
	o := options{timeout: DefaultTimeout, zaplog: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T]{
		resource: resource,
		client:   client,
		tokens:   tokens,
		opts:     o,
	}
}

func (s *Store[T]) Resource() string { return s.resource }

// Snapshot returns a copy of the local sequence.
func (s *Store[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

func (s *Store[T]) State() View[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view()
}

// view must be called with s.mu held.
func (s *Store[T]) view() View[T] {
	return View[T]{
		Items:   slices.Clone(s.items),
		Loaded:  s.loaded,
		Loading: s.inflight > 0,
		Err:     s.err,
	}
}

// List returns the current snapshot and starts a refresh in the background.
// The refresh keeps ctx values but not its cancellation.
func (s *Store[T]) List(ctx context.Context) []T {
	return s.ListView(ctx).Items
}

// ListView is List with the load state of the snapshot. While a refresh is in flight
// no new one is started, the reader gets the result of the running one later.
func (s *Store[T]) ListView(ctx context.Context) View[T] {
	s.mu.Lock()
	if s.inflight > 0 {
		defer s.mu.Unlock()
		return s.view()
	}
	gen := s.begin()
	view := s.view()
	s.mu.Unlock()

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if err := s.refresh(context.WithoutCancel(ctx), gen); err != nil && !errors.Is(err, ErrSuperseded) {
			s.opts.zaplog.Warn("background refresh failed",
				zap.String("resource", s.resource),
				zap.Error(err),
			)
		}
	}()

	return view
}

// Read is the list read of a screen. Until the first load lands it waits for it,
// joining a load already in flight; afterwards it behaves like ListView.
func (s *Store[T]) Read(ctx context.Context) View[T] {
	for {
		s.mu.Lock()
		if s.loaded {
			s.mu.Unlock()
			return s.ListView(ctx)
		}

		if s.inflight > 0 {
			idle := s.idle
			s.mu.Unlock()
			select {
			case <-idle:
			case <-ctx.Done():
				view := s.State()
				view.Err = ctx.Err()
				return view
			}
			if view := s.State(); view.Loaded || view.Err != nil {
				return view
			}
			continue
		}

		gen := s.begin()
		s.mu.Unlock()
		if err := s.refresh(ctx, gen); !errors.Is(err, ErrSuperseded) {
			return s.State()
		}
	}
}

// Wait blocks until background refreshes started by List have finished.
func (s *Store[T]) Wait() {
	s.background.Wait()
}

// Refresh replaces the local sequence with the remote one. A response that arrives after a
// newer refresh was started, or after a mutation was confirmed, is dropped with ErrSuperseded.
func (s *Store[T]) Refresh(ctx context.Context) error {
	s.mu.Lock()
	gen := s.begin()
	s.mu.Unlock()
	return s.refresh(ctx, gen)
}

// begin must be called with s.mu held.
func (s *Store[T]) begin() uint64 {
	if s.inflight == 0 {
		s.idle = make(chan struct{})
	}
	s.inflight++
	return s.generation.Add(1)
}

func (s *Store[T]) refresh(ctx context.Context, gen uint64) error {
	start := time.Now()

	var items []T
	err := s.call(ctx, "list", func(ctx context.Context, token string) error {
		return s.client.List(ctx, token, s.resource, &items)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.inflight == 0 {
		close(s.idle)
	}

	if gen != s.generation.Load() {
		// неудачный вызов уже учтён в call
		if err == nil {
			s.observe("list", metrics.OutcomeSuperseded, start)
		}
		return ErrSuperseded
	}
	if err != nil {
		s.err = err
		return err
	}
	s.observe("list", metrics.OutcomeSuccess, start)
	if items == nil {
		items = []T{}
	}
	s.items = items
	s.loaded = true
	s.err = nil
	return nil
}

// Create sends the draft and prepends the entity returned by the server.
func (s *Store[T]) Create(ctx context.Context, draft any) (T, error) {
	start := time.Now()

	var created T
	err := s.call(ctx, "create", func(ctx context.Context, token string) error {
		return s.client.Create(ctx, token, s.resource, draft, &created)
	})
	if err != nil {
		var zero T
		return zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirm("create", start)
	items := make([]T, 0, len(s.items)+1)
	items = append(items, created)
	s.items = append(items, s.items...)
	return created, nil
}

// Delete removes the entity remotely, then drops the first local entity with that id.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	start := time.Now()

	err := s.call(ctx, "delete", func(ctx context.Context, token string) error {
		return s.client.Delete(ctx, token, s.resource, id)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirm("delete", start)
	if i := s.indexOf(id); i >= 0 {
		s.items = slices.Delete(slices.Clone(s.items), i, i+1)
	}
	return nil
}

// Update sends a partial update and puts the server's entity in place of the local one.
func (s *Store[T]) Update(ctx context.Context, id string, patch any) (T, error) {
	start := time.Now()

	var updated T
	err := s.call(ctx, "update", func(ctx context.Context, token string) error {
		return s.client.Update(ctx, token, s.resource, id, patch, &updated)
	})
	if err != nil {
		var zero T
		return zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirm("update", start)
	if i := s.indexOf(id); i >= 0 {
		items := slices.Clone(s.items)
		items[i] = updated
		s.items = items
	}
	return updated, nil
}

// confirm must be called with s.mu held. Refreshes started before the mutation was
// confirmed carry an older list and are dropped.
func (s *Store[T]) confirm(op string, start time.Time) {
	s.generation.Add(1)
	s.observe(op, metrics.OutcomeSuccess, start)
}

// indexOf must be called with s.mu held.
func (s *Store[T]) indexOf(id string) int {
	return slices.IndexFunc(s.items, func(item T) bool {
		return item.EntityID() == id
	})
}

func (s *Store[T]) observe(op, outcome string, start time.Time) {
	s.opts.metrics.Observe(s.resource, op, outcome, time.Since(start))
}

// call получает свежий токен и выполняет запрос с таймаутом.
// Успех записывает в метрики вызывающий, после того как применил ответ.
func (s *Store[T]) call(ctx context.Context, op string, fn func(ctx context.Context, token string) error) error {
	start := time.Now()

	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.observe(op, metrics.OutcomeAuth, start)
		return fmt.Errorf("%s %s: %w: %w", op, s.resource, ErrAuthUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := fn(ctx, token); err != nil {
		s.observe(op, metrics.OutcomeFailure, start)
		s.opts.zaplog.Error("remote call failed",
			zap.String("resource", s.resource),
			zap.String("op", op),
			zap.Error(err),
		)
		return fmt.Errorf("%s %s: %w: %w", op, s.resource, ErrRemote, err)
	}
	return nil
}
