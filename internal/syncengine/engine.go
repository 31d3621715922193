package syncengine

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/Dantrux22/no-border-app-sub000/internal/identity"
	"github.com/Dantrux22/no-border-app-sub000/internal/remote"
	"github.com/Dantrux22/no-border-app-sub000/internal/store"
)

// postsCollection is the remote collection mirrored by both sync directions.
const postsCollection = "posts"

// Config holds engine configuration.
type Config struct {
	// UpsyncInterval is how often the upsync timer fires. The interval
	// bounds worst-case propagation latency; shorter intervals burn
	// cycles when idle. There is no push mechanism for the local-to-
	// remote direction, so polling stays.
	UpsyncInterval time.Duration

	// UpsyncBatchSize caps how many posts one tick pushes. A sustained
	// local write rate above BatchSize/Interval grows the backlog.
	UpsyncBatchSize int

	// Logger for engine activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		UpsyncInterval:  5 * time.Second,
		UpsyncBatchSize: 20,
		Logger:          log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

// Engine owns the two sync loops and their teardown.
type Engine struct {
	store    *store.Store
	remote   remote.Client
	identity identity.Provider
	config   *Config

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	unsubs    []func()
	kick      chan struct{}
}

// New creates an engine. identity may be nil when no identity provider is
// wired (the engine then syncs regardless of sign-in state).
func New(st *store.Store, rc remote.Client, idp identity.Provider, config *Config) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if rc == nil {
		return nil, fmt.Errorf("remote client cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.UpsyncInterval <= 0 {
		config.UpsyncInterval = 5 * time.Second
	}
	if config.UpsyncBatchSize <= 0 {
		config.UpsyncBatchSize = 20
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}

	return &Engine{
		store:    st,
		remote:   rc,
		identity: idp,
		config:   config,
		kick:     make(chan struct{}, 1),
	}, nil
}

// Start runs the schema migration, attaches the downsync subscription and
// the identity listener, and starts the upsync timer loop. A migration
// failure is fatal: the engine does not start on a partial schema.
//
// Start returns immediately; use Stop to tear down.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("engine already started")
	}

	if err := e.store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	unsubRemote, err := e.remote.Subscribe(runCtx, postsCollection, func(docs []remote.Doc) {
		e.handleSnapshot(runCtx, docs)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to %s: %w", postsCollection, err)
	}
	e.unsubs = append(e.unsubs, unsubRemote)

	if e.identity != nil {
		unsubIdentity := e.identity.OnIdentityChange(func(userID string) {
			if userID == "" {
				e.config.Logger.Printf("Identity cleared")
				return
			}
			e.config.Logger.Printf("Identity changed to %s, scheduling upsync", userID)
			e.kickUpsync()
		})
		e.unsubs = append(e.unsubs, unsubIdentity)
	}

	e.cancel = cancel
	e.running = true
	e.wg.Add(1)
	go e.upsyncLoop(runCtx)

	e.config.Logger.Printf("Engine started (interval=%s, batch=%d)",
		e.config.UpsyncInterval, e.config.UpsyncBatchSize)
	return nil
}

// Stop cancels the upsync timer and detaches the downsync subscription and
// the identity listener. Idempotent; safe to call without Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	unsubs := e.unsubs
	e.unsubs = nil
	e.mu.Unlock()

	cancel()
	for _, unsub := range unsubs {
		unsub()
	}
	e.wg.Wait()
	e.config.Logger.Printf("Engine stopped")
}

// kickUpsync schedules an immediate upsync tick without waiting for the
// timer. Coalesces if one is already pending.
func (e *Engine) kickUpsync() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// upsyncLoop ticks UpsyncOnce on the configured interval. Errors are
// swallowed and retried next tick; they never propagate.
func (e *Engine) upsyncLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.UpsyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.kick:
		case <-ticker.C:
		}

		if err := e.UpsyncOnce(ctx); err != nil {
			e.config.Logger.Printf("Upsync failed, will retry: %v", err)
		}
	}
}
