package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"timetable-backend/config"
	"timetable-backend/internal/model"
)

const defaultControllerIdle = 30 * time.Minute

// Registry hands out one controller per identity, plus the controller that
// follows the saved default identity. Per-identity controllers that are not
// requested for the configured idle period are closed and dropped.
type Registry struct {
	deps Deps
	cfg  config.SyncConfig
	log  *zap.Logger
	idle time.Duration

	mu          sync.Mutex
	controllers *cache.Cache
	def         *Controller
	closed      bool
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Deps, cfg config.SyncConfig, log *zap.Logger) *Registry {
	idle := cfg.ControllerIdle
	if idle <= 0 {
		idle = defaultControllerIdle
	}
	r := &Registry{
		deps:        deps,
		cfg:         cfg,
		log:         log,
		idle:        idle,
		controllers: cache.New(idle, idle/2),
		def:         New(deps, cfg, log.With(zap.Bool("default", true))),
	}
	r.controllers.OnEvicted(r.evicted)
	return r
}

func (r *Registry) evicted(identity string, v any) {
	r.log.Debug("closing idle schedule controller", zap.String("identity", identity))
	go v.(*Controller).Close()
}

// Get returns the controller for identity, creating and loading it on
// first use. Every call restarts the identity's idle period.
func (r *Registry) Get(ctx context.Context, identity string) (*Controller, error) {
	identity = model.NormalizeIdentity(identity)
	if identity == "" {
		return nil, ErrIdentityUnset
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if v, ok := r.controllers.Get(identity); ok {
		c := v.(*Controller)
		if !c.isClosed() {
			r.controllers.SetDefault(identity, c)
			r.mu.Unlock()
			return c, nil
		}
	}
	c := New(r.deps, r.cfg, r.log.With(zap.String("identity", identity)))
	r.controllers.SetDefault(identity, c)
	r.mu.Unlock()

	if err := c.SetIdentity(ctx, identity); err != nil {
		return nil, err
	}
	return c, nil
}

// Has reports whether identity has a live controller.
func (r *Registry) Has(identity string) bool {
	_, ok := r.controllers.Get(model.NormalizeIdentity(identity))
	return ok
}

// Default returns the default-identity controller.
func (r *Registry) Default() *Controller {
	return r.def
}

// WatchDefault starts polling source for the default identity.
func (r *Registry) WatchDefault(ctx context.Context, source IdentitySource) {
	r.def.WatchIdentity(ctx, source, r.cfg.IdentityPollInterval)
}

// Identities lists the identities with a live controller, sorted.
func (r *Registry) Identities() []string {
	items := r.controllers.Items()
	out := make([]string, 0, len(items))
	for id := range items {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close closes every controller.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	items := r.controllers.Items()
	r.controllers.Flush()
	controllers := make([]*Controller, 0, len(items)+1)
	for _, item := range items {
		controllers = append(controllers, item.Object.(*Controller))
	}
	controllers = append(controllers, r.def)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range controllers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Close()
		}()
	}
	wg.Wait()
}
