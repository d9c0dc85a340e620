package flows

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/accordlabs/accord-gateway/internal/auth"
	"github.com/accordlabs/accord-gateway/internal/importer"
	"github.com/accordlabs/accord-gateway/internal/metrics"
	"github.com/accordlabs/accord-gateway/internal/rewards"
	"github.com/accordlabs/accord-gateway/internal/rooms"
	"github.com/accordlabs/accord-gateway/internal/subscription"
	"github.com/accordlabs/accord-gateway/pkg/httpclient"
	"github.com/accordlabs/accord-gateway/pkg/logger"
	"github.com/accordlabs/accord-gateway/pkg/session"
)

var ErrInstanceNotFound = errors.New("flow instance not found")

// Instance is the per-client bundle of flow state: one session token,
// one HTTP client bound to it, at most one QR and one phone attempt,
// and the download watchers started from this client.
type Instance struct {
	ID           string
	Store        *session.Store
	API          *httpclient.Client
	QR           *auth.QRFlow
	Phone        *auth.PhoneFlow
	Auth         *auth.Service
	Importer     *importer.Service
	Subscription *subscription.Service
	Rooms        *rooms.Service
	Rewards      *rewards.Service

	mu        sync.Mutex
	downloads map[int64]*importer.DownloadWatcher
	audited   map[int64]bool
	lastSeen  time.Time
}

func (i *Instance) touch() {
	i.mu.Lock()
	i.lastSeen = time.Now()
	i.mu.Unlock()
}

func (i *Instance) seen() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastSeen
}

// TrackDownload keeps a watcher addressable by its job id.
func (i *Instance) TrackDownload(w *importer.DownloadWatcher) {
	i.mu.Lock()
	i.downloads[w.ID()] = w
	i.mu.Unlock()
}

// ActiveDownload reports whether any tracked download is still
// polling. The backend processes one history download at a time, so
// the gateway refuses to queue a second.
func (i *Instance) ActiveDownload() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, w := range i.downloads {
		if w.Running() {
			return true
		}
	}
	return false
}

// Download returns a tracked watcher.
func (i *Instance) Download(id int64) (*importer.DownloadWatcher, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	w, ok := i.downloads[id]
	return w, ok
}

// MarkAudited reports whether this download still needs an audit
// record, flipping the flag on first call.
func (i *Instance) MarkAudited(id int64) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.audited[id] {
		return false
	}
	i.audited[id] = true
	return true
}

// Close tears down every timer the instance owns.
func (i *Instance) Close() {
	i.QR.Close()
	i.Phone.Close()
	i.mu.Lock()
	watchers := make([]*importer.DownloadWatcher, 0, len(i.downloads))
	for _, w := range i.downloads {
		watchers = append(watchers, w)
	}
	i.mu.Unlock()
	for _, w := range watchers {
		w.Stop()
	}
}

// Factory builds the flow bundle for a new instance. Wiring lives in
// the composition root; the registry only manages lifecycle.
type Factory func(id string, store *session.Store, api *httpclient.Client) *Instance

// Registry tracks live instances and evicts the ones that stopped
// talking to us. Eviction closes the instance, so an abandoned browser
// tab cannot leak pollers.
type Registry struct {
	factory Factory
	baseURL string
	ttl     time.Duration
	logger  logger.Logger
	metrics *metrics.FlowMetrics

	mu        sync.Mutex
	instances map[string]*Instance

	stop     chan struct{}
	stopOnce sync.Once
}

func NewRegistry(baseURL string, factory Factory, ttl, sweepInterval time.Duration, m *metrics.FlowMetrics, log logger.Logger) *Registry {
	r := &Registry{
		factory:   factory,
		baseURL:   baseURL,
		ttl:       ttl,
		logger:    log,
		metrics:   m,
		instances: make(map[string]*Instance),
		stop:      make(chan struct{}),
	}
	go r.sweep(sweepInterval)
	return r
}

// Create builds and registers a fresh instance.
func (r *Registry) Create() *Instance {
	return r.build(uuid.New().String())
}

// Resume re-registers a previously issued instance id, letting the
// factory restore whatever state survives under that id (a persisted
// session token). An id that is still live is returned as-is.
func (r *Registry) Resume(id string) *Instance {
	if id == "" {
		return r.Create()
	}
	r.mu.Lock()
	if inst, ok := r.instances[id]; ok {
		r.mu.Unlock()
		inst.touch()
		return inst
	}
	r.mu.Unlock()
	return r.build(id)
}

func (r *Registry) build(id string) *Instance {
	store := session.NewStore()
	api := httpclient.New(r.baseURL, store, r.logger)

	inst := r.factory(id, store, api)
	inst.lastSeen = time.Now()
	if inst.downloads == nil {
		inst.downloads = make(map[int64]*importer.DownloadWatcher)
	}
	if inst.audited == nil {
		inst.audited = make(map[int64]bool)
	}

	r.mu.Lock()
	r.instances[id] = inst
	n := len(r.instances)
	r.mu.Unlock()

	r.logger.Info("Flow instance created",
		logger.Field{Key: "instance_id", Value: id},
		logger.Field{Key: "live", Value: n},
	)
	return inst
}

// Get returns a live instance and refreshes its idle timer.
func (r *Registry) Get(id string) (*Instance, error) {
	r.mu.Lock()
	inst, ok := r.instances[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrInstanceNotFound
	}
	inst.touch()
	return inst, nil
}

// Remove closes and forgets an instance.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	inst, ok := r.instances[id]
	delete(r.instances, id)
	r.mu.Unlock()
	if ok {
		inst.Close()
	}
}

// Len reports the number of live instances.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// Close stops the sweeper and tears down every instance.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	instances := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		instances = append(instances, inst)
	}
	r.instances = make(map[string]*Instance)
	r.mu.Unlock()

	for _, inst := range instances {
		inst.Close()
	}
}

func (r *Registry) sweep(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.evictStale()
		}
	}
}

func (r *Registry) evictStale() {
	cutoff := time.Now().Add(-r.ttl)

	r.mu.Lock()
	var stale []*Instance
	for id, inst := range r.instances {
		if inst.seen().Before(cutoff) {
			stale = append(stale, inst)
			delete(r.instances, id)
		}
	}
	r.mu.Unlock()

	for _, inst := range stale {
		inst.Close()
		r.metrics.IncSessionEviction()
		r.logger.Info("Flow instance evicted", logger.Field{Key: "instance_id", Value: inst.ID})
	}
}
