package scheduler

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crossdev/syncmesh/internal/contextstore"
	"github.com/crossdev/syncmesh/internal/registry"
	"github.com/crossdev/syncmesh/internal/session"
	"github.com/crossdev/syncmesh/internal/transport"
	"github.com/crossdev/syncmesh/pkg/models"
)

// Defaults for the reference behavior; all overridable via Config.
const (
	DefaultTickInterval      = 5 * time.Second
	DefaultSweepInterval     = 5 * time.Minute
	DefaultDiscoveryInterval = 30 * time.Second
	DefaultSessionExpiry     = 24 * time.Hour
	DefaultTransferTimeout   = 10 * time.Second
	DefaultBatchSize         = 5
)

// Config tunes the scheduler's timers and batch size. Zero fields take
// the defaults above.
type Config struct {
	TickInterval      time.Duration
	SweepInterval     time.Duration
	DiscoveryInterval time.Duration
	SessionExpiry     time.Duration
	TransferTimeout   time.Duration
	BatchSize         int
}

func (c *Config) withDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.DiscoveryInterval <= 0 {
		c.DiscoveryInterval = DefaultDiscoveryInterval
	}
	if c.SessionExpiry <= 0 {
		c.SessionExpiry = DefaultSessionExpiry
	}
	if c.TransferTimeout <= 0 {
		c.TransferTimeout = DefaultTransferTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
}

// SyncEvent reports the outcome of one sync job.
type SyncEvent struct {
	JobID     string    `json:"jobId"`
	ContextID string    `json:"contextId"`
	DeviceID  string    `json:"deviceId"`
	Version   int64     `json:"version,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// job is one queued request to transfer a context to a target device.
type job struct {
	id         string
	contextID  string
	targetID   string
	priority   int
	enqueuedAt time.Time
	seq        uint64
}

// Scheduler drains a priority queue of pending sync jobs on a fixed
// tick and owns the session-expiry and discovery-refresh timers.
type Scheduler struct {
	cfg       Config
	store     *contextstore.Store
	reg       *registry.Registry
	sessions  *session.Manager
	transport transport.Transport

	mu      sync.Mutex
	queue   []job
	seq     uint64
	paused  bool
	stopped bool

	events chan SyncEvent

	stopOnce sync.Once
	stop     chan struct{}
	done     sync.WaitGroup
}

// New creates a scheduler. Call Run to start its loops; Tick drains
// one batch synchronously and is what the loop itself uses.
func New(cfg Config, store *contextstore.Store, reg *registry.Registry, sessions *session.Manager, tr transport.Transport) *Scheduler {
	cfg.withDefaults()
	return &Scheduler{
		cfg:       cfg,
		store:     store,
		reg:       reg,
		sessions:  sessions,
		transport: tr,
		events:    make(chan SyncEvent, 64),
		stop:      make(chan struct{}),
	}
}

// Enqueue appends one job per target device. Duplicates are harmless:
// sync is idempotent, the final device state depends only on the
// latest version transferred.
func (s *Scheduler) Enqueue(contextID string, targetDeviceIDs []string, priority int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	ids := make([]string, 0, len(targetDeviceIDs))
	for _, target := range targetDeviceIDs {
		s.seq++
		j := job{
			id:         uuid.New().String(),
			contextID:  contextID,
			targetID:   target,
			priority:   priority,
			enqueuedAt: now,
			seq:        s.seq,
		}
		s.queue = append(s.queue, j)
		ids = append(ids, j.id)
	}
	return ids
}

// QueueLen reports the number of jobs waiting.
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Pause makes subsequent ticks no-op drains. Queue order is preserved;
// intended to be driven by background/network-down signals.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	log.Println("Sync scheduler paused")
}

// Resume re-enables transfers.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	log.Println("Sync scheduler resumed")
}

// Events exposes the sync outcome feed. Slow consumers lose events;
// the buffer never blocks the loop. The channel is closed by Stop so
// consumers ranging over it terminate with the scheduler.
func (s *Scheduler) Events() <-chan SyncEvent {
	return s.events
}

// Run starts the tick, sweep and discovery loops. They stop when Stop
// is called.
func (s *Scheduler) Run() {
	s.done.Add(3)

	go func() {
		defer s.done.Done()
		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Tick()
			case <-s.stop:
				return
			}
		}
	}()

	go func() {
		defer s.done.Done()
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sessions.SweepExpired(s.cfg.SessionExpiry)
			case <-s.stop:
				return
			}
		}
	}()

	go func() {
		defer s.done.Done()
		ticker := time.NewTicker(s.cfg.DiscoveryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DiscoveryInterval)
				s.reg.Discover(ctx)
				cancel()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts all loops, clears the queue and closes the event feed.
// Safe to call twice.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.done.Wait()

		s.mu.Lock()
		s.queue = nil
		s.stopped = true
		s.mu.Unlock()

		close(s.events)
	})
}

// Tick drains one batch: jobs sorted by descending priority then
// insertion order, up to the batch size. While paused nothing is
// pulled. There is no cross-batch ordering guarantee.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	if s.paused || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}

	sort.SliceStable(s.queue, func(i, j int) bool {
		if s.queue[i].priority != s.queue[j].priority {
			return s.queue[i].priority > s.queue[j].priority
		}
		return s.queue[i].seq < s.queue[j].seq
	})

	n := s.cfg.BatchSize
	if n > len(s.queue) {
		n = len(s.queue)
	}
	batch := make([]job, n)
	copy(batch, s.queue[:n])
	s.queue = s.queue[n:]
	s.mu.Unlock()

	for _, j := range batch {
		s.process(j)
	}
}

// process executes one job. Every failure is swallowed here and
// recorded in the context's transfer history; jobs are never retried
// automatically (at-most-once per enqueue).
func (s *Scheduler) process(j job) {
	syncCtx, ok := s.store.Get(j.contextID)
	if !ok {
		log.Printf("Dropping sync job %s: context %s not found", j.id, j.contextID)
		return
	}
	target, ok := s.reg.Get(j.targetID)
	if !ok {
		log.Printf("Dropping sync job %s: device %s not found", j.id, j.targetID)
		return
	}

	origin := syncCtx.Metadata.CreatedOn

	if target.Status != models.StatusOnline {
		reason := "target device " + target.ID + " is " + string(target.Status)
		s.fail(j, syncCtx, origin, reason)
		return
	}

	if err := checkCompatibility(syncCtx.Type, target); err != nil {
		s.fail(j, syncCtx, origin, "incompatible target: "+err.Error())
		return
	}

	// The version current at dequeue time is what ships.
	env := transport.Envelope{
		ContextID: syncCtx.ID,
		Type:      syncCtx.Type,
		Version:   syncCtx.Metadata.Version,
		Checksum:  syncCtx.Metadata.Checksum,
		Payload:   syncCtx.Data,
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.TransferTimeout)
	err := s.transport.Send(ctx, env, target)
	cancel()
	if err != nil {
		s.fail(j, syncCtx, origin, "transfer failed: "+err.Error())
		return
	}

	if err := s.store.RecordSync(syncCtx.ID, origin, target.ID, env.Version); err != nil {
		log.Printf("Failed to record sync for job %s: %v", j.id, err)
		return
	}
	s.reg.Touch(target.ID)
	s.sessions.RecordActivity(target.ID)

	s.publish(SyncEvent{
		JobID:     j.id,
		ContextID: syncCtx.ID,
		DeviceID:  target.ID,
		Version:   env.Version,
		Success:   true,
		Timestamp: time.Now(),
	})
}

func (s *Scheduler) fail(j job, syncCtx *models.CrossDeviceContext, origin, reason string) {
	log.Printf("Sync job %s failed: %s", j.id, reason)
	if err := s.store.RecordFailure(syncCtx.ID, origin, j.targetID, reason); err != nil {
		log.Printf("Failed to record failure for job %s: %v", j.id, err)
	}
	s.publish(SyncEvent{
		JobID:     j.id,
		ContextID: syncCtx.ID,
		DeviceID:  j.targetID,
		Success:   false,
		Error:     reason,
		Timestamp: time.Now(),
	})
}

func (s *Scheduler) publish(event SyncEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	select {
	case s.events <- event:
	default:
	}
}
