package jobqueue

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/BotPilotHQ/botpilot/internal/pkg/env"
	metrics "github.com/BotPilotHQ/botpilot/internal/pkg/metrics/counter"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue              *Queue
	counterFlushTicker *time.Ticker
	reconcileTicker    *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool

	// reconcileSource lists the bot UUIDs whose cached status should be
	// refreshed on each sweep. Wired at startup.
	reconcileSource func() ([]string, error)
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := 3
		if v, err := strconv.Atoi(env.GetEnv("JOB_QUEUE_WORKERS", "3")); err == nil && v > 0 {
			workerCount = v
		}

		globalManager = &Manager{
			queue:  NewQueue(workerCount),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// SetReconcileSource wires the bot listing used by the periodic status
// reconcile sweep. Must be called before Start.
func (m *Manager) SetReconcileSource(fn func() ([]string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconcileSource = fn
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	// Start the job queue
	m.queue.Start()

	// Start counter flush worker (Redis -> DB) every 5 seconds
	m.counterFlushTicker = time.NewTicker(5 * time.Second)
	m.wg.Add(1)
	go m.counterFlushWorker()

	// Periodic status reconcile sweep
	reconcileInterval := 5 * time.Minute
	if v, err := strconv.Atoi(env.GetEnv("STATUS_RECONCILE_INTERVAL_MINUTES", "5")); err == nil && v > 0 {
		reconcileInterval = time.Duration(v) * time.Minute
	}
	m.reconcileTicker = time.NewTicker(reconcileInterval)
	m.wg.Add(1)
	go m.reconcileWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}
	if m.reconcileTicker != nil {
		m.reconcileTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	// Stop the job queue
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// counterFlushWorker periodically flushes in-memory counters from Redis to DB
func (m *Manager) counterFlushWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[JobQueue Manager] Counter flush error: %v", err)
			}
		}
	}
}

// reconcileWorker periodically enqueues a status refresh for every tracked
// bot so cached statuses cannot drift from the runner forever.
func (m *Manager) reconcileWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Reconcile worker stopping")
			return
		case <-m.reconcileTicker.C:
			if err := m.runReconcileSweepOnce(); err != nil {
				log.Errorf("[JobQueue Manager] Reconcile sweep error: %v", err)
			}
		}
	}
}

func (m *Manager) runReconcileSweepOnce() error {
	if m.reconcileSource == nil {
		return nil
	}
	uuids, err := m.reconcileSource()
	if err != nil {
		return err
	}
	for _, id := range uuids {
		if _, err := m.queue.EnqueueStatusReconcile(id); err != nil {
			log.Errorf("[JobQueue Manager] Failed to enqueue reconcile for bot %s: %v", id, err)
		}
	}
	return nil
}

// RunReconcileSweepOnce exposes a manual trigger for a single sweep (admin use).
func (m *Manager) RunReconcileSweepOnce() error {
	return m.runReconcileSweepOnce()
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
