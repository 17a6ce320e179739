package jobqueue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/luminacursos/checkout/internal/pkg/database"
	"github.com/luminacursos/checkout/internal/pkg/env"
	"github.com/luminacursos/checkout/internal/pkg/invitations"
	"github.com/luminacursos/checkout/internal/pkg/metrics/counter"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue       *Queue
	retryTicker *time.Ticker
	flushTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := 5
		if v, err := strconv.Atoi(env.GetEnv("JOB_QUEUE_WORKER_COUNT", "5")); err == nil && v > 0 {
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

	retryInterval := 5 * time.Minute // Default fallback
	if v, err := strconv.Atoi(env.GetEnv("INVITATION_RETRY_INTERVAL", "5")); err == nil && v > 0 {
		retryInterval = time.Duration(v) * time.Minute
	}

	// Start invitation retry mechanism - configurable interval
	m.retryTicker = time.NewTicker(retryInterval)
	m.wg.Add(1)
	go m.retryWorker()

	// Flush funnel counters from Redis to the database once a minute
	m.flushTicker = time.NewTicker(time.Minute)
	m.wg.Add(1)
	go m.flushWorker()

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

	// Stop background tickers
	if m.retryTicker != nil {
		m.retryTicker.Stop()
	}
	if m.flushTicker != nil {
		m.flushTicker.Stop()
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

// retryWorker runs periodically to retry failed invitation deliveries
func (m *Manager) retryWorker() {
	defer m.wg.Done()
	log.Info("[JobQueue Manager] Started invitation retry worker")

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Invitation retry worker stopping")
			return
		case <-m.retryTicker.C:
			log.Debug("[JobQueue Manager] Running retry check for failed invitations")
			svc := invitations.NewServiceFromDB(database.GetDB())
			if err := svc.RetryFailed(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Error retrying failed invitations: %v", err)
			}
		}
	}
}

// flushWorker periodically drains the Redis funnel counters into the products table
func (m *Manager) flushWorker() {
	defer m.wg.Done()
	log.Info("[JobQueue Manager] Started counter flush worker")

	for {
		select {
		case <-m.stopCh:
			// Final drain so counts collected since the last tick survive shutdown.
			if err := counter.FlushAll(); err != nil {
				log.Errorf("[JobQueue Manager] Error flushing counters on shutdown: %v", err)
			}
			log.Info("[JobQueue Manager] Counter flush worker stopping")
			return
		case <-m.flushTicker.C:
			if err := counter.FlushAll(); err != nil {
				log.Errorf("[JobQueue Manager] Error flushing counters: %v", err)
			}
		}
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
