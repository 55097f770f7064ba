// Package audit persists login outcomes asynchronously.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/upb/classroom/models"
	"github.com/upb/classroom/repositories"
)

var (
	// ErrNotStarted is returned when events are recorded before Start or after Stop
	ErrNotStarted = errors.New("audit service not running")

	// ErrBufferFull is returned when an event is dropped because workers are behind
	ErrBufferFull = errors.New("audit event buffer full")
)

// Config holds configuration for the Service
type Config struct {
	BufferSize    int
	WorkerCount   int
	InsertTimeout time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:    1000,
		WorkerCount:   2,
		InsertTimeout: 5 * time.Second,
	}
}

// Service writes auth events through a bounded worker pool
type Service struct {
	repo   repositories.AuthEventRepository
	logger *zap.Logger
	cfg    Config

	events chan *models.AuthEvent
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool

	dropped atomic.Int64
	written atomic.Int64
}

// NewService creates a new audit Service
func NewService(repo repositories.AuthEventRepository, logger *zap.Logger, cfg Config) *Service {
	defaults := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaults.BufferSize
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = defaults.WorkerCount
	}
	if cfg.InsertTimeout <= 0 {
		cfg.InsertTimeout = defaults.InsertTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:   repo,
		logger: logger,
		cfg:    cfg,
		events: make(chan *models.AuthEvent, cfg.BufferSize),
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.cfg.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.cfg.WorkerCount),
		zap.Int("buffer_size", s.cfg.BufferSize))
	return nil
}

// Stop refuses new events and waits for queued ones to be written
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.stopped = true
	pending := len(s.events)
	close(s.events)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", pending))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Record queues event without blocking; a full buffer drops it
func (s *Service) Record(event *models.AuthEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		return ErrNotStarted
	}

	select {
	case s.events <- event:
		return nil
	default:
		s.dropped.Add(1)
		s.logger.Warn("audit event buffer full, dropping event",
			zap.String("outcome", string(event.Outcome)),
			zap.String("reason", event.Reason))
		return ErrBufferFull
	}
}

// ListRecent reads the newest events straight from the repository
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*models.AuthEvent, error) {
	return s.repo.ListRecent(ctx, limit)
}

func (s *Service) worker(id int) {
	defer s.wg.Done()

	for event := range s.events {
		if err := s.write(event); err != nil {
			s.logger.Error("failed to persist auth event",
				zap.Int("worker_id", id),
				zap.String("event_id", event.ID.String()),
				zap.Error(err))
			continue
		}
		s.written.Add(1)
	}
}

func (s *Service) write(event *models.AuthEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.InsertTimeout)
	defer cancel()

	if err := s.repo.Insert(ctx, event); err != nil {
		return fmt.Errorf("failed to insert auth event: %w", err)
	}
	return nil
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int   `json:"buffer_size"`
	PendingEvents int   `json:"pending_events"`
	WorkerCount   int   `json:"worker_count"`
	Started       bool  `json:"started"`
	Dropped       int64 `json:"dropped"`
	Written       int64 `json:"written"`
}

// GetStats returns statistics about the audit service
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.cfg.BufferSize,
		PendingEvents: len(s.events),
		WorkerCount:   s.cfg.WorkerCount,
		Started:       s.started && !s.stopped,
		Dropped:       s.dropped.Load(),
		Written:       s.written.Load(),
	}
}
