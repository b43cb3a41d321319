package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/interfaces"
	"github.com/ternarybob/tailor/internal/models"
)

// Service sweeps expired sessions on a cron schedule. Deleting a session
// also removes its offloaded blobs, photos and generated PDFs.
type Service struct {
	storage interfaces.SessionStorage
	events  interfaces.EventService
	config  *common.Config
	logger  arbor.ILogger
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

func NewService(storage interfaces.SessionStorage, events interfaces.EventService, config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		events:  events,
		config:  config,
		logger:  logger,
		cron:    cron.New(),
	}
}

// Start schedules the sweep. A no-op when cleanup is disabled.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Cleanup.Enabled {
		s.logger.Info().Msg("Session cleanup disabled")
		return nil
	}
	if s.running {
		return fmt.Errorf("cleanup already running")
	}

	schedule := s.config.Cleanup.Schedule
	if schedule == "" {
		schedule = "0 * * * *"
	}

	if _, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("Session sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Str("schedule", schedule).Msg("Session cleanup scheduled")
	return nil
}

// Stop halts the scheduler, waiting for a running sweep to finish
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info().Msg("Session cleanup stopped")
}

// Sweep deletes every expired session and returns the number removed.
// Callable directly by the operator tool as well as from the schedule.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	expired, err := s.storage.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("list expired sessions: %w", err)
	}

	removed := 0
	for _, sessionID := range expired {
		if err := s.storage.Delete(ctx, sessionID); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Could not delete expired session")
			continue
		}
		removed++
		if s.events != nil {
			_ = s.events.Publish(ctx, models.Event{
				Type:      models.EventSessionExpired,
				SessionID: sessionID,
				Timestamp: time.Now().UTC(),
			})
		}
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Expired sessions swept")
	}
	return removed, nil
}
