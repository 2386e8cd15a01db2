// Package reminder schedules one-shot reminder deliveries. Jobs live only
// in process memory; delivery is fire-and-forget to the origin chat and a
// failed send is logged, never retried.
package reminder

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// SendFunc delivers one reminder text to a chat.
type SendFunc func(chatID int64, text string) error

type Scheduler struct {
	scheduler gocron.Scheduler
	send      SendFunc
	logger    *zap.Logger
}

func NewScheduler(send SendFunc, logger *zap.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{
		scheduler: s,
		send:      send,
		logger:    logger,
	}, nil
}

// Start begins running scheduled jobs in the background. Jobs fire on the
// scheduler's own goroutines and never block message handling.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop shuts the scheduler down; pending reminders are dropped.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

// Schedule registers a one-shot reminder for chatID at the given time and
// returns the job name.
func (s *Scheduler) Schedule(chatID int64, at time.Time, text string) (string, error) {
	name := fmt.Sprintf("reminder_%d_%d", chatID, time.Now().Unix())

	_, err := s.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(at)),
		gocron.NewTask(func() {
			if err := s.send(chatID, "⏰ Reminder:\n"+text); err != nil {
				s.logger.Error("failed to send reminder",
					zap.Error(err),
					zap.Int64("chat_id", chatID),
					zap.String("job", name))
			}
		}),
		gocron.WithName(name),
	)
	if err != nil {
		return "", fmt.Errorf("schedule reminder: %w", err)
	}

	return name, nil
}
