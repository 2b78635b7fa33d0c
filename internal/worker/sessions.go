package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/seminar-portal/internal/models"
	"github.com/aura-webinar/seminar-portal/pkg/queue"
)

// JobSource is the job queue the processor consumes. *queue.Queue implements it.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// SessionCloser applies a viewer detach. *sessionlog.Tracker implements it.
type SessionCloser interface {
	Detach(ctx context.Context, sessionID uuid.UUID, leftAt time.Time) (*models.ViewerSession, error)
}

// SessionProcessor closes viewing sessions from queued leave beacons.
type SessionProcessor struct {
	source  JobSource
	closer  SessionCloser
	logger  *zap.Logger
	backoff time.Duration
}

// NewSessionProcessor creates a session close processor.
func NewSessionProcessor(source JobSource, closer SessionCloser, logger *zap.Logger) *SessionProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionProcessor{source: source, closer: closer, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one session close job. A session that no longer exists is not retried.
func (p *SessionProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := job.SessionClose()
	if err != nil {
		return err
	}
	s, err := p.closer.Detach(ctx, payload.SessionID, payload.LeftAt)
	if errors.Is(err, models.ErrNotFound) {
		p.logger.Info("session already gone", zap.String("session_id", payload.SessionID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("close session %s: %w", payload.SessionID, err)
	}
	fields := []zap.Field{zap.String("session_id", s.ID.String())}
	if s.DurationSeconds != nil {
		fields = append(fields, zap.Int64("duration_seconds", *s.DurationSeconds))
	}
	p.logger.Debug("session closed", fields...)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *SessionProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("session worker stopping")
			return
		default:
		}

		job, _, err := p.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.source.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *SessionProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
