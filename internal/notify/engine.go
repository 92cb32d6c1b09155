package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/models"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/retry"
)

// Sender performs a single delivery attempt.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type EngineConfig struct {
	RateLimitPerSec float64
	MaxConcurrency  int
	Retry           retry.Policy
	SendTimeout     time.Duration
}

// Engine fans a message out to many subscribers. The limiter and semaphore are
// shared by every delivery of every broadcast.
type Engine struct {
	sender      Sender
	composer    Composer
	limiter     *rate.Limiter
	sem         *semaphore.Weighted
	retry       retry.Policy
	sendTimeout time.Duration
	logger      *zap.Logger
}

func NewEngine(sender Sender, composer Composer, cfg EngineConfig, logger *zap.Logger) *Engine {
	rps := cfg.RateLimitPerSec
	if rps <= 0 {
		rps = 1
	}
	conc := cfg.MaxConcurrency
	if conc <= 0 {
		conc = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		sender:      sender,
		composer:    composer,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		sem:         semaphore.NewWeighted(int64(conc)),
		retry:       cfg.Retry,
		sendTimeout: cfg.SendTimeout,
		logger:      logger,
	}
}

// Broadcast delivers the transition to every subscriber with notifications on.
// Deliveries outlive ctx cancellation so shutdown drains them.
func (e *Engine) Broadcast(ctx context.Context, transition, previous *models.StatusEvent, subscribers []models.Subscriber) FanoutReport {
	if transition == nil {
		return FanoutReport{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	}
	rendered := e.composer.Render(transition, previous, subscribers)
	report := e.fanout(ctx, subscribers, rendered.Message)
	report.EventID = transition.ID
	e.logger.Info("broadcast finished",
		zap.String("run_id", report.RunID),
		zap.Uint64("event_id", transition.ID),
		zap.Bool("value", transition.Value),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", report.Duration),
	)
	return report
}

// BroadcastText sends an arbitrary plain-text announcement.
func (e *Engine) BroadcastText(ctx context.Context, text string, subscribers []models.Subscriber) FanoutReport {
	report := e.fanout(ctx, subscribers, func(sub models.Subscriber) Message {
		return Message{ChatID: sub.ID, Text: text, ParseMode: ParseModePlain}
	})
	e.logger.Info("announcement finished",
		zap.String("run_id", report.RunID),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	return report
}

type outcome struct {
	subscriberID int64
	attempts     int
	err          error
}

func (e *Engine) fanout(ctx context.Context, subscribers []models.Subscriber, build func(models.Subscriber) Message) FanoutReport {
	report := FanoutReport{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	dctx := context.WithoutCancel(ctx)

	results := make(chan outcome, len(subscribers))
	var wg sync.WaitGroup
	for _, sub := range subscribers {
		if !sub.NotifsEnabled {
			report.Skipped++
			continue
		}
		report.Total++
		wg.Add(1)
		go func(sub models.Subscriber) {
			defer wg.Done()
			results <- e.deliver(dctx, sub, build)
		}(sub)
	}
	wg.Wait()
	close(results)

	for res := range results {
		report.Attempts += res.attempts
		if res.err == nil {
			report.Succeeded++
			continue
		}
		report.Failed++
		report.Failures = append(report.Failures, DeliveryFailure{
			SubscriberID: res.subscriberID,
			Reason:       res.err.Error(),
			Attempts:     res.attempts,
		})
	}
	report.Duration = time.Since(report.StartedAt)
	return report
}

func (e *Engine) deliver(ctx context.Context, sub models.Subscriber, build func(models.Subscriber) Message) (out outcome) {
	subscriberID := sub.ID
	out.subscriberID = subscriberID
	defer func() {
		if r := recover(); r != nil {
			out.err = fmt.Errorf("panic: %v", r)
			e.logger.Error("delivery panicked", zap.Int64("subscriber_id", subscriberID), zap.Any("panic", r))
		}
	}()

	if e.sender == nil {
		out.err = fmt.Errorf("no sender configured")
		return out
	}

	msg := build(sub)

	policy := e.retry
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		e.logger.Warn("delivery attempt failed, retrying",
			zap.Int64("subscriber_id", subscriberID),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	out.attempts, out.err = retry.Do(ctx, policy, func(ctx context.Context) error {
		return e.attempt(ctx, msg)
	})
	if out.err != nil {
		e.logger.Error("delivery failed",
			zap.Int64("subscriber_id", subscriberID),
			zap.Int("attempts", out.attempts),
			zap.Error(out.err),
		)
	}
	return out
}

// attempt holds one concurrency slot and one rate token for a single send.
func (e *Engine) attempt(ctx context.Context, msg Message) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.sem.Release(1)
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	sendCtx := ctx
	if e.sendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, e.sendTimeout)
		defer cancel()
	}
	return e.sender.Send(sendCtx, msg)
}
