package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/liveness"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/models"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/notify"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/repository"
)

type State int32

const (
	StateIdle State = iota
	StateSampling
	StateDetecting
	StateBroadcasting
)

func (s State) String() string {
	switch s {
	case StateSampling:
		return "SAMPLING"
	case StateDetecting:
		return "DETECTING"
	case StateBroadcasting:
		return "BROADCASTING"
	default:
		return "IDLE"
	}
}

// Cursor is the id of the last event already broadcast for the driver's label.
type Cursor struct {
	EventID     uint64
	Initialized bool
}

type TransitionDetector interface {
	DetectAndRecord(ctx context.Context, label string, raw bool) (*models.StatusEvent, error)
}

type EventReader interface {
	LatestStatusEvent(ctx context.Context, label string) (*models.StatusEvent, error)
	PreviousStatusEvent(ctx context.Context, label string, beforeID uint64) (*models.StatusEvent, error)
}

type SubscriberLister interface {
	ListNotifiableSubscribers(ctx context.Context) ([]models.Subscriber, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, transition, previous *models.StatusEvent, subscribers []models.Subscriber) notify.FanoutReport
}

// TickReport describes what one tick did.
type TickReport struct {
	Sample    liveness.SampleResult
	Recorded  *models.StatusEvent
	Broadcast *notify.FanoutReport
	Cursor    Cursor
}

// Driver runs one sample, detect and broadcast cycle per Tick. Cursors is
// optional; when set the cursor is mirrored to the database after each tick.
type Driver struct {
	Label        string
	Source       liveness.Source
	Detector     TransitionDetector
	Events       EventReader
	Subscribers  SubscriberLister
	Fanout       Broadcaster
	Cursors      repository.CursorRepository
	ResumeCursor bool
	Logger       *zap.Logger
	Now          func() time.Time

	state atomic.Int32
}

func (d *Driver) State() State {
	return State(d.state.Load())
}

func (d *Driver) setState(s State) {
	d.state.Store(int32(s))
}

func (d *Driver) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Driver) log() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// Tick never panics. On error the returned cursor is the best known value and
// should still replace the caller's copy.
func (d *Driver) Tick(ctx context.Context, cur Cursor) (next Cursor, rep TickReport, err error) {
	next = cur
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
		rep.Cursor = next
		d.setState(StateIdle)
	}()
	if d.Source == nil || d.Detector == nil || d.Events == nil {
		return next, rep, errors.New("driver is not configured")
	}

	now := d.now()
	if !next.Initialized {
		next, err = d.initCursor(ctx)
		if err != nil {
			return cur, rep, fmt.Errorf("init cursor: %w", err)
		}
		d.log().Info("cursor initialized", zap.String("label", d.Label), zap.Uint64("event_id", next.EventID))
	}

	d.setState(StateSampling)
	rep.Sample, err = d.Source.Sample(ctx, now)
	if err != nil {
		return next, rep, fmt.Errorf("sample: %w", err)
	}
	if rep.Sample.Skipped {
		d.log().Debug("sample skipped", zap.String("label", d.Label), zap.String("reason", rep.Sample.Reason))
		return next, rep, nil
	}

	d.setState(StateDetecting)
	rep.Recorded, err = d.Detector.DetectAndRecord(ctx, d.Label, rep.Sample.Powered)
	if err != nil {
		return next, rep, fmt.Errorf("detect: %w", err)
	}
	if rep.Recorded != nil {
		d.log().Info("transition recorded",
			zap.String("label", d.Label),
			zap.Uint64("event_id", rep.Recorded.ID),
			zap.Bool("value", rep.Recorded.Value),
			zap.String("reason", rep.Sample.Reason),
		)
	}

	latest, err := d.Events.LatestStatusEvent(ctx, d.Label)
	if err != nil {
		return next, rep, fmt.Errorf("latest event: %w", err)
	}
	if latest == nil || latest.ID == next.EventID {
		d.persist(ctx, next, now, nil)
		return next, rep, nil
	}

	d.setState(StateBroadcasting)
	previous, err := d.Events.PreviousStatusEvent(ctx, d.Label, latest.ID)
	if err != nil {
		return next, rep, fmt.Errorf("previous event: %w", err)
	}
	if previous != nil && previous.Value == latest.Value {
		d.log().Warn("latest event repeats previous value, not broadcasting", zap.Uint64("event_id", latest.ID))
		next.EventID = latest.ID
		d.persist(ctx, next, now, nil)
		return next, rep, nil
	}
	var subscribers []models.Subscriber
	if d.Subscribers != nil {
		subscribers, err = d.Subscribers.ListNotifiableSubscribers(ctx)
		if err != nil {
			return next, rep, fmt.Errorf("list subscribers: %w", err)
		}
	}
	if d.Fanout != nil {
		report := d.Fanout.Broadcast(ctx, latest, previous, subscribers)
		rep.Broadcast = &report
	}

	next.EventID = latest.ID
	d.persist(ctx, next, now, rep.Broadcast)
	return next, rep, nil
}

func (d *Driver) initCursor(ctx context.Context) (Cursor, error) {
	if d.ResumeCursor && d.Cursors != nil {
		row, err := d.Cursors.GetNotificationCursor(ctx, d.Label)
		if err != nil {
			return Cursor{}, err
		}
		if row != nil {
			return Cursor{EventID: row.EventID, Initialized: true}, nil
		}
	}
	latest, err := d.Events.LatestStatusEvent(ctx, d.Label)
	if err != nil {
		return Cursor{}, err
	}
	if latest == nil {
		return Cursor{Initialized: true}, nil
	}
	return Cursor{EventID: latest.ID, Initialized: true}, nil
}

func (d *Driver) persist(ctx context.Context, cur Cursor, at time.Time, report *notify.FanoutReport) {
	if d.Cursors == nil {
		return
	}
	row := &models.NotificationCursor{
		Label:         d.Label,
		EventID:       cur.EventID,
		LastAttemptAt: &at,
	}
	if report != nil {
		row.LastBroadcastAt = &at
		row.Report = report.JSON()
		if report.Failed > 0 {
			msg := fmt.Sprintf("%d of %d deliveries failed", report.Failed, report.Total)
			row.LastError = &msg
		}
	}
	if err := d.Cursors.SaveNotificationCursor(ctx, row); err != nil {
		d.log().Warn("persist cursor failed", zap.String("label", d.Label), zap.Error(err))
	}
}
