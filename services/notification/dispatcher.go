package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/upb/internship-placement/internal/observability"
	"github.com/upb/internship-placement/models"
	"github.com/upb/internship-placement/repositories"
	"github.com/upb/internship-placement/services"
	"go.uber.org/zap"
)

// Delivery channels reported to metrics
const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
)

// Event is a committed decision that the applicant must hear about
type Event struct {
	Application *models.Application
	Outcome     models.ApplicationStatus
}

// Config holds configuration for the Dispatcher
type Config struct {
	Workers         int           // Number of concurrent workers
	BufferSize      int           // Size of the event buffer channel
	DeliveryTimeout time.Duration // Upper bound for delivering one event
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		BufferSize:      256,
		DeliveryTimeout: 10 * time.Second,
	}
}

// Dispatcher delivers decision notifications in the background.
// Delivery is best effort: failures are logged and counted, never retried.
type Dispatcher struct {
	notifications repositories.NotificationRepository
	mailer        Mailer
	directory     CompanyDirectory
	metrics       *observability.Metrics
	logger        *zap.Logger
	cfg           Config

	events  chan Event
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	stopped bool

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewDispatcher creates a new Dispatcher instance
func NewDispatcher(
	notifications repositories.NotificationRepository,
	mailer Mailer,
	directory CompanyDirectory,
	metrics *observability.Metrics,
	logger *zap.Logger,
	cfg Config,
) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers < 1 {
		cfg.Workers = def.Workers
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = def.DeliveryTimeout
	}
	if directory == nil {
		directory = StaticDirectory{}
	}

	return &Dispatcher{
		notifications: notifications,
		mailer:        mailer,
		directory:     directory,
		metrics:       metrics,
		logger:        logger,
		cfg:           cfg,
		events:        make(chan Event, cfg.BufferSize),
	}
}

// Start starts the background workers
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return fmt.Errorf("notification dispatcher already started")
	}
	if d.stopped {
		return fmt.Errorf("notification dispatcher already stopped")
	}

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	d.started = true
	d.logger.Info("started notification dispatcher",
		zap.Int("worker_count", d.cfg.Workers),
		zap.Int("buffer_size", d.cfg.BufferSize))

	return nil
}

// Stop closes the queue and waits up to timeout for queued events to drain
func (d *Dispatcher) Stop(timeout time.Duration) error {
	d.mu.Lock()
	if !d.started || d.stopped {
		d.mu.Unlock()
		return fmt.Errorf("notification dispatcher not running")
	}
	d.stopped = true
	close(d.events)
	d.mu.Unlock()

	d.logger.Info("stopping notification dispatcher", zap.Int("pending_events", len(d.events)))

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("notification dispatcher stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("notification dispatcher stop timeout after %v", timeout)
	}
}

// Dispatch queues an event without blocking. A full queue drops the event.
func (d *Dispatcher) Dispatch(event Event) error {
	if event.Application == nil {
		return fmt.Errorf("notification event without application")
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.started || d.stopped {
		return fmt.Errorf("notification dispatcher not running")
	}

	select {
	case d.events <- event:
		return nil
	default:
		d.dropped.Add(1)
		d.metrics.RecordDropped()
		d.logger.Warn("notification queue full, dropping event",
			zap.String("application_id", event.Application.ID.String()),
			zap.String("outcome", string(event.Outcome)))
		return fmt.Errorf("notification buffer full")
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	d.logger.Debug("notification worker started", zap.Int("worker_id", id))

	for event := range d.events {
		if err := d.Deliver(context.Background(), event); err != nil {
			d.logger.Error("notification delivery incomplete",
				zap.Int("worker_id", id),
				zap.String("application_id", event.Application.ID.String()),
				zap.Error(err))
		}
	}

	d.logger.Debug("notification worker stopped", zap.Int("worker_id", id))
}

// Deliver runs both delivery steps for event. Each step gets its own
// DeliveryTimeout derived from ctx, so the email is attempted even when the
// in-app append fails or hangs. The returned error joins every failure.
func (d *Dispatcher) Deliver(ctx context.Context, event Event) error {
	app := event.Application
	if app == nil {
		return fmt.Errorf("notification event without application")
	}
	if event.Outcome != models.StatusAccepted && event.Outcome != models.StatusRejected {
		return services.NewDomainError(services.ErrorTypeValidation,
			fmt.Sprintf("no notification for status %q", event.Outcome), nil)
	}

	var errs []error
	for _, step := range []func(context.Context, Event) error{d.deliverInApp, d.deliverEmail} {
		if err := d.runStep(ctx, event, step); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		d.failed.Add(1)
		return errors.Join(errs...)
	}
	d.delivered.Add(1)
	return nil
}

func (d *Dispatcher) runStep(ctx context.Context, event Event, step func(context.Context, Event) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, d.cfg.DeliveryTimeout)
	defer cancel()
	return step(stepCtx, event)
}

func (d *Dispatcher) deliverInApp(ctx context.Context, event Event) error {
	app := event.Application
	n := models.NewStudentNotification(app.StudentID, app.ID,
		InAppMessage(event.Outcome, app.InternshipTitle, app.CompanyName))

	if err := d.notifications.Append(ctx, n); err != nil {
		d.metrics.RecordNotification(ChannelInApp, "failed")
		return services.NewDomainError(services.ErrorTypeNotificationDelivery, "in-app notification failed", err).
			WithDetail("channel", ChannelInApp)
	}
	d.metrics.RecordNotification(ChannelInApp, "delivered")
	return nil
}

func (d *Dispatcher) deliverEmail(ctx context.Context, event Event) error {
	app := event.Application

	contact, err := d.directory.ContactEmail(ctx, app.CompanyID)
	if err != nil {
		d.logger.Warn("company contact lookup failed",
			zap.String("company_id", app.CompanyID.String()),
			zap.Error(err))
		contact = ""
	}

	subject, body, err := RenderEmail(event.Outcome, EmailData{
		StudentName:     app.StudentName,
		InternshipTitle: app.InternshipTitle,
		CompanyName:     app.CompanyName,
		ContactEmail:    contact,
	})
	if err == nil {
		err = d.mailer.Send(ctx, Message{To: app.Email, Subject: subject, Body: body})
	}
	if err != nil {
		d.metrics.RecordNotification(ChannelEmail, "failed")
		return services.NewDomainError(services.ErrorTypeNotificationDelivery, "email notification failed", err).
			WithDetail("channel", ChannelEmail)
	}
	d.metrics.RecordNotification(ChannelEmail, "delivered")
	return nil
}

// Stats returns statistics about the dispatcher
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return Stats{
		BufferSize:    d.cfg.BufferSize,
		PendingEvents: len(d.events),
		WorkerCount:   d.cfg.Workers,
		Started:       d.started && !d.stopped,
		Delivered:     d.delivered.Load(),
		Failed:        d.failed.Load(),
		Dropped:       d.dropped.Load(),
	}
}

// Stats represents dispatcher statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
	Delivered     int64
	Failed        int64
	Dropped       int64
}
