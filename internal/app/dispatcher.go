package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/daisymeal/cyberdefense/internal/domain"
	"github.com/daisymeal/cyberdefense/internal/ports"
)

// AlertDispatcher fans alerts out to alerters and subscribers on its own
// goroutine, so a slow sink never holds up an inspection.
//
// Publish never blocks: when the queue is full the alert is dropped and
// counted.
type AlertDispatcher struct {
	alerters    []ports.Alerter
	subscribers []ports.AlertSubscriber
	queue       chan *domain.Alert

	published atomic.Int64
	dropped   atomic.Int64

	wg       sync.WaitGroup
	stopOnce sync.Once
	running  bool
	stopped  bool
	mu       sync.RWMutex
}

func NewAlertDispatcher(bufferSize int, alerters ...ports.Alerter) *AlertDispatcher {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &AlertDispatcher{
		alerters: alerters,
		queue:    make(chan *domain.Alert, bufferSize),
	}
}

func (d *AlertDispatcher) AddSubscriber(sub ports.AlertSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, sub)
}

// Start is a no-op once the dispatcher has been stopped.
func (d *AlertDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running || d.stopped {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run(ctx)

	log.Info().
		Int("alerters", len(d.alerters)).
		Int("buffer", cap(d.queue)).
		Msg("Alert dispatcher started")
}

// run drains the queue until Stop closes it. Alerts already queued when ctx
// ends are still delivered.
func (d *AlertDispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for alert := range d.queue {
		d.deliver(ctx, alert)
	}
}

func (d *AlertDispatcher) deliver(ctx context.Context, alert *domain.Alert) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("alert_id", alert.ID).
				Msg("Alert delivery panic recovered")
		}
	}()

	for _, alerter := range d.alerters {
		if err := alerter.Send(ctx, alert); err != nil {
			log.Debug().Err(err).Str("alert_id", alert.ID).Msg("Alert send failed")
		}
	}

	d.mu.RLock()
	subs := d.subscribers
	d.mu.RUnlock()
	for _, sub := range subs {
		sub.OnAlert(alert)
	}
}

// Publish queues an alert. It returns false when the dispatcher is not
// running or the queue is full.
func (d *AlertDispatcher) Publish(alert *domain.Alert) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.running {
		d.dropped.Add(1)
		return false
	}

	select {
	case d.queue <- alert:
		d.published.Add(1)
		return true
	default:
		d.dropped.Add(1)
		log.Warn().Str("alert_id", alert.ID).Msg("Alert queue full, dropping alert")
		return false
	}
}

// Stop delivers whatever is queued, then flushes and closes every alerter.
func (d *AlertDispatcher) Stop() error {
	var errs []error
	d.stopOnce.Do(func() {
		d.mu.Lock()
		wasRunning := d.running
		d.running = false
		d.stopped = true
		close(d.queue)
		d.mu.Unlock()

		if wasRunning {
			d.wg.Wait()
		}

		for _, alerter := range d.alerters {
			if err := alerter.Flush(); err != nil {
				errs = append(errs, err)
			}
			if err := alerter.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		log.Info().
			Int64("published", d.published.Load()).
			Int64("dropped", d.dropped.Load()).
			Msg("Alert dispatcher stopped")
	})
	return errors.Join(errs...)
}

func (d *AlertDispatcher) Published() int64 {
	return d.published.Load()
}

func (d *AlertDispatcher) Dropped() int64 {
	return d.dropped.Load()
}

func (d *AlertDispatcher) QueueLength() int {
	return len(d.queue)
}

func (d *AlertDispatcher) QueueCapacity() int {
	return cap(d.queue)
}
