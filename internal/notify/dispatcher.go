package notify

import (
	"context"
	"sync"
	"time"

	"github.com/CodeShali/scalp-bot/internal/logger"
	"github.com/CodeShali/scalp-bot/internal/store/eventlog"
)

const queueSize = 64

// Dispatcher queues events and delivers them on a background
// goroutine. Publish never blocks: when the queue is full the event is
// dropped (and logged), because trading must not wait on Discord.
type Dispatcher struct {
	sinks   []TextSink
	journal *eventlog.Store

	ch     chan Event
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewDispatcher wires sinks and an optional journal. A nil journal
// disables journaling.
func NewDispatcher(journal *eventlog.Store, sinks ...TextSink) *Dispatcher {
	return &Dispatcher{
		sinks:   sinks,
		journal: journal,
		ch:      make(chan Event, queueSize),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the delivery loop.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop drains queued events and waits for delivery to finish.
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.stopCh) })
	d.wg.Wait()
}

// Publish enqueues an event. Never blocks.
func (d *Dispatcher) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	select {
	case d.ch <- evt:
	default:
		logger.Warnf("notify: queue full, dropping %s event", evt.Kind)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case evt := <-d.ch:
			d.deliver(evt)
		case <-d.stopCh:
			// Drain what is already queued.
			for {
				select {
				case evt := <-d.ch:
					d.deliver(evt)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(evt Event) {
	if d.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.journal.Append(ctx, string(evt.Kind), evt.Symbol, evt.Payload); err != nil {
			logger.Warnf("notify: journal %s: %v", evt.Kind, err)
		}
		cancel()
	}
	for _, sink := range d.sinks {
		if err := sink.SendText(evt.Text); err != nil {
			logger.Warnf("notify: %s delivery failed for %s: %v", sink.Name(), evt.Kind, err)
		}
	}
}
