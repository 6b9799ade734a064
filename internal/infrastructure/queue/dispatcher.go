package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/medivex/identity-service/internal/core/domain"
	"github.com/medivex/identity-service/internal/core/ports"
)

const (
	defaultWorkers = 2
	channelBuffer  = 256
	sendTimeout    = 15 * time.Second
)

// ErrQueueFull is returned by Notify when the recipient's worker is saturated.
var ErrQueueFull = errors.New("notification queue full")

// Dispatcher delivers notifications in the background through a Mailer. Work
// is sharded by recipient so mails to one address keep their order.
type Dispatcher struct {
	workers []chan domain.Notification
	mailer  ports.Mailer
	log     zerolog.Logger
	wg      sync.WaitGroup
}

var _ ports.Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, mailer ports.Mailer, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.Notification, numWorkers),
		mailer:  mailer,
		log:     log.With().Str("component", "mail_dispatcher").Logger(),
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.Notification, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Notify queues n without blocking. A full queue drops the message.
func (d *Dispatcher) Notify(_ context.Context, n domain.Notification) error {
	idx := d.shardIndex(n.To)
	select {
	case d.workers[idx] <- n:
		notificationQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return nil
	default:
		notificationsTotal.WithLabelValues(string(n.Kind), "dropped").Inc()
		return ErrQueueFull
	}
}

// shardIndex maps a recipient deterministically to a worker index.
func (d *Dispatcher) shardIndex(recipient string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(recipient)))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.Notification) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			notificationQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			d.deliver(ctx, id, n)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, worker int, n domain.Notification) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	start := time.Now()
	err := d.mailer.Send(sendCtx, n)
	notificationSendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		notificationsTotal.WithLabelValues(string(n.Kind), "failed").Inc()
		d.log.Error().Err(err).
			Str("kind", string(n.Kind)).
			Int("worker_id", worker).
			Msg("notification delivery failed")
		return
	}
	notificationsTotal.WithLabelValues(string(n.Kind), "sent").Inc()
}
