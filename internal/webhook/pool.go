package webhook

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/open-apime/evomanager/internal/metrics"
	"github.com/open-apime/evomanager/internal/pkg/queue"
)

type EventApplier interface {
	Apply(ctx context.Context, event queue.Event) (string, error)
}

// Pool consome a fila de callbacks e distribui os eventos entre workers.
type Pool struct {
	queue   queue.Queue
	applier EventApplier
	metrics *metrics.Collector
	log     *zap.Logger

	numWorkers int
	taskChan   chan *queue.Event
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewPool(q queue.Queue, applier EventApplier, m *metrics.Collector, log *zap.Logger, numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	return &Pool{
		queue:      q,
		applier:    applier,
		metrics:    m,
		log:        log,
		numWorkers: numWorkers,
		taskChan:   make(chan *queue.Event, numWorkers*2),
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.log.Info("webhook pool: iniciando", zap.Int("workers", p.numWorkers))

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}

	p.wg.Add(1)
	go p.runDispatcher()
}

func (p *Pool) Stop() {
	if p.cancel == nil {
		return
	}
	p.log.Info("webhook pool: encerrando")
	p.cancel()
	p.wg.Wait()
	p.log.Info("webhook pool: encerrada")
}

func (p *Pool) runDispatcher() {
	defer p.wg.Done()

	for {
		if p.ctx.Err() != nil {
			return
		}

		event, err := p.queue.Dequeue(p.ctx, time.Second)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || p.ctx.Err() != nil {
				return
			}
			p.log.Error("webhook pool: erro ao desenfileirar", zap.Error(err))
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if event == nil {
			continue
		}

		if size, err := p.queue.Size(p.ctx); err == nil {
			p.metrics.SetWebhookQueueSize(size)
		}

		select {
		case p.taskChan <- event:
		case <-p.ctx.Done():
			return
		case <-time.After(5 * time.Second):
			p.metrics.WebhookEvent(event.Type, OutcomeDropped)
			p.log.Warn("webhook pool: workers ocupados, descartando evento", zap.String("event_id", event.ID))
		}
	}
}

func (p *Pool) runWorker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case event := <-p.taskChan:
			p.process(id, event)
		}
	}
}

func (p *Pool) process(workerID int, event *queue.Event) {
	ctx, cancel := context.WithTimeout(p.ctx, 10*time.Second)
	defer cancel()

	outcome, err := p.applier.Apply(ctx, *event)
	p.metrics.WebhookEvent(event.Type, outcome)
	if err != nil {
		p.log.Warn("webhook pool: evento descartado",
			zap.Int("worker_id", workerID),
			zap.String("event_id", event.ID),
			zap.String("client_id", event.ClientID),
			zap.String("instance", event.InstanceName),
			zap.String("type", event.Type),
			zap.Error(err),
		)
		return
	}
	p.log.Debug("webhook pool: evento processado",
		zap.Int("worker_id", workerID),
		zap.String("event_id", event.ID),
		zap.String("outcome", outcome),
	)
}
