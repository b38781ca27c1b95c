package webhook

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// AsyncConfig sizes the delivery queue and worker pool.
type AsyncConfig struct {
	QueueSize int
	Workers   int
}

// AsyncProcessor decouples the webhook HTTP response from pipeline
// work: deliveries are queued and the endpoint answers 200 before any
// of the downstream GitHub/AI calls run.
type AsyncProcessor struct {
	processor *Processor
	jobs      chan job

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type job struct {
	eventType  string
	payload    []byte
	deliveryID string
}

// NewAsyncProcessor starts the worker pool.
func NewAsyncProcessor(processor *Processor, cfg AsyncConfig) *AsyncProcessor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &AsyncProcessor{
		processor: processor,
		jobs:      make(chan job, cfg.QueueSize),
		cancel:    cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	return p
}

// Enqueue accepts a verified delivery for asynchronous processing. A
// full queue is reported to the caller; GitHub will redeliver.
func (p *AsyncProcessor) Enqueue(ctx context.Context, eventType string, payload []byte, deliveryID string) error {
	_ = ctx
	if p.processor == nil {
		return errors.New("webhook processor is nil")
	}

	j := job{eventType: eventType, payload: append([]byte(nil), payload...), deliveryID: deliveryID}

	select {
	case p.jobs <- j:
		return nil
	default:
		log.Printf("webhook queue full, dropping delivery %s", deliveryID)
		return errors.New("webhook queue full")
	}
}

// Stop shuts the workers down, waiting up to the context deadline.
func (p *AsyncProcessor) Stop(ctx context.Context) error {
	p.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("stop webhook workers: %w", ctx.Err())
	case <-done:
		return nil
	}
}

func (p *AsyncProcessor) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.jobs:
			// Deliveries run detached from the worker's shutdown
			// context; an in-flight review finishes or fails on its
			// own terms.
			if err := p.processor.Process(context.Background(), j.eventType, j.payload, j.deliveryID); err != nil {
				log.Printf("webhook delivery %s: %v", j.deliveryID, err)
			}
		}
	}
}
