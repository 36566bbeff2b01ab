package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"posterminal/internal/dto"
	"posterminal/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// QueuePrint holds documents whose print failed at the counter.
const QueuePrint = "jobs:print"

const (
	JobReceipt      = "receipt"
	JobCancellation = "cancellation"
	JobZReport      = "zreport"
)

// MaxPrintAttempts is how many spooled attempts a document gets before it is
// moved to the dead letter queue.
const MaxPrintAttempts = 5

// Job is the envelope of a spooled document.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Dispatcher pushes failed prints into a Redis list.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

func (d *Dispatcher) SpoolReceipt(ctx context.Context, r *dto.Receipt) error {
	return d.enqueue(ctx, JobReceipt, r)
}

func (d *Dispatcher) SpoolCancellation(ctx context.Context, r *dto.CancellationReceipt) error {
	return d.enqueue(ctx, JobCancellation, r)
}

func (d *Dispatcher) SpoolZReport(ctx context.Context, z *dto.ZReport) error {
	return d.enqueue(ctx, JobZReport, z)
}

func (d *Dispatcher) enqueue(ctx context.Context, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return push(ctx, d.rdb, Job{Type: jobType, Payload: data})
}

func push(ctx context.Context, rdb *redis.Client, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, QueuePrint, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines draining the print queue.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, printer infra.DocumentPrinter, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, printer, i)
	}
	log.Info().Msgf("print worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, printer infra.DocumentPrinter, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("print worker %d shutting down", id)
			return
		default:
			// Blocking pop; waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, QueuePrint).Result()
			if err != nil {
				continue
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, printer, result[1])
		}
	}
}

// processJob prints one spooled document. A failure is re-queued after a
// backoff until MaxPrintAttempts, then dead-lettered.
func processJob(ctx context.Context, rdb *redis.Client, printer infra.DocumentPrinter, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Err(err).Msg("failed to unmarshal print job")
		return
	}
	job.Attempts++

	err := printJob(ctx, printer, job)
	if err == nil {
		log.Info().Str("type", job.Type).Int("attempts", job.Attempts).Msg("spooled document printed")
		return
	}

	if job.Attempts >= MaxPrintAttempts {
		reason := fmt.Sprintf("max attempts (%d) exceeded: %s", MaxPrintAttempts, err.Error())
		if derr := deadLetter(context.Background(), rdb, job, reason); derr != nil {
			log.Error().Err(derr).Str("type", job.Type).Msg("failed to dead-letter print job")
		}
		return
	}

	log.Warn().Err(err).Str("type", job.Type).Int("attempts", job.Attempts).Msg("spooled print failed, retrying")
	select {
	case <-ctx.Done():
	case <-time.After(retryBackoff(job.Attempts)):
	}
	// Re-queue with a fresh context so a shutdown never drops the document.
	if err := push(context.Background(), rdb, job); err != nil {
		log.Error().Err(err).Str("type", job.Type).Msg("failed to re-queue print job")
	}
}

func printJob(ctx context.Context, printer infra.DocumentPrinter, job Job) error {
	switch job.Type {
	case JobReceipt:
		var r dto.Receipt
		if err := json.Unmarshal(job.Payload, &r); err != nil {
			return err
		}
		return printer.PrintReceipt(ctx, &r)
	case JobCancellation:
		var r dto.CancellationReceipt
		if err := json.Unmarshal(job.Payload, &r); err != nil {
			return err
		}
		return printer.PrintCancellation(ctx, &r)
	case JobZReport:
		var z dto.ZReport
		if err := json.Unmarshal(job.Payload, &z); err != nil {
			return err
		}
		return printer.PrintZReport(ctx, &z)
	default:
		return fmt.Errorf("unknown print job type %q", job.Type)
	}
}

// retryBackoff doubles from 2s and caps at one minute.
func retryBackoff(attempts int) time.Duration {
	d := 2 * time.Second
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= time.Minute {
			return time.Minute
		}
	}
	return d
}
