/**
 * @description
 * This package implements the durable settlement work queue that decouples
 * webhook receipt from ledger mutation. Jobs ride a durable RabbitMQ queue;
 * a Redis key per payment reference collapses duplicate enqueues so at most
 * one job per reference is queued or in flight at a time. Failed jobs are
 * retried per a declarative policy and parked on a failed-jobs queue once
 * attempts are exhausted.
 *
 * @dependencies
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 * - github.com/redis/go-redis/v9: Job-id deduplication keys.
 */
package settlementqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/payvault/wallet-service/internal/domain"
)

// RetryPolicy controls how a job is retried after a handler error. It is
// attached once when the queue is constructed rather than scattered through
// handler code.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	JobTimeout  time.Duration
}

// ExponentialBackoff returns a backoff function that doubles from base per
// attempt, capped at max.
func ExponentialBackoff(base, max time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := base << (attempt - 1)
		if d > max || d <= 0 {
			return max
		}
		return d
	}
}

// DefaultRetryPolicy mirrors the queue settings the funding pipeline was
// tuned for: three attempts with growing delays and a generous per-job budget.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     ExponentialBackoff(2*time.Second, 2*time.Minute),
		JobTimeout:  5 * time.Minute,
	}
}

// publisher is the slice of *amqp.Channel the queue publishes through.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// dedupStore is the slice of the Redis client used for job-id deduplication.
type dedupStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Queue is a settlement job queue backed by RabbitMQ with Redis-based
// job-id deduplication. The job id is the payment reference.
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	pub     publisher
	redis   dedupStore
	name    string
	policy  RetryPolicy

	dedupPrefix string
	dedupTTL    time.Duration
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	parsed, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// New connects to RabbitMQ and declares the durable settlement queue, its
// retry companion, and its failed-jobs companion. rdb may be nil, in which
// case enqueue deduplication degrades to the worker-side idempotency check
// alone.
func New(amqpURL, queueName string, rdb redis.UniversalClient, policy RetryPolicy) (*Queue, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// Bounded dial timeout so startup does not hang indefinitely.
	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	q := &Queue{
		conn:        conn,
		channel:     ch,
		pub:         ch,
		redis:       rdb,
		name:        queueName,
		policy:      policy,
		dedupPrefix: "settlement:job",
		dedupTTL:    24 * time.Hour,
	}
	if q.policy.MaxAttempts < 1 {
		q.policy.MaxAttempts = 1
	}
	if q.policy.Backoff == nil {
		q.policy.Backoff = ExponentialBackoff(2*time.Second, 2*time.Minute)
	}
	if q.policy.JobTimeout <= 0 {
		q.policy.JobTimeout = 5 * time.Minute
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		q.Close()
		return nil, err
	}
	// Retried jobs wait out their backoff here via per-message TTL and
	// dead-letter back into the work queue, so one failing job never stalls
	// the consumer for unrelated references.
	if _, err := ch.QueueDeclare(q.retryQueueName(), true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queueName,
	}); err != nil {
		q.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(q.failedQueueName(), true, false, false, false, nil); err != nil {
		q.Close()
		return nil, err
	}

	return q, nil
}

func (q *Queue) failedQueueName() string {
	return q.name + ".failed"
}

func (q *Queue) retryQueueName() string {
	return q.name + ".retry"
}

func (q *Queue) dedupKey(reference string) string {
	return fmt.Sprintf("%s:%s", q.dedupPrefix, reference)
}

// Enqueue submits a settlement job keyed by its payment reference. A job that
// is already queued or in flight for the same reference collapses into the
// existing one and Enqueue returns nil.
func (q *Queue) Enqueue(ctx context.Context, job domain.SettlementJob) error {
	if strings.TrimSpace(job.Reference) == "" {
		return errors.New("settlement job requires a reference")
	}

	if q.redis != nil {
		acquired, err := q.redis.SetNX(ctx, q.dedupKey(job.Reference), "1", q.dedupTTL).Result()
		if err != nil {
			return fmt.Errorf("settlement dedup check: %w", err)
		}
		if !acquired {
			log.Printf("level=info component=settlement_queue msg=\"duplicate job collapsed\" reference=%s", job.Reference)
			return nil
		}
	}

	if job.Attempt < 1 {
		job.Attempt = 1
	}

	if err := q.publish(ctx, q.name, job, 0); err != nil {
		q.releaseJob(context.Background(), job.Reference)
		return err
	}
	return nil
}

// publish sends a job to the named queue via the default exchange. A non-zero
// delay becomes a per-message TTL, which only the retry queue's dead-letter
// configuration turns back into a delivery.
func (q *Queue) publish(ctx context.Context, queueName string, job domain.SettlementJob, delay time.Duration) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("settlement job marshal: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.Reference,
		Timestamp:    time.Now(),
		Body:         body,
	}
	if delay > 0 {
		msg.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}
	return q.pub.PublishWithContext(ctx,
		"",        // default exchange routes by queue name
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		msg,
	)
}

func (q *Queue) releaseJob(ctx context.Context, reference string) {
	if q.redis == nil {
		return
	}
	if err := q.redis.Del(ctx, q.dedupKey(reference)).Err(); err != nil {
		log.Printf("level=warn component=settlement_queue msg=\"dedup key release failed\" reference=%s err=%v", reference, err)
	}
}

// Consume starts delivering settlement jobs to handler, one at a time per
// consumer. A handler error schedules a retry after the policy's backoff; once
// attempts are exhausted the job is moved to the failed-jobs queue for
// operator inspection and never silently dropped.
func (q *Queue) Consume(handler func(context.Context, domain.SettlementJob) error) error {
	if handler == nil {
		return errors.New("no handler provided")
	}

	if err := q.channel.Qos(1, 0, false); err != nil {
		return err
	}

	msgs, err := q.channel.Consume(q.name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			q.handleDelivery(d, handler)
		}
	}()

	return nil
}

func (q *Queue) handleDelivery(d amqp.Delivery, handler func(context.Context, domain.SettlementJob) error) {
	var job domain.SettlementJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Printf("level=error component=settlement_queue msg=\"unparsable job dropped\" err=%v", err)
		d.Ack(false)
		return
	}
	if job.Attempt < 1 {
		job.Attempt = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.policy.JobTimeout)
	err := handler(ctx, job)
	cancel()

	if err == nil {
		q.releaseJob(context.Background(), job.Reference)
		d.Ack(false)
		return
	}

	if job.Attempt >= q.policy.MaxAttempts {
		log.Printf("level=error component=settlement_queue msg=\"job permanently failed\" reference=%s attempts=%d err=%v",
			job.Reference, job.Attempt, err)
		if pubErr := q.publish(context.Background(), q.failedQueueName(), job, 0); pubErr != nil {
			log.Printf("level=error component=settlement_queue msg=\"failed-queue publish failed; requeueing\" reference=%s err=%v", job.Reference, pubErr)
			d.Nack(false, true)
			return
		}
		q.releaseJob(context.Background(), job.Reference)
		d.Ack(false)
		return
	}

	delay := q.policy.Backoff(job.Attempt)
	log.Printf("level=warn component=settlement_queue msg=\"job failed; retrying\" reference=%s attempt=%d delay=%s err=%v",
		job.Reference, job.Attempt, delay, err)

	retry := job
	retry.Attempt = job.Attempt + 1
	if pubErr := q.publish(context.Background(), q.retryQueueName(), retry, delay); pubErr != nil {
		log.Printf("level=error component=settlement_queue msg=\"retry publish failed; requeueing original\" reference=%s err=%v", job.Reference, pubErr)
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (q *Queue) Close() {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		q.conn.Close()
	}
}
