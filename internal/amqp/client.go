package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"green/internal/report"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxReconnect   = 30 * time.Second
	publishTimeout = 5 * time.Second
	dialAttempts   = 5
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

// NewClient dials the broker, retrying with exponential backoff, and
// declares the exchange and queue.
func NewClient(ctx context.Context, url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), dialAttempts),
		ctx,
	)
	err := backoff.Retry(func() error {
		if err := client.connect(); err != nil {
			slog.WarnContext(ctx, "AMQP connect failed, retrying", "error", err)
			return err
		}
		return nil
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("connect AMQP: %w", err)
	}

	return client, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return nil
}

func setup(channel *amqp091.Channel, exchangeName, queueName string) error {
	err := channel.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// routing key is the queue name on a direct exchange
	if err := channel.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

func (c *Client) currentChannel() *amqp091.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil || c.channel.IsClosed() {
		return nil
	}
	return c.channel
}

// PublishRecordsIngested announces a stored upload batch.
func (c *Client) PublishRecordsIngested(ctx context.Context, batchID string, count int) error {
	body, err := NewRecordsIngestedMessage(batchID, count).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, TypeRecordsIngested, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published records ingested message",
		"batch_id", batchID,
		"count", count,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishReportRequest asks the worker to publish a report period.
func (c *Client) PublishReportRequest(ctx context.Context, q report.RangeQuery) error {
	body, err := NewReportPublishMessage(q).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, TypeReportPublish, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published report publish message",
		"range", q.Kind,
		"year", q.Year,
		"month", q.Month,
		"week", q.Week)
	return nil
}

func (c *Client) publish(ctx context.Context, msgType string, body []byte) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", msgType, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	channel := c.currentChannel()
	if channel == nil {
		if err := c.connect(); err != nil {
			c.recordFailure()
			return fmt.Errorf("reconnect: %w", err)
		}
		channel = c.currentChannel()
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			MessageId:    uuid.NewString(),
			Type:         msgType,
			Body:         body,
		},
	)
	if err != nil {
		if isConnectionError(err) {
			c.recordFailure()
		}
		return fmt.Errorf("publish message: %w", err)
	}

	c.recordSuccess()
	return nil
}

// Handlers receives decoded deliveries by message type. A nil handler
// rejects its message type without requeue.
type Handlers struct {
	RecordsIngested func(context.Context, *RecordsIngestedMessage) error
	ReportPublish   func(context.Context, *ReportPublishMessage) error
}

// Consume processes deliveries until ctx is done, reconnecting with capped
// exponential delay when the broker drops the channel.
func (c *Client) Consume(ctx context.Context, h Handlers) error {
	policy := newReconnectPolicy()
	for {
		err := c.consumeOnce(ctx, h)
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) {
			return err
		}

		delay := policy.NextBackOff()
		slog.WarnContext(ctx, "AMQP consumer disconnected, reconnecting", "error", err, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if err := c.connect(); err != nil {
			c.recordFailure()
			continue
		}
		policy.Reset()
	}
}

func (c *Client) consumeOnce(ctx context.Context, h Handlers) error {
	channel := c.currentChannel()
	if channel == nil {
		return errors.New("connection closed")
	}

	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			requeue, err := dispatch(ctx, h, delivery.Type, delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to handle message",
					"error", err,
					"type", delivery.Type,
					"message_id", delivery.MessageId,
					"requeue", requeue)
				delivery.Nack(false, requeue)
				continue
			}
			delivery.Ack(false)
		}
	}
}

// dispatch decodes and routes one delivery. Undecodable or unknown
// messages and invalid ranges are not requeued; other handler failures are.
func dispatch(ctx context.Context, h Handlers, msgType string, body []byte) (bool, error) {
	switch msgType {
	case TypeRecordsIngested:
		if h.RecordsIngested == nil {
			return false, fmt.Errorf("no handler for %s", msgType)
		}
		msg, err := RecordsIngestedMessageFromJSON(body)
		if err != nil {
			return false, fmt.Errorf("unmarshal message: %w", err)
		}
		return true, h.RecordsIngested(ctx, msg)
	case TypeReportPublish:
		if h.ReportPublish == nil {
			return false, fmt.Errorf("no handler for %s", msgType)
		}
		msg, err := ReportPublishMessageFromJSON(body)
		if err != nil {
			return false, fmt.Errorf("unmarshal message: %w", err)
		}
		if err := h.ReportPublish(ctx, msg); err != nil {
			// A bad range fails the same way on every redelivery.
			return !errors.Is(err, report.ErrInvalidRange), err
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown message type %q", msgType)
	}
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// newReconnectPolicy never gives up; delays grow from one second up to
// maxReconnect.
func newReconnectPolicy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = maxReconnect
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"connection", "eof", "broken pipe", "closed"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
