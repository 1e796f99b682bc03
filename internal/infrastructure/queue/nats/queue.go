package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/megachat/sales-assistant/internal/core/domain"
	"github.com/megachat/sales-assistant/internal/infrastructure/resilience"
)

// QueueGroup load-balances product events across worker replicas.
const QueueGroup = "indexers"

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	Name                 string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	name := options.Name
	if name == "" {
		name = "megachat"
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) Name() string {
	return "nats"
}

func (q *Queue) Ping(_ context.Context) error {
	if q.conn == nil || !q.conn.IsConnected() {
		return domain.WrapError(domain.ErrTemporary, "nats ping", nats.ErrDisconnected)
	}
	return nil
}

func (q *Queue) PublishProduct(ctx context.Context, product domain.Product) error {
	data, err := encodeProduct(product)
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

// SubscribeProducts blocks until ctx is done, then drains the subscription.
// Handler errors and undecodable messages are logged; the message is not redelivered.
func (q *Queue) SubscribeProducts(ctx context.Context, handler func(context.Context, domain.Product) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, QueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		product, err := decodeProduct(msg.Data)
		if err != nil {
			slog.Error("product_event_decode_failed", "subject", msg.Subject, "bytes", len(msg.Data), "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, product); err != nil {
			slog.Error("product_event_handler_failed", "product_id", product.ID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeProduct(product domain.Product) ([]byte, error) {
	if product.ID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode product event", errors.New("product id is required"))
	}
	data, err := json.Marshal(product)
	if err != nil {
		return nil, fmt.Errorf("marshal product event: %w", err)
	}
	return data, nil
}

func decodeProduct(data []byte) (domain.Product, error) {
	var product domain.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return domain.Product{}, fmt.Errorf("unmarshal product event: %w", err)
	}
	if product.ID == "" {
		return domain.Product{}, domain.WrapError(domain.ErrInvalidInput, "decode product event", errors.New("product id is required"))
	}
	return product, nil
}
