package queue

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// AccountEventsQueue is the durable queue account events are routed to.
const AccountEventsQueue = "account.events"

// DefaultDialTimeout bounds the TCP connect and AMQP handshake of a publish
// when the caller's context carries no earlier deadline.
const DefaultDialTimeout = 3 * time.Second

// AMQPPublisher publishes account events to RabbitMQ.  Each publish opens
// its own connection, so the publisher holds no broker state between calls.
// Errors are logged and returned so the caller can choose to ignore them.
type AMQPPublisher struct {
    URL         string
    Queue       string
    DialTimeout time.Duration
    Log         *zap.Logger
}

// NewAMQPPublisher returns a publisher for url routing to AccountEventsQueue.
func NewAMQPPublisher(url string, log *zap.Logger) *AMQPPublisher {
    if log == nil {
        log = zap.NewNop()
    }
    return &AMQPPublisher{URL: url, Queue: AccountEventsQueue, DialTimeout: DefaultDialTimeout, Log: log}
}

// Publish sends ev as a persistent JSON message.  Dialing honours the
// earlier of ctx's deadline and DialTimeout.
func (p *AMQPPublisher) Publish(ctx context.Context, ev AccountEvent) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    conn, err := amqp.DialConfig(p.URL, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(p.dialTimeout(ctx)),
    })
    if err != nil {
        p.Log.Warn("rabbitmq: dial failed", zap.Error(err))
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.Log.Warn("rabbitmq: channel open failed", zap.Error(err))
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
        p.Log.Warn("rabbitmq: queue declare failed", zap.Error(err))
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Type:         ev.Type,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",      // default exchange
        p.Queue, // routing key = queue name
        false,   // mandatory
        false,   // immediate
        pub,
    ); err != nil {
        p.Log.Warn("rabbitmq: publish failed", zap.String("type", ev.Type), zap.Error(err))
        return err
    }
    return nil
}

func (p *AMQPPublisher) dialTimeout(ctx context.Context) time.Duration {
    d := p.DialTimeout
    if d <= 0 {
        d = DefaultDialTimeout
    }
    if dl, ok := ctx.Deadline(); ok {
        if left := time.Until(dl); left < d {
            d = max(left, time.Millisecond)
        }
    }
    return d
}
