package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/htbalar/vehicle-safety/internal/logger"
)

// publishTimeout bounds how long Publish waits for the broker.
const publishTimeout = 5 * time.Second

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("mqtt client closed")

// Options configures a RealClient.
type Options struct {
	Broker         string
	ClientID       string
	ConnectTimeout time.Duration
	// BufferSize is how many outbound messages are kept while disconnected.
	BufferSize int
	// Subscriptions are (re)subscribed on every connect with QoS 1.
	Subscriptions []string
	// Will, if set, is published by the broker when the connection drops.
	Will *Message
	// InboundSize is the capacity of the Messages channel.
	InboundSize int
}

// RealClient publishes to and receives from an actual MQTT broker.
// Subscribed messages are delivered on Messages; outbound messages are
// buffered while disconnected and replayed on reconnect.
type RealClient struct {
	ctx     context.Context
	client  paho.Client
	opts    Options
	inbound chan Message
	done    chan struct{}

	mu        sync.Mutex
	buf       *outbox
	closed    bool
	closeOnce sync.Once
}

// NewRealClient creates a client and starts connecting to the broker.
// If the broker is not reachable within ConnectTimeout the client keeps
// retrying in the background and the error is only logged.
func NewRealClient(ctx context.Context, opts Options) (*RealClient, error) {
	if opts.InboundSize <= 0 {
		opts.InboundSize = 256
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	r := &RealClient{
		ctx:     logger.WithName(ctx, "mqtt"),
		opts:    opts,
		inbound: make(chan Message, opts.InboundSize),
		done:    make(chan struct{}),
		buf:     newOutbox(opts.BufferSize),
	}

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(true).
		SetOnConnectHandler(r.onConnect).
		SetConnectionLostHandler(r.onConnectionLost)

	if opts.Will != nil {
		po.SetBinaryWill(opts.Will.Topic, opts.Will.Payload, opts.Will.QoS, opts.Will.Retained)
	}

	r.client = paho.NewClient(po)

	token := r.client.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		logger.WarnKV(r.ctx, "broker not reachable yet, retrying in background",
			"broker", opts.Broker, "timeout", opts.ConnectTimeout)
		return r, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return r, nil
}

// Messages returns the channel of subscribed messages.
func (r *RealClient) Messages() <-chan Message {
	return r.inbound
}

// Publish sends a message, or buffers it while the connection is down.
func (r *RealClient) Publish(msg Message) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if !r.client.IsConnectionOpen() {
		if r.buf.push(msg) {
			logger.WarnKV(r.ctx, "outbox full, dropping oldest", "capacity", r.opts.BufferSize)
		}
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	return r.send(msg)
}

// IsConnected reports whether the connection is currently open.
func (r *RealClient) IsConnected() bool {
	return r.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (r *RealClient) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.len()
}

// Close disconnects from the broker and stops delivering messages.
func (r *RealClient) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.done)
		r.client.Disconnect(1000) // 1 second grace
	})
	return nil
}

func (r *RealClient) send(msg Message) error {
	token := r.client.Publish(msg.Topic, msg.QoS, msg.Retained, msg.Payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", msg.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Topic, err)
	}
	return nil
}

func (r *RealClient) onConnect(c paho.Client) {
	logger.InfoKV(r.ctx, "connected", "broker", r.opts.Broker)

	for _, filter := range r.opts.Subscriptions {
		token := c.Subscribe(filter, 1, r.onMessage)
		go func(filter string, token paho.Token) {
			if token.WaitTimeout(publishTimeout) && token.Error() != nil {
				logger.ErrorKV(r.ctx, "subscribe failed", "topic", filter, "error", token.Error())
			}
		}(filter, token)
	}

	r.mu.Lock()
	pending, dropped := r.buf.drain()
	r.mu.Unlock()
	if dropped > 0 {
		logger.WarnKV(r.ctx, "messages dropped while disconnected", "count", dropped)
	}
	if len(pending) == 0 {
		return
	}

	// Replay outside the handler: paho must not block in callbacks.
	go func() {
		logger.InfoKV(r.ctx, "replaying buffered messages", "count", len(pending))
		for _, msg := range pending {
			if err := r.send(msg); err != nil {
				logger.ErrorKV(r.ctx, "replay failed", "topic", msg.Topic, "error", err)
			}
		}
	}()
}

func (r *RealClient) onConnectionLost(_ paho.Client, err error) {
	logger.WarnKV(r.ctx, "connection lost", "error", err)
}

func (r *RealClient) onMessage(_ paho.Client, m paho.Message) {
	msg := Message{
		Topic:    m.Topic(),
		Payload:  m.Payload(),
		QoS:      m.Qos(),
		Retained: m.Retained(),
	}
	select {
	case r.inbound <- msg:
	case <-r.done:
	}
}
