// Package mq bridges the controller link onto AMQP. Commands arrive on a
// fanout exchange and are relayed by content type; every telemetry frame is
// published as JSON on a second exchange.
package mq

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/streadway/amqp"

	"gobldc/protocol"
)

const (
	ExchangeCtrl   = "bldc_ctrl"
	ExchangeEvents = "bldc_events"
)

// Command content types. Setpoint carries a big-endian int32, PID three
// big-endian float32 in kp, ki, kd order.
const (
	ContentStart     = "application/bldc_start"
	ContentStop      = "application/bldc_stop"
	ContentSetpoint  = "application/bldc_setpoint"
	ContentPID       = "application/bldc_pid"
	ContentDirection = "application/bldc_direction"
	ContentVersion   = "application/bldc_version"

	ContentEvent = "application/json"
)

var (
	ErrUnknownContent = errors.New("unknown content type")
	ErrBadBody        = errors.New("malformed message body")
)

// Channel is the part of *amqp.Channel the bridge uses
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Controller receives the relayed commands; *link.Link implements it
type Controller interface {
	Start() error
	Stop() error
	SetSetpoint(rpm int32) error
	SetPID(kp, ki, kd float32) error
	ChangeDirection() error
	RequestVersion() error
}

// Event is the JSON form of a telemetry frame
type Event struct {
	Kind      string   `json:"kind"`
	SpeedRPM  int16    `json:"speed_rpm,omitempty"`
	Duty      int16    `json:"duty,omitempty"`
	CurrentMA int16    `json:"current_ma,omitempty"`
	Param     string   `json:"param,omitempty"`
	Value     *float64 `json:"value,omitempty"`
}

// NewEvent converts f
func NewEvent(f protocol.Frame) Event {
	var e Event
	switch f.Kind {
	case protocol.FrameRealtime:
		e.Kind = "realtime"
		e.SpeedRPM, e.Duty, e.CurrentMA = f.Speed, f.Duty, f.Current
	case protocol.FrameScalar:
		e.Kind = "scalar"
		e.Param = f.Param.String()
		v := float64(f.Scalar)
		e.Value = &v
	case protocol.FrameFloat:
		e.Kind = "float"
		e.Param = f.Param.String()
		v := float64(f.Float)
		e.Value = &v
	case protocol.FrameVersion:
		e.Kind = "version"
	default:
		e.Kind = "unknown"
	}
	return e
}

// Bridge relays between one AMQP channel and one controller
type Bridge struct {
	ch    Channel
	ctrl  Controller
	queue amqp.Queue
	conn  *amqp.Connection

	Logger *log.Logger
}

// Dial connects to the broker at url and sets up the exchanges
func Dial(url string, ctrl Controller) (*Bridge, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	b, err := NewBridge(ch, ctrl)
	if err != nil {
		conn.Close()
		return nil, err
	}
	b.conn = conn
	return b, nil
}

// NewBridge declares both fanout exchanges and binds an exclusive, server
// named queue to the control exchange
func NewBridge(ch Channel, ctrl Controller) (*Bridge, error) {
	b := &Bridge{ch: ch, ctrl: ctrl, Logger: log.Default()}

	for _, name := range []string{ExchangeCtrl, ExchangeEvents} {
		if err := ch.ExchangeDeclare(name, "fanout", true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}

	q, err := ch.QueueDeclare("", false, false, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare control queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", ExchangeCtrl, false, nil); err != nil {
		return nil, fmt.Errorf("bind control queue: %w", err)
	}
	b.queue = q
	return b, nil
}

// Queue returns the name of the control queue
func (b *Bridge) Queue() string {
	return b.queue.Name
}

// Dispatch relays one delivery to the controller
func (b *Bridge) Dispatch(d amqp.Delivery) error {
	switch d.ContentType {
	case ContentStart:
		return b.ctrl.Start()
	case ContentStop:
		return b.ctrl.Stop()
	case ContentDirection:
		return b.ctrl.ChangeDirection()
	case ContentVersion:
		return b.ctrl.RequestVersion()
	case ContentSetpoint:
		if len(d.Body) != 4 {
			return fmt.Errorf("%w: setpoint needs 4 bytes, got %d", ErrBadBody, len(d.Body))
		}
		return b.ctrl.SetSetpoint(int32(binary.BigEndian.Uint32(d.Body)))
	case ContentPID:
		if len(d.Body) != 12 {
			return fmt.Errorf("%w: pid needs 12 bytes, got %d", ErrBadBody, len(d.Body))
		}
		var g [3]float32
		for i := range g {
			g[i] = math.Float32frombits(binary.BigEndian.Uint32(d.Body[4*i:]))
		}
		return b.ctrl.SetPID(g[0], g[1], g[2])
	default:
		return fmt.Errorf("%w: %q", ErrUnknownContent, d.ContentType)
	}
}

// PublishFrame sends f to the events exchange
func (b *Bridge) PublishFrame(f protocol.Frame) error {
	body, err := json.Marshal(NewEvent(f))
	if err != nil {
		return err
	}
	return b.ch.Publish(ExchangeEvents, "", false, false, amqp.Publishing{
		ContentType: ContentEvent,
		Timestamp:   time.Now(),
		Body:        body,
	})
}

// Run consumes the control queue and publishes frames until ctx is done,
// frames is closed, or the broker closes the consumer. Bad commands are
// logged and skipped.
func (b *Bridge) Run(ctx context.Context, frames <-chan protocol.Frame) error {
	deliveries, err := b.ch.Consume(b.queue.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", b.queue.Name, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("control consumer closed")
			}
			if err := b.Dispatch(d); err != nil {
				b.Logger.Printf("mq: %v", err)
			}
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			if err := b.PublishFrame(f); err != nil {
				return fmt.Errorf("publish event: %w", err)
			}
		}
	}
}

// Close releases the channel and, after Dial, the connection
func (b *Bridge) Close() error {
	err := b.ch.Close()
	if b.conn != nil {
		if cerr := b.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
