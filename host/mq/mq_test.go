package mq

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"testing"

	"github.com/streadway/amqp"

	"gobldc/protocol"
)

type declared struct {
	name, kind string
	durable    bool
}

type fakeChannel struct {
	exchanges  []declared
	queue      amqp.Queue
	bound      [3]string // queue, key, exchange
	exclusive  bool
	deliveries chan amqp.Delivery
	published  []amqp.Publishing
	publishTo  []string
	closed     bool

	failExchange error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp.Delivery, 8)}
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	if c.failExchange != nil {
		return c.failExchange
	}
	c.exchanges = append(c.exchanges, declared{name, kind, durable})
	return nil
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	c.exclusive = exclusive
	c.queue = amqp.Queue{Name: "amq.gen-test"}
	return c.queue, nil
}

func (c *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	c.bound = [3]string{name, key, exchange}
	return nil
}

func (c *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return c.deliveries, nil
}

func (c *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.publishTo = append(c.publishTo, exchange)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type fakeController struct {
	calls    []string
	setpoint int32
	gains    [3]float32
}

func (f *fakeController) Start() error           { f.calls = append(f.calls, "start"); return nil }
func (f *fakeController) Stop() error            { f.calls = append(f.calls, "stop"); return nil }
func (f *fakeController) ChangeDirection() error { f.calls = append(f.calls, "direction"); return nil }
func (f *fakeController) RequestVersion() error  { f.calls = append(f.calls, "version"); return nil }

func (f *fakeController) SetSetpoint(rpm int32) error {
	f.calls = append(f.calls, "setpoint")
	f.setpoint = rpm
	return nil
}

func (f *fakeController) SetPID(kp, ki, kd float32) error {
	f.calls = append(f.calls, "pid")
	f.gains = [3]float32{kp, ki, kd}
	return nil
}

func newTestBridge(t *testing.T) (*Bridge, *fakeChannel, *fakeController) {
	t.Helper()
	ch := newFakeChannel()
	ctrl := &fakeController{}
	b, err := NewBridge(ch, ctrl)
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	b.Logger = log.New(io.Discard, "", 0)
	return b, ch, ctrl
}

func TestNewBridgeTopology(t *testing.T) {
	b, ch, _ := newTestBridge(t)

	want := []declared{{ExchangeCtrl, "fanout", true}, {ExchangeEvents, "fanout", true}}
	if len(ch.exchanges) != len(want) {
		t.Fatalf("Declared %d exchanges", len(ch.exchanges))
	}
	for i := range want {
		if ch.exchanges[i] != want[i] {
			t.Errorf("exchange %d = %+v, want %+v", i, ch.exchanges[i], want[i])
		}
	}
	if !ch.exclusive {
		t.Error("Control queue should be exclusive")
	}
	if ch.bound != [3]string{"amq.gen-test", "", ExchangeCtrl} {
		t.Errorf("Binding = %v", ch.bound)
	}
	if b.Queue() != "amq.gen-test" {
		t.Errorf("Queue() = %q", b.Queue())
	}
}

func TestNewBridgeDeclareFailure(t *testing.T) {
	ch := newFakeChannel()
	ch.failExchange = errors.New("access refused")
	if _, err := NewBridge(ch, &fakeController{}); err == nil {
		t.Error("NewBridge should fail when the exchange cannot be declared")
	}
}

func TestDispatch(t *testing.T) {
	b, _, ctrl := newTestBridge(t)

	setpoint := make([]byte, 4)
	binary.BigEndian.PutUint32(setpoint, 4200)
	pid := make([]byte, 12)
	for i, v := range []float32{-0.5, -0.001, -0.25} {
		binary.BigEndian.PutUint32(pid[4*i:], math.Float32bits(v))
	}

	for _, d := range []amqp.Delivery{
		{ContentType: ContentStart},
		{ContentType: ContentSetpoint, Body: setpoint},
		{ContentType: ContentPID, Body: pid},
		{ContentType: ContentDirection},
		{ContentType: ContentVersion},
		{ContentType: ContentStop},
	} {
		if err := b.Dispatch(d); err != nil {
			t.Errorf("Dispatch(%s): %v", d.ContentType, err)
		}
	}

	want := []string{"start", "setpoint", "pid", "direction", "version", "stop"}
	if len(ctrl.calls) != len(want) {
		t.Fatalf("calls = %v", ctrl.calls)
	}
	for i := range want {
		if ctrl.calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, ctrl.calls[i], want[i])
		}
	}
	if ctrl.setpoint != 4200 {
		t.Errorf("setpoint = %d", ctrl.setpoint)
	}
	if ctrl.gains != [3]float32{-0.5, -0.001, -0.25} {
		t.Errorf("gains = %v", ctrl.gains)
	}
}

func TestDispatchRejects(t *testing.T) {
	b, _, ctrl := newTestBridge(t)

	if err := b.Dispatch(amqp.Delivery{ContentType: ContentSetpoint, Body: []byte{1, 2}}); !errors.Is(err, ErrBadBody) {
		t.Errorf("short setpoint: %v", err)
	}
	if err := b.Dispatch(amqp.Delivery{ContentType: ContentPID, Body: make([]byte, 8)}); !errors.Is(err, ErrBadBody) {
		t.Errorf("short pid: %v", err)
	}
	if err := b.Dispatch(amqp.Delivery{ContentType: "text/plain"}); !errors.Is(err, ErrUnknownContent) {
		t.Errorf("unknown content: %v", err)
	}
	if len(ctrl.calls) != 0 {
		t.Errorf("Rejected messages reached the controller: %v", ctrl.calls)
	}
}

func TestPublishFrame(t *testing.T) {
	b, ch, _ := newTestBridge(t)

	frames := []protocol.Frame{
		{Kind: protocol.FrameRealtime, Speed: 2800, Duty: 249, Current: 90},
		{Kind: protocol.FrameScalar, Param: protocol.ParamDir, Scalar: 0},
		{Kind: protocol.FrameFloat, Param: protocol.ParamKp, Float: -0.5},
		{Kind: protocol.FrameVersion},
	}
	for _, f := range frames {
		if err := b.PublishFrame(f); err != nil {
			t.Fatalf("PublishFrame: %v", err)
		}
	}

	want := []string{
		`{"kind":"realtime","speed_rpm":2800,"duty":249,"current_ma":90}`,
		`{"kind":"scalar","param":"dir","value":0}`,
		`{"kind":"float","param":"kp","value":-0.5}`,
		`{"kind":"version"}`,
	}
	if len(ch.published) != len(want) {
		t.Fatalf("Published %d messages", len(ch.published))
	}
	for i, msg := range ch.published {
		if ch.publishTo[i] != ExchangeEvents {
			t.Errorf("message %d went to %q", i, ch.publishTo[i])
		}
		if msg.ContentType != ContentEvent {
			t.Errorf("message %d content type %q", i, msg.ContentType)
		}
		if string(msg.Body) != want[i] {
			t.Errorf("message %d = %s, want %s", i, msg.Body, want[i])
		}
	}

	var e Event
	if err := json.Unmarshal(ch.published[1].Body, &e); err != nil || e.Value == nil || *e.Value != 0 {
		t.Errorf("Zero scalar must keep its value: %+v %v", e, err)
	}
}

func TestRun(t *testing.T) {
	b, ch, ctrl := newTestBridge(t)
	frames := make(chan protocol.Frame, 1)

	ch.deliveries <- amqp.Delivery{ContentType: ContentStart}
	ch.deliveries <- amqp.Delivery{ContentType: "bogus"}
	frames <- protocol.Frame{Kind: protocol.FrameVersion}

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background(), frames) }()

	// Closing the consumer ends Run once both queued deliveries are handled
	close(ch.deliveries)
	err := <-done
	if err == nil {
		t.Fatal("Run should report the closed consumer")
	}
	if len(ctrl.calls) != 1 || ctrl.calls[0] != "start" {
		t.Errorf("calls = %v", ctrl.calls)
	}
}

func TestRunStopsOnContext(t *testing.T) {
	b, _, _ := newTestBridge(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Run(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestClose(t *testing.T) {
	b, ch, _ := newTestBridge(t)
	if err := b.Close(); err != nil || !ch.closed {
		t.Errorf("Close = %v, channel closed %v", err, ch.closed)
	}
}
