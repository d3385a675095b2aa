// Package link is the PC end of the controller protocol. It sends command
// bytes and decodes the telemetry stream in the background.
package link

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"gobldc/host/serial"
	"gobldc/protocol"
)

// ErrClosed is returned by commands on a closed link
var ErrClosed = errors.New("link closed")

// Status is the controller state as last reported
type Status struct {
	SpeedRPM  int16
	Duty      int16
	CurrentMA int16

	Setpoint  int16
	Kp        float32
	Ki        float32
	Kd        float32
	Clockwise bool

	// Frames counts every decoded frame, Versions the version replies
	Frames   uint64
	Versions uint64
}

// Link owns one connection to a controller
type Link struct {
	port io.ReadWriteCloser

	writeMutex sync.Mutex

	mu      sync.Mutex
	status  Status
	dec     protocol.FrameDecoder
	subs    []chan protocol.Frame
	readErr error

	stopChan chan struct{}
	doneChan chan struct{}
	once     sync.Once
}

// New wraps port and starts decoding what it receives
func New(port io.ReadWriteCloser) *Link {
	l := &Link{
		port:     port,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	go l.readLoop()
	return l
}

// Dial opens the serial device in cfg
func Dial(cfg *serial.Config) (*Link, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return New(port), nil
}

// Start spins the motor up
func (l *Link) Start() error {
	return l.send(protocol.EncodeStart())
}

// Stop coasts the motor
func (l *Link) Stop() error {
	return l.send(protocol.EncodeStop())
}

// ChangeDirection reverses the motor, only honoured while stopped
func (l *Link) ChangeDirection() error {
	return l.send(protocol.EncodeChangeDirection())
}

// SetSetpoint sets the target speed in RPM
func (l *Link) SetSetpoint(rpm int32) error {
	return l.send(protocol.EncodeSetSetpoint(rpm))
}

// SetPID replaces the regulator gains
func (l *Link) SetPID(kp, ki, kd float32) error {
	return l.send(protocol.EncodeSetPID(kp, ki, kd))
}

// RequestVersion asks for the signature and the parameter dump
func (l *Link) RequestVersion() error {
	return l.send(protocol.EncodeGetVersion())
}

// Version requests the parameter dump and waits until it has arrived. The
// direction scalar closes the dump.
func (l *Link) Version(timeout time.Duration) (Status, error) {
	frames := l.Subscribe(32)
	defer l.Unsubscribe(frames)

	if err := l.RequestVersion(); err != nil {
		return Status{}, err
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	seen := false
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return l.Status(), ErrClosed
			}
			switch {
			case f.Kind == protocol.FrameVersion:
				seen = true
			case seen && f.Kind == protocol.FrameScalar && f.Param == protocol.ParamDir:
				return l.Status(), nil
			}
		case <-deadline.C:
			return l.Status(), fmt.Errorf("no version reply within %v", timeout)
		case <-l.doneChan:
			return l.Status(), l.closedErr()
		}
	}
}

// Status returns a snapshot of the reported state
func (l *Link) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Skipped returns the number of received bytes that did not belong to a frame
func (l *Link) Skipped() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dec.Skipped()
}

// Subscribe returns a channel receiving every decoded frame. Frames are
// dropped for a subscriber that does not keep up. The channel is closed
// when the link goes down.
func (l *Link) Subscribe(buffer int) <-chan protocol.Frame {
	ch := make(chan protocol.Frame, buffer)
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.doneChan:
		close(ch)
	default:
		l.subs = append(l.subs, ch)
	}
	return ch
}

// Unsubscribe detaches a channel returned by Subscribe
func (l *Link) Unsubscribe(frames <-chan protocol.Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, ch := range l.subs {
		if ch == frames {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Done is closed when the read side stopped
func (l *Link) Done() <-chan struct{} {
	return l.doneChan
}

// Err returns the error that ended the read side, nil after Close
func (l *Link) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readErr
}

// Close shuts the port and waits for the reader to exit
func (l *Link) Close() error {
	var err error
	l.once.Do(func() {
		close(l.stopChan)
		err = l.port.Close()
		<-l.doneChan
	})
	return err
}

func (l *Link) closedErr() error {
	if err := l.Err(); err != nil {
		return err
	}
	return ErrClosed
}

func (l *Link) send(cmd []byte) error {
	select {
	case <-l.stopChan:
		return ErrClosed
	case <-l.doneChan:
		return l.closedErr()
	default:
	}

	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()
	if _, err := l.port.Write(cmd); err != nil {
		return fmt.Errorf("write command 0x%02x: %w", cmd[0], err)
	}
	return nil
}

func (l *Link) readLoop() {
	defer l.shutdown()

	buffer := make([]byte, 256)
	for {
		n, err := l.port.Read(buffer)
		if n > 0 {
			l.feed(buffer[:n])
		}
		if err != nil {
			select {
			case <-l.stopChan:
			default:
				if err != io.EOF {
					l.mu.Lock()
					l.readErr = err
					l.mu.Unlock()
				}
			}
			return
		}
	}
}

func (l *Link) feed(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, b := range data {
		f, ok := l.dec.Feed(b)
		if !ok {
			continue
		}
		l.apply(f)
		for _, ch := range l.subs {
			select {
			case ch <- f:
			default:
			}
		}
	}
}

func (l *Link) apply(f protocol.Frame) {
	s := &l.status
	s.Frames++
	switch f.Kind {
	case protocol.FrameRealtime:
		s.SpeedRPM = f.Speed
		s.Duty = f.Duty
		s.CurrentMA = f.Current
	case protocol.FrameVersion:
		s.Versions++
	case protocol.FrameScalar:
		switch f.Param {
		case protocol.ParamSetpoint:
			s.Setpoint = f.Scalar
		case protocol.ParamDir:
			s.Clockwise = f.Scalar == 1
		case protocol.ParamSpeed:
			s.SpeedRPM = f.Scalar
		case protocol.ParamCurrent:
			s.CurrentMA = f.Scalar
		}
	case protocol.FrameFloat:
		switch f.Param {
		case protocol.ParamKp:
			s.Kp = f.Float
		case protocol.ParamKi:
			s.Ki = f.Float
		case protocol.ParamKd:
			s.Kd = f.Float
		}
	}
}

func (l *Link) shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	close(l.doneChan)
	for _, ch := range l.subs {
		close(ch)
	}
	l.subs = nil
}
