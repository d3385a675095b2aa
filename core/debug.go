package core

import "strconv"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Event is a controller event captured for post-mortem analysis
type Event struct {
	Type   uint8
	Seq    uint32 // Monotonic event number
	Step   uint8  // Commutation step when the event was recorded
	Value1 uint32 // Context-dependent value
	Value2 uint32 // Context-dependent value
}

// Event type codes
const (
	EvtForcedCommutation = 1 // Open-loop commutation, v1=delay ticks
	EvtHandoff           = 2 // Startup done, v1=period, v2=commutations
	EvtZeroCross         = 3 // Back-EMF crossing seen, v1=period
	EvtCommutate         = 4 // Closed-loop commutation
	EvtLatch             = 5 // Electrical period latched, v1=period, v2=rpm
	EvtPIDActive         = 6 // Regulator enabled, v1=duty
	EvtStall             = 7 // Stall watchdog fired, v1=overflows
	EvtOvercurrent       = 8 // Overcurrent stop, v1=mA
	EvtStartupFail       = 9 // Ramp gave up, v1=commutations
	EvtStop              = 10
)

// EventRingSize is the number of events kept for post-mortem
const EventRingSize = 32

var (
	debugPrintln DebugWriter = func(string) {}

	// Event ring, written from interrupt context with interrupts disabled
	eventRing     [EventRingSize]Event
	eventRingHead uint8
	eventSeq      uint32
)

// SetDebugWriter sets where DumpEvents prints, UART on firmware and stdout
// on the host
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// recordEvent stores an event in the ring. Callers hold the critical section.
func recordEvent(eventType uint8, step Step, value1, value2 uint32) {
	idx := eventRingHead
	eventSeq++
	eventRing[idx] = Event{
		Type:   eventType,
		Seq:    eventSeq,
		Step:   uint8(step),
		Value1: value1,
		Value2: value2,
	}
	eventRingHead = (idx + 1) % EventRingSize
}

// Events returns the recorded events, oldest first
func Events() []Event {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	out := make([]Event, 0, EventRingSize)
	start := eventRingHead
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(start+i)%EventRingSize]
		if evt.Type != 0 {
			out = append(out, evt)
		}
	}
	return out
}

func eventName(t uint8) string {
	switch t {
	case EvtForcedCommutation:
		return "FORCED"
	case EvtHandoff:
		return "HANDOFF"
	case EvtZeroCross:
		return "ZERO_CROSS"
	case EvtCommutate:
		return "COMMUTATE"
	case EvtLatch:
		return "LATCH"
	case EvtPIDActive:
		return "PID_ON"
	case EvtStall:
		return "STALL!"
	case EvtOvercurrent:
		return "OVERCURRENT!"
	case EvtStartupFail:
		return "STARTUP_FAIL!"
	case EvtStop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// DumpEvents writes the event ring through the debug writer, oldest first.
// Call it after the motor stopped, not from interrupt context.
func DumpEvents() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[EVENTS] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln("[EVENTS] #" + strconv.FormatUint(uint64(evt.Seq), 10) + " " + eventName(evt.Type) +
			" step=" + strconv.Itoa(int(evt.Step)) +
			" v1=" + strconv.FormatUint(uint64(evt.Value1), 10) +
			" v2=" + strconv.FormatUint(uint64(evt.Value2), 10))
	}
	debugPrintln("[EVENTS] === End Dump ===")
}

// ClearEvents clears the event ring
func ClearEvents() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for i := range eventRing {
		eventRing[i] = Event{}
	}
	eventRingHead = 0
}
