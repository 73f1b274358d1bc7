package portreg

import (
	"sync"
	"time"

	"github.com/stella/switchsim/pkg/packet"
	"github.com/stella/switchsim/pkg/switchtype"
)

// LoopbackBackend is an in-memory Backend for tests and the demo CLI:
// transmitted frames from every port go to one shared channel (each
// Delivery records its port) instead of
// reaching real hardware, mirroring the goroutine+channel receive pattern
// of the teacher's UDP transport without any socket or encryption
// machinery. InjectFrame/SetLinkUp let a test or the CLI's own loopback
// wiring simulate C10's receive() and link_event_stream() directions.
type LoopbackBackend struct {
	mu          sync.Mutex
	portCount   uint32
	delivered   chan Delivery
	rx          chan Delivery
	linkEvents  chan LinkEvent
	failPort    map[switchtype.PortId]bool
	startTimeUs int64
}

// NewLoopbackBackend creates a backend declaring portCount physical ports.
func NewLoopbackBackend(portCount uint32) *LoopbackBackend {
	return &LoopbackBackend{
		portCount:   portCount,
		delivered:   make(chan Delivery, 256),
		rx:          make(chan Delivery, 256),
		linkEvents:  make(chan LinkEvent, 256),
		failPort:    make(map[switchtype.PortId]bool),
		startTimeUs: time.Now().UnixMicro(),
	}
}

// DeclaredPortCount implements Backend.
func (l *LoopbackBackend) DeclaredPortCount() uint32 {
	return l.portCount
}

// Transmit implements Backend: the frame is copied onto the delivered
// channel unless the port was marked failing with FailPort.
func (l *LoopbackBackend) Transmit(port switchtype.PortId, buf *packet.Buffer) error {
	l.mu.Lock()
	fail := l.failPort[port]
	l.mu.Unlock()
	if fail {
		return errBackendFailure
	}

	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	l.delivered <- Delivery{Port: port, Data: data}
	return nil
}

// NowMicros implements Backend.
func (l *LoopbackBackend) NowMicros() int64 {
	return time.Now().UnixMicro()
}

// NowSeconds implements Backend.
func (l *LoopbackBackend) NowSeconds() int64 {
	return time.Now().Unix()
}

// FailPort marks a port so future Transmit calls to it return an error,
// simulating a backend fault for tests.
func (l *LoopbackBackend) FailPort(port switchtype.PortId, fail bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failPort[port] = fail
}

// Deliveries exposes the channel of transmitted frames for test assertions.
func (l *LoopbackBackend) Deliveries() <-chan Delivery {
	return l.delivered
}

// Receive implements Backend: the core ranges over this channel from its
// own goroutine to learn of received frames.
func (l *LoopbackBackend) Receive() <-chan Delivery {
	return l.rx
}

// LinkEvents implements Backend: the core ranges over this channel to
// learn of port up/down transitions.
func (l *LoopbackBackend) LinkEvents() <-chan LinkEvent {
	return l.linkEvents
}

// InjectFrame simulates an incoming frame arriving on port, delivering it
// to whatever is reading Receive().
func (l *LoopbackBackend) InjectFrame(port switchtype.PortId, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	l.rx <- Delivery{Port: port, Data: cp}
}

// SetLinkUp simulates a link transitioning up or down on port, delivering
// the event to whatever is reading LinkEvents().
func (l *LoopbackBackend) SetLinkUp(port switchtype.PortId, up bool) {
	l.linkEvents <- LinkEvent{Port: port, Up: up}
}

type backendFailure struct{}

func (backendFailure) Error() string { return "loopback backend: simulated transmit failure" }

var errBackendFailure = backendFailure{}
