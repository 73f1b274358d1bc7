// Package pipeline implements the processor chain packets traverse
// between ingress and egress: registration under a mutex, traversal over
// a lock-free snapshot. Grounded on pkg/switcher/switcher.go's
// floodPacket (RLock snapshot, iterate without holding the write lock),
// generalized from a fixed flood loop into a registered, priority-ordered
// processor chain.
package pipeline

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/stella/switchsim/pkg/coreerr"
	"github.com/stella/switchsim/pkg/packet"
	"github.com/stella/switchsim/pkg/switchlog"
)

// MaxRecirculationDepth bounds how many times a single packet may restart
// traversal via Recirculate before the pipeline forces a Drop.
const MaxRecirculationDepth = 16

// Verdict is the return code a processor callback yields for a packet.
type Verdict int

const (
	// Forward continues the traversal to the next processor.
	Forward Verdict = iota
	// Drop ends the traversal; the packet is discarded.
	Drop
	// Consume ends the traversal; the packet was claimed by the processor.
	Consume
	// Recirculate restarts traversal from the first processor, subject to
	// MaxRecirculationDepth.
	Recirculate
)

// Callback processes one packet, optionally using userData for closure
// state supplied at registration.
type Callback func(buf *packet.Buffer, userData interface{}) Verdict

// Handle identifies a registered processor for later Unregister calls.
type Handle uuid.UUID

type processor struct {
	handle   Handle
	priority uint32
	seq      uint64
	callback Callback
	userData interface{}
	active   bool
}

// Pipeline is the switch core's processor chain.
type Pipeline struct {
	mu         sync.Mutex
	processors []*processor
	nextSeq    uint64
	log        *switchlog.Logger
}

// New creates an empty pipeline.
func New(log *switchlog.Logger) *Pipeline {
	return &Pipeline{log: log}
}

// Register adds a processor at the given priority (ascending order,
// ties broken by insertion order) and returns a stable handle.
func (p *Pipeline) Register(priority uint32, cb Callback, userData interface{}) (Handle, error) {
	if cb == nil {
		return Handle{}, coreerr.New(coreerr.KindInvalidArgument, "callback cannot be nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	proc := &processor{
		handle:   Handle(uuid.New()),
		priority: priority,
		seq:      p.nextSeq,
		callback: cb,
		userData: userData,
		active:   true,
	}
	p.nextSeq++
	p.processors = append(p.processors, proc)
	return proc.handle, nil
}

// Unregister removes a previously registered processor. Already-running
// traversals hold their own snapshot, so they are unaffected.
func (p *Pipeline) Unregister(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, proc := range p.processors {
		if proc.handle == h {
			p.processors = append(p.processors[:i], p.processors[i+1:]...)
			return nil
		}
	}
	return coreerr.New(coreerr.KindNotFound, "processor handle not registered")
}

// snapshot returns a stable, priority-sorted copy of the active processor
// list without holding the mutex during traversal.
func (p *Pipeline) snapshot() []*processor {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*processor, len(p.processors))
	copy(out, p.processors)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority < out[j].priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// Process traverses the current processor snapshot for buf, honoring
// Forward/Drop/Consume/Recirculate semantics. depth is the recirculation
// depth so far and is passed explicitly rather than kept in thread-local
// storage, so a single Pipeline can safely process many packets
// concurrently.
func (p *Pipeline) Process(buf *packet.Buffer, depth int) Verdict {
	if depth > MaxRecirculationDepth {
		if p.log != nil {
			p.log.Error("recirculation depth %d exceeds bound %d, dropping packet", depth, MaxRecirculationDepth)
		}
		return Drop
	}

	procs := p.snapshot()
	for _, proc := range procs {
		verdict := proc.callback(buf, proc.userData)
		switch verdict {
		case Forward:
			continue
		case Drop, Consume:
			return verdict
		case Recirculate:
			return p.Process(buf, depth+1)
		}
	}
	return Forward
}
