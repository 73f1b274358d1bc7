package ipstack

import (
	"sync"

	"github.com/stella/switchsim/pkg/coreerr"
	"github.com/stella/switchsim/pkg/switchtype"
)

// FragmentReassemblyTimeout is the time, in seconds, after which an
// incomplete FragmentContext is dropped.
const FragmentReassemblyTimeout = 30

// fragKey identifies one reassembly context. Protocol is zero for IPv6,
// where identification does not include a protocol discriminator.
type fragKey struct {
	src   string
	dst   string
	ident uint16
	proto uint8
}

// byteRange is a half-open [start, end) span of received fragment bytes.
type byteRange struct {
	start, end int
}

// FragmentContext accumulates the fragments of one original datagram.
type FragmentContext struct {
	ArrivalTs       int64
	TotalLength     int
	HaveTotalLength bool
	FragmentsRecvd  int
	ranges          []byteRange // merged, sorted, non-overlapping
	payload         []byte
}

// Reassembler owns every in-flight FragmentContext, bounded to maxContexts.
type Reassembler struct {
	mu          sync.Mutex
	contexts    map[fragKey]*FragmentContext
	maxContexts int
}

// NewReassembler creates an empty reassembler bounded to maxContexts
// concurrent fragment contexts.
func NewReassembler(maxContexts int) *Reassembler {
	if maxContexts <= 0 {
		maxContexts = 64
	}
	return &Reassembler{
		contexts:    make(map[fragKey]*FragmentContext),
		maxContexts: maxContexts,
	}
}

func keyIpv4(src, dst switchtype.Ipv4Addr, ident uint16, proto uint8) fragKey {
	return fragKey{src: src.String(), dst: dst.String(), ident: ident, proto: proto}
}

func keyIpv6(src, dst switchtype.Ipv6Addr, ident uint16) fragKey {
	return fragKey{src: src.String(), dst: dst.String(), ident: ident}
}

// AddIpv4Fragment inserts one IPv4 fragment into its reassembly context,
// creating the context on first arrival. Returns the reassembled payload
// and true once every fragment has arrived contiguously.
func (r *Reassembler) AddIpv4Fragment(src, dst switchtype.Ipv4Addr, ident uint16, proto uint8,
	fragOffset int, payload []byte, moreFragments bool, now int64) ([]byte, bool, error) {
	return r.addFragment(keyIpv4(src, dst, ident, proto), fragOffset, payload, moreFragments, now)
}

// AddIpv6Fragment inserts one IPv6 fragment, mirroring AddIpv4Fragment.
func (r *Reassembler) AddIpv6Fragment(src, dst switchtype.Ipv6Addr, ident uint16,
	fragOffset int, payload []byte, moreFragments bool, now int64) ([]byte, bool, error) {
	return r.addFragment(keyIpv6(src, dst, ident), fragOffset, payload, moreFragments, now)
}

func (r *Reassembler) addFragment(k fragKey, fragOffset int, payload []byte, moreFragments bool, now int64) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, ok := r.contexts[k]
	if !ok {
		if len(r.contexts) >= r.maxContexts {
			return nil, false, coreerr.New(coreerr.KindResourceExhausted, "fragment reassembly table full")
		}
		ctx = &FragmentContext{
			ArrivalTs: now,
		}
		r.contexts[k] = ctx
	}

	needed := fragOffset + len(payload)
	if needed > len(ctx.payload) {
		grown := make([]byte, needed)
		copy(grown, ctx.payload)
		ctx.payload = grown
	}
	copy(ctx.payload[fragOffset:needed], payload)
	ctx.ranges = mergeRange(ctx.ranges, byteRange{start: fragOffset, end: needed})
	ctx.FragmentsRecvd++

	if !moreFragments {
		ctx.TotalLength = needed
		ctx.HaveTotalLength = true
	}

	if !ctx.HaveTotalLength {
		return nil, false, nil
	}

	if r.isCompleteLocked(ctx) {
		result := ctx.payload
		delete(r.contexts, k)
		return result, true, nil
	}
	return nil, false, nil
}

func (r *Reassembler) isCompleteLocked(ctx *FragmentContext) bool {
	return len(ctx.ranges) == 1 && ctx.ranges[0].start == 0 && ctx.ranges[0].end >= ctx.TotalLength
}

// mergeRange inserts next into the sorted, non-overlapping ranges slice,
// coalescing it with any range it touches or overlaps.
func mergeRange(ranges []byteRange, next byteRange) []byteRange {
	ranges = append(ranges, next)
	sortRanges(ranges)

	merged := ranges[:1]
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		if r.start <= last.end {
			if r.end > last.end {
				last.end = r.end
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func sortRanges(s []byteRange) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1].start > s[j].start; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Sweep removes every context older than FragmentReassemblyTimeout
// relative to now, returning the number of dropped partials.
func (r *Reassembler) Sweep(now int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for k, ctx := range r.contexts {
		if now-ctx.ArrivalTs > FragmentReassemblyTimeout {
			delete(r.contexts, k)
			dropped++
		}
	}
	return dropped
}

// PendingCount returns the number of in-flight reassembly contexts.
func (r *Reassembler) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}
