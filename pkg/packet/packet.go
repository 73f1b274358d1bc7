// Package packet implements the switch core's packet buffer: a fixed
// capacity byte buffer plus per-packet metadata, mutated in place as it
// traverses the processor pipeline. Grounded on pkg/packet/packet.go's
// Packet{Data []byte} and its Fragment type's shift-copy idiom, with the
// ZeroTier wire layout replaced by the buffer/metadata contract of the
// switch core.
package packet

import (
	"sync"

	"github.com/stella/switchsim/pkg/coreerr"
	"github.com/stella/switchsim/pkg/switchtype"
)

// MaxPacketSize is the hard upper bound on any PacketBuffer's capacity.
const MaxPacketSize = 9216

// Direction classifies where a packet is in its traversal of the core.
type Direction int

const (
	// DirInvalid marks a buffer that hasn't been assigned a direction.
	DirInvalid Direction = iota
	// DirRx marks a packet received from a port backend.
	DirRx
	// DirTx marks a packet about to be transmitted to a port backend.
	DirTx
	// DirInternal marks a packet generated by the core itself (e.g. BPDU, ARP).
	DirInternal
)

// Metadata carries the per-packet fields set by ingress, mutated by
// processors, and read by egress.
type Metadata struct {
	Port        switchtype.PortId
	Direction   Direction
	Vlan        switchtype.VlanId
	Priority    uint8
	SrcMac      switchtype.MacAddr
	DstMac      switchtype.MacAddr
	EtherType   uint16
	IsTagged    bool
	IsDropped   bool
	TimestampUs int64
}

func defaultMetadata() Metadata {
	return Metadata{
		Port:      switchtype.PortInvalid,
		Direction: DirInvalid,
	}
}

// Buffer is a fixed-capacity byte buffer with attached metadata. The zero
// value is not valid; construct with Allocate.
type Buffer struct {
	data     []byte
	length   int
	Metadata Metadata
	UserData interface{}
}

var bufferPool = sync.Pool{
	New: func() interface{} {
		return &Buffer{}
	},
}

// Allocate returns a zero-initialized Buffer with the requested capacity,
// drawn from a pool when possible.
func Allocate(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, coreerr.New(coreerr.KindInvalidArgument, "packet size must be positive")
	}
	if size > MaxPacketSize {
		return nil, coreerr.New(coreerr.KindResourceExhausted, "packet size exceeds MAX_PACKET_SIZE")
	}

	b := bufferPool.Get().(*Buffer)
	if cap(b.data) < size {
		b.data = make([]byte, size)
	} else {
		b.data = b.data[:size:size]
		for i := range b.data {
			b.data[i] = 0
		}
	}
	b.length = 0
	b.Metadata = defaultMetadata()
	b.UserData = nil
	return b, nil
}

// Release returns the buffer to the pool. Callers must not touch b after
// calling Release.
func Release(b *Buffer) {
	if b == nil {
		return
	}
	bufferPool.Put(b)
}

// Capacity returns the buffer's fixed allocation size.
func (b *Buffer) Capacity() int {
	return cap(b.data)
}

// Len returns the number of valid bytes currently in the buffer.
func (b *Buffer) Len() int {
	return b.length
}

// Reset clears the buffer's length and restores default metadata. Capacity
// is unchanged.
func (b *Buffer) Reset() {
	b.length = 0
	b.Metadata = defaultMetadata()
}

// Append copies src onto the end of the buffer, growing length by len(src).
func (b *Buffer) Append(src []byte) error {
	n := len(src)
	if b.length+n > b.Capacity() {
		return coreerr.New(coreerr.KindOverflow, "append exceeds packet capacity")
	}
	copy(b.data[b.length:b.length+n], src)
	b.length += n
	return nil
}

// PeekByte returns the single byte at off without modifying the buffer.
func (b *Buffer) PeekByte(off int) (byte, error) {
	if off < 0 || off >= b.length {
		return 0, coreerr.New(coreerr.KindOutOfBounds, "peek_byte offset out of range")
	}
	return b.data[off], nil
}

// Peek copies n bytes starting at off into dst without modifying the buffer.
func (b *Buffer) Peek(off, n int, dst []byte) error {
	if n == 0 {
		return nil
	}
	if off < 0 || n < 0 || off+n > b.length {
		return coreerr.New(coreerr.KindOutOfBounds, "peek range out of bounds")
	}
	copy(dst, b.data[off:off+n])
	return nil
}

// Copy is an alias for Peek, matching the spec's distinct-but-identical
// copy(p, off, n, dst) operation.
func (b *Buffer) Copy(off, n int, dst []byte) error {
	return b.Peek(off, n, dst)
}

// Update overwrites n bytes starting at off with src, in place.
func (b *Buffer) Update(off int, src []byte, n int) error {
	if n == 0 {
		return nil
	}
	if off < 0 || n < 0 || off+n > b.length {
		return coreerr.New(coreerr.KindOutOfBounds, "update range out of bounds")
	}
	copy(b.data[off:off+n], src[:n])
	return nil
}

// Clone returns an independent buffer with copied bytes and metadata;
// UserData is not copied.
func (b *Buffer) Clone() (*Buffer, error) {
	clone, err := Allocate(b.Capacity())
	if err != nil {
		return nil, err
	}
	clone.length = b.length
	copy(clone.data[:b.length], b.data[:b.length])
	clone.Metadata = b.Metadata
	return clone, nil
}

// Resize adjusts the buffer's length. If newLen fits within capacity, only
// length changes. Otherwise the buffer is reallocated to hold newLen; on
// failure b is left unchanged.
func (b *Buffer) Resize(newLen int) error {
	if newLen < 0 {
		return coreerr.New(coreerr.KindInvalidArgument, "resize length cannot be negative")
	}
	if newLen <= b.Capacity() {
		if newLen > b.length {
			for i := b.length; i < newLen; i++ {
				b.data[i] = 0
			}
		}
		b.length = newLen
		return nil
	}

	if newLen > MaxPacketSize {
		return coreerr.New(coreerr.KindResourceExhausted, "resize exceeds MAX_PACKET_SIZE")
	}

	grown := make([]byte, newLen)
	copy(grown, b.data[:b.length])
	b.data = grown
	b.length = newLen
	return nil
}

// Insert shifts bytes at and after off forward by n and writes src into the
// gap, growing the buffer via Resize if needed.
func (b *Buffer) Insert(off int, src []byte, n int) error {
	if off < 0 || off > b.length || n < 0 {
		return coreerr.New(coreerr.KindOutOfBounds, "insert offset out of range")
	}
	oldLen := b.length
	if err := b.Resize(oldLen + n); err != nil {
		return err
	}
	copy(b.data[off+n:oldLen+n], b.data[off:oldLen])
	copy(b.data[off:off+n], src[:n])
	return nil
}

// Remove shifts bytes after off+n back by n, shrinking the buffer's length.
func (b *Buffer) Remove(off, n int) error {
	if off < 0 || n < 0 || off+n > b.length {
		return coreerr.New(coreerr.KindOutOfBounds, "remove range out of bounds")
	}
	copy(b.data[off:b.length-n], b.data[off+n:b.length])
	b.length -= n
	return nil
}

// Bytes returns the valid prefix of the buffer's underlying storage. The
// slice aliases the buffer and must not be retained past a Reset/Release.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.length]
}
