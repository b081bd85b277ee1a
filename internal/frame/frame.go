// Package frame defines the raw CAN frame handed from a transport to the
// decoding core.
package frame

import "fmt"

// MaxDataLength is the largest classic CAN payload.
const MaxDataLength = 8

// Frame represents a single received CAN bus frame.
type Frame struct {
	ID        uint32
	Timestamp float64 // seconds
	Extended  bool
	Data      []byte
}

// New builds a frame, copying data so the caller may reuse its buffer.
func New(id uint32, ts float64, data []byte) Frame {
	buf := make([]byte, len(data))
	copy(buf, data)
	return Frame{
		ID:        id,
		Timestamp: ts,
		Extended:  id > 0x7FF,
		Data:      buf,
	}
}

// IDString formats the arbitration ID the way candump prints it: three hex
// digits for standard IDs, eight for extended ones.
func (f Frame) IDString() string {
	if f.Extended {
		return fmt.Sprintf("%08x", f.ID)
	}
	return fmt.Sprintf("%03x", f.ID)
}

func (f Frame) String() string {
	return fmt.Sprintf("ID:0x%s Data[%d]: %X", f.IDString(), len(f.Data), f.Data)
}
