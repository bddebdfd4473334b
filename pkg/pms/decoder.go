// Package pms drives a Plantower PMS7003 particle sensor over its UART
// link: a byte-level frame decoder with checksum verification and
// resynchronization, the fixed command sequences for power and mode
// control, and a blocking read helper with a deadline.
package pms

import (
	"time"
)

const (
	sync0 = 0x42
	sync1 = 0x4D

	// lengthField is the only frame length the sensor emits: 13 data
	// words plus the checksum word.
	lengthField = 28

	// frameSize is the on-wire size including sync and length bytes.
	frameSize = 32
)

// InterByteTimeout resets the parser when the stream stalls mid-frame.
// After a dropped byte or a sensor reset the partial frame can never
// complete, so waiting longer only delays resynchronization.
const InterByteTimeout = 100 * time.Millisecond

// Stats counts decoder outcomes since construction. Counters only grow;
// transient protocol errors are recovered by resync and surface nowhere
// else.
type Stats struct {
	Frames         uint64
	SyncErrors     uint64
	LengthErrors   uint64
	ChecksumErrors uint64
	Timeouts       uint64
}

// Decoder is the frame parser state machine. Feed it one byte at a time;
// it yields a Frame when a complete, checksum-valid frame has arrived.
// The zero value is ready to use.
type Decoder struct {
	payload [lengthField]byte
	idx     int
	sum     uint16
	length  uint16
	last    time.Time
	stats   Stats
}

// Feed consumes one byte read at time now. It returns a decoded frame and
// true when that byte completes a valid frame. Malformed length, checksum
// mismatch and inter-byte timeout all reset the parser silently; the
// caller sees nothing but "no frame yet".
func (d *Decoder) Feed(b byte, now time.Time) (Frame, bool) {
	if d.idx > 0 && now.Sub(d.last) > InterByteTimeout {
		d.idx = 0
		d.stats.Timeouts++
	}
	d.last = now

	switch {
	case d.idx == 0:
		if b != sync0 {
			return Frame{}, false
		}
		d.sum = uint16(b)
		d.idx = 1

	case d.idx == 1:
		if b != sync1 {
			d.idx = 0
			d.stats.SyncErrors++
			return Frame{}, false
		}
		d.sum += uint16(b)
		d.idx = 2

	case d.idx == 2:
		d.sum += uint16(b)
		d.length = uint16(b) << 8
		d.idx = 3

	case d.idx == 3:
		d.sum += uint16(b)
		d.length |= uint16(b)
		if d.length != lengthField {
			d.idx = 0
			d.stats.LengthErrors++
			return Frame{}, false
		}
		d.idx = 4

	default:
		d.payload[d.idx-4] = b
		// The trailing two bytes carry the checksum and are not summed.
		if d.idx < frameSize-2 {
			d.sum += uint16(b)
		}
		d.idx++
		if d.idx == frameSize {
			d.idx = 0
			want := uint16(d.payload[lengthField-2])<<8 | uint16(d.payload[lengthField-1])
			if d.sum != want {
				d.stats.ChecksumErrors++
				return Frame{}, false
			}
			d.stats.Frames++
			return parsePayload(d.payload[:]), true
		}
	}

	return Frame{}, false
}

// Reset discards any partially assembled frame. Stats are preserved.
func (d *Decoder) Reset() {
	d.idx = 0
	d.sum = 0
}

// Stats returns a copy of the decoder's counters.
func (d *Decoder) Stats() Stats {
	return d.stats
}
