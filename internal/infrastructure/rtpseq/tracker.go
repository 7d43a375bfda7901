package rtpseq

import (
	"sync"

	"github.com/pion/rtp"
)

// Tracker extends 16-bit RTP sequence numbers into a monotonic 64-bit
// counter per stream, surviving wrap-around. Video payloads forwarded by a
// relay are snooped through here so sequence gaps feed loss accounting.
type Tracker struct {
	mu     sync.Mutex
	primed bool
	last   uint16
	cycles uint64
}

// Observe parses the RTP header of a payload and returns the extended
// sequence number. Non-RTP payloads return false and are ignored.
func (t *Tracker) Observe(payload []byte) (uint64, bool) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(payload); err != nil {
		return 0, false
	}
	return t.extend(pkt.SequenceNumber), true
}

func (t *Tracker) extend(seq uint16) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.primed {
		t.primed = true
		t.last = seq
		return uint64(seq)
	}

	switch {
	case seq == t.last:
		return t.cycles<<16 | uint64(seq)
	case seq > t.last:
		if seq-t.last > 0x8000 {
			// Reordered straggler from before the last wrap.
			if t.cycles == 0 {
				return uint64(seq)
			}
			return (t.cycles-1)<<16 | uint64(seq)
		}
		t.last = seq
	default:
		if t.last-seq > 0x8000 {
			// Forward past zero: the 16-bit counter wrapped.
			t.cycles++
			t.last = seq
		}
		// Small backward delta is plain reordering within this cycle.
	}
	return t.cycles<<16 | uint64(seq)
}
