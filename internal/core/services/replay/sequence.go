package replay

import (
	"encoding/binary"
	"sync"
)

// SequenceTracker is the gateway's Nonce/Sequence Manager (spec §2's
// dedicated "Nonce/sequence manager" component): it extends a MAVLink
// frame's 1-byte wrapping sequence number into a monotonic 8-byte
// counter per peer, so that the Replay Manager's nonce window has a
// stable identity to key on even when the crypto envelope is disabled
// and no AEAD nonce accompanies the frame. Single-writer, short
// exclusive section, same pattern as Manager.
type SequenceTracker struct {
	mu    sync.Mutex
	state map[string]*peerSeq
}

type peerSeq struct {
	epoch  uint64
	lastB  uint8
	inited bool
}

func NewSequenceTracker() *SequenceTracker {
	return &SequenceTracker{state: make(map[string]*peerSeq)}
}

// Extend folds a peer's 1-byte wrapping sequence number into a 12-byte
// nonce suitable for Manager.Check: 4 zero-padded bytes followed by an
// 8-byte big-endian extended counter (epoch*256 + seq), bumping the
// epoch whenever the wrapping byte decreases, mirroring §4.4's "trailing
// 8 bytes are a strictly increasing 64-bit counter" shape.
func (t *SequenceTracker) Extend(peerKey string, seq uint8) [12]byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	ps, ok := t.state[peerKey]
	if !ok {
		ps = &peerSeq{}
		t.state[peerKey] = ps
	}
	if ps.inited && seq < ps.lastB {
		ps.epoch++
	}
	ps.lastB = seq
	ps.inited = true

	var nonce [12]byte
	counter := ps.epoch<<8 | uint64(seq)
	binary.BigEndian.PutUint64(nonce[4:], counter)
	return nonce
}

// Reset wipes all per-peer sequence state.
func (t *SequenceTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = make(map[string]*peerSeq)
}
