package idgen

import (
	"errors"
	"strconv"
	"sync"
)

// File IDs are 63-bit positive integers rendered in decimal:
// 41 bits of milliseconds since Epoch, 10 bits of gateway node id and a
// 12 bit per-millisecond sequence.
const (
	nodeBits     = 10
	sequenceBits = 12

	maxNodeID   = 1<<nodeBits - 1
	maxSequence = 1<<sequenceBits - 1

	nodeShift      = sequenceBits
	timestampShift = sequenceBits + nodeBits

	// Epoch is 2024-01-01T00:00:00Z in Unix milliseconds.
	Epoch = 1704067200000

	// MaxClockDrift is how far the clock may step back before generation fails.
	// Switching between the Redis clock and local time causes small steps.
	MaxClockDrift = 10
)

var (
	ErrNodeIDTooLarge = errors.New("node ID too large")
	ErrClockMovedBack = errors.New("clock moved backwards")
)

// Snowflake hands out unique, roughly time ordered file and folder IDs.
type Snowflake struct {
	mu       sync.Mutex
	clock    Clock
	nodeID   int64
	lastTime int64
	sequence int64
}

// New creates a generator for the gateway identified by nodeID.
func New(nodeID int64, clock Clock) (*Snowflake, error) {
	if nodeID < 0 || nodeID > maxNodeID {
		return nil, ErrNodeIDTooLarge
	}
	if clock == nil {
		clock = &SystemClock{}
	}
	return &Snowflake{clock: clock, nodeID: nodeID, lastTime: -1}, nil
}

// NextID returns the next ID in decimal form.
func (s *Snowflake) NextID() (string, error) {
	id, err := s.next()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *Snowflake) next() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if now < s.lastTime {
		if s.lastTime-now > MaxClockDrift {
			return 0, ErrClockMovedBack
		}
		now = s.waitPast(s.lastTime - 1)
	}

	if now == s.lastTime {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			now = s.waitPast(s.lastTime)
		}
	} else {
		s.sequence = 0
	}
	s.lastTime = now

	return (now-Epoch)<<timestampShift | s.nodeID<<nodeShift | s.sequence, nil
}

// waitPast spins until the clock reads later than ms.
func (s *Snowflake) waitPast(ms int64) int64 {
	now := s.clock.Now()
	for now <= ms {
		now = s.clock.Now()
	}
	return now
}
