package scp

import (
	"github.com/bosagora/agora/ids"
	"github.com/bosagora/agora/qset"
	"github.com/bosagora/agora/util"
)

// Engine is the SCP top-level: it owns every slot this node is working
// on, its own identity, and its quorum configuration (spec.md §4.5).
// Slots are created lazily on first reference and are never evicted by
// the core itself; a host wanting to bound memory purges old slots
// through its own water-mark policy.
type Engine struct {
	self   *LocalNode
	driver Driver
	logger util.Logger
	slots  map[uint64]*Slot
}

// NewEngine constructs an Engine for the given local identity. A nil
// logger is replaced with util.NopLogger{}, matching the rest of the
// module's "logger is a capability, not a global" stance (SPEC_FULL.md
// §2.1).
func NewEngine(nodeID ids.NodeID, isValidator bool, qs qset.QuorumSet, qsHash ids.Hash, driver Driver, logger util.Logger) *Engine {
	if logger == nil {
		logger = util.NopLogger{}
	}
	return &Engine{
		self: &LocalNode{
			NodeID:      nodeID,
			IsValidator: isValidator,
			QSet:        qs,
			QSetHash:    qsHash,
		},
		driver: driver,
		logger: logger,
		slots:  make(map[uint64]*Slot),
	}
}

func (e *Engine) slot(index uint64) *Slot {
	s, ok := e.slots[index]
	if !ok {
		s = NewSlot(index, e.self, e.driver, e.logger)
		e.slots[index] = s
	}
	return s
}

// ReceiveEnvelope dispatches an incoming envelope to its slot, creating
// the slot lazily if this is the first statement seen for that index.
func (e *Engine) ReceiveEnvelope(env *Envelope) EnvelopeState {
	return e.slot(env.Statement.SlotIndex()).ReceiveEnvelope(env)
}

// Nominate boots or bumps nomination for the given slot.
func (e *Engine) Nominate(slotIndex uint64, value, previousValue ids.Value) bool {
	return e.slot(slotIndex).Nominate(value, previousValue)
}

// GetLatestMessagesSend returns self's latest envelopes for slotIndex.
func (e *Engine) GetLatestMessagesSend(slotIndex uint64) []*Envelope {
	return e.slot(slotIndex).GetLatestMessagesSend()
}

// SetStateFromEnvelope seeds a slot's self-state from a previously
// emitted envelope, for a host resuming after a restart.
func (e *Engine) SetStateFromEnvelope(slotIndex uint64, env *Envelope) {
	e.slot(slotIndex).SetStateFromEnvelope(env)
}

// GetExternalizingState reports a slot's phase and decided value.
func (e *Engine) GetExternalizingState(slotIndex uint64) ExternalizingState {
	return e.slot(slotIndex).GetExternalizingState()
}

// IsValidator reports whether self participates in federated voting
// (a watcher node observes but never votes).
func (e *Engine) IsValidator() bool { return e.self.IsValidator }

// LocalNodeID returns self's identity.
func (e *Engine) LocalNodeID() ids.NodeID { return e.self.NodeID }

// PurgeSlot evicts a slot's in-memory state. The core itself never
// calls this; it exists for a host enforcing a water-mark (spec.md
// §4.5: "Slots are created on demand but may be purged by the host").
func (e *Engine) PurgeSlot(slotIndex uint64) {
	delete(e.slots, slotIndex)
}
