package ndp

//
// Shared data model
//

// RxMsgID is the receiver-assigned handle for a message being reassembled.
// It is opaque to this package; the assembler collaborator assigns it.
type RxMsgID uint64

// EgressMeta is the metadata the arbiter queue carries alongside a wire
// payload or an already-built control header. It is produced either by
// the external transmit collaborator (for data) or by [PktGen] (for
// control packets).
type EgressMeta struct {
	// IsData is true when this item carries a data payload that
	// [EgressPipe] must still wrap in an NDP DATA header.
	IsData bool

	// DstIP is the destination IP address.
	DstIP string

	// SrcContext, DstContext, TxMsgID, MsgLen, and PktOffset are only
	// meaningful when IsData is true; [EgressPipe] copies them onto the
	// synthesised NDP header.
	SrcContext uint16
	DstContext uint16
	TxMsgID    uint16
	MsgLen     uint16
	PktOffset  uint16
}

// ReassembleMeta is the metadata [IngressPipe] hands to the assembler
// collaborator alongside a data packet's payload.
type ReassembleMeta struct {
	RxMsgID    RxMsgID
	SrcIP      string
	SrcContext uint16
	TxMsgID    uint16
	MsgLen     uint16
	PktOffset  uint16
}

// ArbiterItem is one entry on the arbiter queue that feeds [EgressPipe].
// Exactly one of Payload or Ctrl is meaningful, selected by Meta.IsData.
type ArbiterItem struct {
	Meta *EgressMeta

	// Payload is the data payload to wrap in a DATA header. Valid when
	// Meta.IsData is true.
	Payload []byte

	// Ctrl is an already-built NDP control header (ACK/NACK/PULL).
	// Valid when Meta.IsData is false.
	Ctrl *Header
}

// NetworkPacket wraps a raw, already-serialised frame with the priority
// the TOR queue should give it. Priority 0 is control, 1 is data; lower
// value means higher priority.
type NetworkPacket struct {
	Pkt      []byte
	Priority int
}

// OpCode is the read-modify-write operation [CreditToBtxEventFunc] asks
// the transmit collaborator to apply. NDP only ever uses OpWrite, but the
// type mirrors the switch-ASIC register-extern abstraction spec.md
// describes.
type OpCode string

// OpWrite is the only OpCode this protocol uses: overwrite the stored
// credit with new_value, conditioned on RelOp.
const OpWrite OpCode = "write"

// RelOp is the comparator [CreditToBtxEventFunc] uses to decide whether
// to apply its write: apply iff relOp(newValue, storedValue) holds.
type RelOp func(newValue, storedValue uint16) bool

// GT is the "strictly greater than" [RelOp], used by NDP to keep credit
// monotonically non-decreasing.
func GT(newValue, storedValue uint16) bool { return newValue > storedValue }

// GetRxMsgInfoFunc is a pure lookup into the assembler's reassembly
// state. It MUST NOT mutate observable state. ackNo is the receiver's
// ACK number (lowest unfilled offset) *before* this packet is integrated.
type GetRxMsgInfoFunc func(
	srcIP string, srcContext, txMsgID, msgLen, pktOffset uint16,
) (rxMsgID RxMsgID, ackNo uint16, isNewMsg bool, isNewPkt bool)

// DeliveredEventFunc informs the transmit collaborator that a packet (or,
// if isInterval, a range) has been acknowledged.
type DeliveredEventFunc func(txMsgID, pktOffset uint16, isInterval bool, msgLen uint16)

// CreditToBtxEventFunc informs the transmit collaborator of a
// retransmit mark and/or a credit update. rtxPkt and newCredit are nil
// when not applicable (e.g. a pure PULL carries no rtxPkt, a pure NACK
// carries no newCredit). The transmit collaborator must apply op to its
// stored credit iff relOp(newCredit, stored) holds.
type CreditToBtxEventFunc func(
	txMsgID uint16, rtxPkt *uint16, newCredit *uint16,
	op OpCode, compVal *uint16, relOp RelOp,
)

// CtrlPktEventFunc asks [PktGen] to emit the requested control packet(s).
// txMsgID, msgLen, and pktOffset are copied from the packet that
// triggered the event; dstIP/dstContext/srcContext are already swapped
// relative to it; pullOffset is the receive credit to advertise.
type CtrlPktEventFunc func(
	genACK, genNACK, genPULL bool,
	dstIP string, dstContext, srcContext, txMsgID, msgLen, pktOffset, pullOffset uint16,
)

// AssembleEnqueueFunc hands a reassembled data packet's payload to the
// assembler collaborator.
type AssembleEnqueueFunc func(meta *ReassembleMeta, payload []byte)
