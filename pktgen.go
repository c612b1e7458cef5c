package ndp

//
// Control packet generator: coalesces ACK/NACK into PULLs when legal and
// paces PULLs to enforce receiver-driven rate control (spec.md §4.3).
//

import (
	"context"
	"sync"
	"time"

	ndpmetrics "github.com/nanotransport/ndp/metrics"
)

// etherIPNDPHeaderLen is the combined size, in bytes, of the Ethernet,
// IPv4, and NDP headers the pacer accounts for when computing
// inter_packet_time (14 + 20 + 24, matching spec.md §8 scenario 6).
const etherIPNDPHeaderLen = 14 + 20 + 24

// PktGenConfig configures a [PktGen]. All fields are MANDATORY unless
// noted otherwise.
type PktGenConfig struct {
	// Logger is the logger to use.
	Logger Logger

	// MaxPktLenBytes is the maximum data packet size, used to compute
	// the pacer's inter_packet_time.
	MaxPktLenBytes int

	// RxLinkRateBitsPerNs is the incoming link rate in bits/nanosecond.
	RxLinkRateBitsPerNs float64

	// Metrics is an OPTIONAL Prometheus collector. When nil, no metrics
	// are recorded.
	Metrics *ndpmetrics.Collector
}

// pacerItem is one PULL (possibly coalesced with ACK/NACK) waiting in
// the pacer queue for its release delay to elapse.
type pacerItem struct {
	meta  *EgressMeta
	hdr   *Header
	delay time.Duration
}

// PktGen emits ACK, NACK, and PULL control packets on request via
// [PktGen.CtrlPktEvent], coalescing them when feasible and pacing PULLs
// so that no more than one leaves per serialisation time of a
// max-sized data packet on the incoming link. The zero value is
// invalid; use [NewPktGen].
type PktGen struct {
	cfg     PktGenConfig
	arbiter chan<- *ArbiterItem

	// interPacketTime is the minimum spacing between PULL releases.
	interPacketTime time.Duration

	// mu guards pacerLastTxTime, the pacer state PktGen owns exclusively.
	mu              sync.Mutex
	pacerLastTxTime time.Time

	pacerQueue chan pacerItem
}

// NewPktGen creates a [PktGen] that writes finished control packets onto
// arbiter. The pacer is primed so that the first PULL it releases is
// unpaced, per spec.md §4.3's "pacer_lastTxTime initialised to
// -inter_packet_time".
func NewPktGen(cfg PktGenConfig, arbiter chan<- *ArbiterItem) *PktGen {
	interPacketTime := interPacketTimeOf(cfg.MaxPktLenBytes, cfg.RxLinkRateBitsPerNs)
	return &PktGen{
		cfg:             cfg,
		arbiter:         arbiter,
		interPacketTime: interPacketTime,
		pacerLastTxTime: time.Now().Add(-interPacketTime),
		pacerQueue:      make(chan pacerItem, 4096),
	}
}

// interPacketTimeOf computes (max_pkt_len+header_len)*8/rx_link_rate.
func interPacketTimeOf(maxPktLenBytes int, rxLinkRateBitsPerNs float64) time.Duration {
	if rxLinkRateBitsPerNs <= 0 {
		return 0
	}
	ns := float64((maxPktLenBytes+etherIPNDPHeaderLen)*8) / rxLinkRateBitsPerNs
	return time.Duration(ns) * time.Nanosecond
}

// InterPacketTime returns the pacer's configured minimum spacing between
// PULL releases.
func (pg *PktGen) InterPacketTime() time.Duration { return pg.interPacketTime }

// Run drives the pacer goroutine: it dequeues paced PULLs one at a time,
// sleeps each one's full pacing delay after dequeuing it, and hands it
// to the arbiter queue. Run blocks until
// ctx is cancelled.
func (pg *PktGen) Run(ctx context.Context) {
	pg.cfg.Logger.Infof("ndp: pktgen pacer up")
	defer pg.cfg.Logger.Infof("ndp: pktgen pacer down")
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-pg.pacerQueue:
			if !ok {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(item.delay):
			}
			pg.cfg.Logger.Debugf("ndp: pktgen: pacer releasing %s", item.hdr.Flags)
			pg.emit(item.meta, item.hdr)
		}
	}
}

// CtrlPktEvent is [CtrlPktEventFunc]'s implementation: it is
// non-suspending (spec.md §5) and implements the coalescing rules of
// spec.md §4.3.
func (pg *PktGen) CtrlPktEvent(
	genACK, genNACK, genPULL bool,
	dstIP string, dstContext, srcContext, txMsgID, msgLen, pktOffset, pullOffset uint16,
) {
	pg.cfg.Logger.Debugf(
		"ndp: pktgen: ctrlPktEvent genACK=%v genNACK=%v genPULL=%v", genACK, genNACK, genPULL,
	)
	meta := &EgressMeta{IsData: false, DstIP: dstIP}

	if genPULL {
		delay := pg.pace()
		if pg.cfg.Metrics != nil {
			pg.cfg.Metrics.ObservePullGenerated()
			pg.cfg.Metrics.ObservePullPaced(float64(delay.Nanoseconds()))
		}

		hdr := &Header{
			Flags:      FlagPULL,
			SrcContext: srcContext,
			DstContext: dstContext,
			TxMsgID:    txMsgID,
			MsgLen:     msgLen,
			PktOffset:  pktOffset,
			PullOffset: pullOffset,
		}

		// Coalescing: fold ACK/NACK into the PULL only when it is
		// being released immediately. A delayed PULL must not also
		// delay ACK/NACK, or the sender's retransmit loop would stall.
		if genACK && delay == 0 {
			hdr.Flags |= FlagACK
			genACK = false
			if pg.cfg.Metrics != nil {
				pg.cfg.Metrics.ObservePullCoalesced()
			}
		}
		if genNACK && delay == 0 {
			hdr.Flags |= FlagNACK
			genNACK = false
			if pg.cfg.Metrics != nil {
				pg.cfg.Metrics.ObservePullCoalesced()
			}
		}

		pg.pacerQueue <- pacerItem{meta: meta, hdr: hdr, delay: delay}
	}

	if genACK {
		pg.emit(meta, &Header{
			Flags: FlagACK, SrcContext: srcContext, DstContext: dstContext,
			TxMsgID: txMsgID, MsgLen: msgLen, PktOffset: pktOffset,
		})
	}
	if genNACK {
		pg.emit(meta, &Header{
			Flags: FlagNACK, SrcContext: srcContext, DstContext: dstContext,
			TxMsgID: txMsgID, MsgLen: msgLen, PktOffset: pktOffset,
		})
	}
}

// pace implements the pacing invariant of spec.md §4.3.
func (pg *PktGen) pace() time.Duration {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	now := time.Now()
	txTime := pg.pacerLastTxTime.Add(pg.interPacketTime)

	var delay time.Duration
	if now.Before(txTime) {
		delay = txTime.Sub(now)
		pg.pacerLastTxTime = txTime
	} else {
		delay = 0
		pg.pacerLastTxTime = now
	}
	return delay
}

// emit hands a finished control packet to the arbiter queue without
// blocking, since [PktGen.CtrlPktEvent] must not suspend.
func (pg *PktGen) emit(meta *EgressMeta, hdr *Header) {
	select {
	case pg.arbiter <- &ArbiterItem{Meta: meta, Ctrl: hdr}:
	default:
		pg.cfg.Logger.Warnf("ndp: pktgen: arbiter queue full, dropping %s", hdr.Flags)
		if pg.cfg.Metrics != nil {
			pg.cfg.Metrics.ObserveArbiterDropped(hdr.Flags.String())
		}
	}
}
