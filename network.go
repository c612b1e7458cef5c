package ndp

//
// Network (TOR) model: a single top-of-rack hop that adds jitter,
// deterministically trims data packets under congestion, and enforces
// strict priority between control and data traffic (spec.md §4.4).
//

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	ndpmetrics "github.com/nanotransport/ndp/metrics"
)

// networkTrimmedLen is the size, in bytes, a chopped data packet is
// truncated to — enough for Ethernet/IP/NDP headers (spec.md §4.4
// "Trimming policy").
const networkTrimmedLen = 64

// NetworkConfig configures a [Network]. All fields are MANDATORY unless
// noted otherwise.
type NetworkConfig struct {
	// Logger is the logger to use.
	Logger Logger

	// DataPktDelay samples the one-way jitter for untrimmed data packets.
	DataPktDelay DistGenerator

	// CtrlPktDelay samples the one-way jitter for control packets
	// (including chopped data packets, which are re-classed as control).
	CtrlPktDelay DistGenerator

	// DataPktTrimProb is the deterministic 1-in-N trim rate; a packet is
	// trimmed every floor(1/DataPktTrimProb)-th data packet. 0 disables
	// trimming.
	DataPktTrimProb float64

	// RxLinkRateBitsPerNs is the outgoing (receiver-side) link rate in
	// bits/nanosecond, used to serialise the TOR queue's output.
	RxLinkRateBitsPerNs float64

	// Metrics is an OPTIONAL Prometheus collector. When nil, no metrics
	// are recorded.
	Metrics *ndpmetrics.Collector
}

// Network models a single top-of-rack hop between two endpoints' egress
// and ingress pipes. Two cooperative loops drive it: [Network.RunRx]
// receives frames leaving the sender's [EgressPipe] and schedules their
// arrival into the TOR queue; [Network.RunTx] drains the TOR queue onto
// the receiver's ingress input at the configured link rate. The zero
// value is invalid; use [NewNetwork].
type Network struct {
	cfg NetworkConfig

	mu       sync.Mutex
	queue    *torQueue
	notifyCh chan struct{}

	dataPktCounter int
	trimEvery      int
}

// NewNetwork creates a [Network].
func NewNetwork(cfg NetworkConfig) *Network {
	trimEvery := 0
	if cfg.DataPktTrimProb > 0 {
		trimEvery = int(math.Floor(1 / cfg.DataPktTrimProb))
	}
	return &Network{
		cfg:       cfg,
		queue:     newTORQueue(),
		notifyCh:  make(chan struct{}, 1),
		trimEvery: trimEvery,
	}
}

// RunRx reads frames from rxIn (the sender's [EgressPipe] output), applies
// the trimming policy to data packets, and schedules each frame's
// delayed arrival into the TOR queue. RunRx blocks until rxIn is closed
// or ctx is cancelled.
func (n *Network) RunRx(ctx context.Context, rxIn <-chan []byte) {
	n.cfg.Logger.Infof("ndp: network rx up")
	defer n.cfg.Logger.Infof("ndp: network rx down")
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-rxIn:
			if !ok {
				return
			}
			wg.Add(1)
			go func(raw []byte) {
				defer wg.Done()
				n.admit(ctx, raw)
			}(raw)
		}
	}
}

// admit classifies one frame and schedules its arrival, implementing
// spec.md §4.4's "Delay/trim model".
func (n *Network) admit(ctx context.Context, raw []byte) {
	flags, ok := n.classify(raw)
	if !ok {
		n.cfg.Logger.Warnf("ndp: network: unparseable frame, dropping")
		return
	}

	if !flags.Has(FlagData) {
		n.forward(ctx, raw, 0, n.cfg.CtrlPktDelay)
		return
	}

	n.mu.Lock()
	n.dataPktCounter++
	counter := n.dataPktCounter
	n.mu.Unlock()

	if n.trimEvery > 0 && counter%n.trimEvery == 0 {
		n.cfg.Logger.Debugf("ndp: network: trimming data pkt %d", counter)
		if n.cfg.Metrics != nil {
			n.cfg.Metrics.ObserveTrimApplied()
		}
		n.forward(ctx, n.trim(raw), 0, n.cfg.CtrlPktDelay)
		return
	}

	n.forward(ctx, raw, 1, n.cfg.DataPktDelay)
}

// forward waits the jitter dist samples, then enqueues raw at priority
// into the TOR queue.
func (n *Network) forward(ctx context.Context, raw []byte, priority int, dist DistGenerator) {
	var delay time.Duration
	if dist != nil {
		delay = dist.Next()
	}
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}
	n.enqueue(raw, priority)
}

// enqueue pushes raw onto the TOR queue and wakes [Network.RunTx].
func (n *Network) enqueue(raw []byte, priority int) {
	n.mu.Lock()
	n.queue.push(NetworkPacket{Pkt: raw, Priority: priority})
	n.mu.Unlock()
	select {
	case n.notifyCh <- struct{}{}:
	default:
	}
}

// RunTx drains the TOR queue onto txOut at the configured link rate,
// giving strict priority to control packets (priority 0) over data
// packets (priority 1), preserving FIFO order within each class. RunTx
// blocks until ctx is cancelled.
func (n *Network) RunTx(ctx context.Context, txOut chan<- []byte) {
	n.cfg.Logger.Infof("ndp: network tx up")
	defer n.cfg.Logger.Infof("ndp: network tx down")
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.notifyCh:
		}
		for n.drainOne(ctx, txOut) {
		}
	}
}

// drainOne pops and transmits a single packet, if any is queued. It
// returns false when the queue is empty or ctx is cancelled.
func (n *Network) drainOne(ctx context.Context, txOut chan<- []byte) bool {
	n.mu.Lock()
	if n.queue.len() == 0 {
		n.mu.Unlock()
		return false
	}
	pkt := n.queue.pop()
	n.mu.Unlock()

	delay := n.serializationDelay(len(pkt.Pkt))
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
	}

	select {
	case <-ctx.Done():
		return false
	case txOut <- pkt.Pkt:
	}
	return true
}

// serializationDelay computes len(pkt)*8/rx_link_rate, per spec.md §4.4
// step "delay based on pkt length and link rate".
func (n *Network) serializationDelay(pktLen int) time.Duration {
	if n.cfg.RxLinkRateBitsPerNs <= 0 {
		return 0
	}
	ns := float64(pktLen*8) / n.cfg.RxLinkRateBitsPerNs
	return time.Duration(ns) * time.Nanosecond
}

// classify reports the NDP flags of a raw Ethernet frame.
func (n *Network) classify(raw []byte) (Flags, bool) {
	offset, ok := ndpFlagsOffset(raw)
	if !ok {
		return 0, false
	}
	return Flags(raw[offset]), true
}

// trim sets the CHOP flag and truncates raw to [networkTrimmedLen]
// bytes, per spec.md §4.4's "Trimming policy". It operates on a copy;
// the original raw is left untouched since it may still be in flight to
// other forward calls.
func (n *Network) trim(raw []byte) []byte {
	offset, ok := ndpFlagsOffset(raw)
	if !ok {
		return raw
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	out[offset] |= byte(FlagCHOP)
	if len(out) > networkTrimmedLen {
		out = out[:networkTrimmedLen]
	}
	return out
}

// ndpFlagsOffset locates the byte offset of the NDP flags field within a
// raw Ethernet/IP/NDP frame by decoding it with gopacket.
func ndpFlagsOffset(raw []byte) (int, bool) {
	pkt := gopacket.NewPacket(raw, layers.LayerTypeEthernet, gopacket.NoCopy)
	ndpLayer := pkt.Layer(LayerTypeNDP)
	if ndpLayer == nil {
		return 0, false
	}
	contents := ndpLayer.LayerContents()
	if len(contents) < HeaderLen {
		return 0, false
	}
	offset := 0
	for _, l := range pkt.Layers() {
		if l.LayerType() == LayerTypeNDP {
			break
		}
		offset += len(l.LayerContents())
	}
	if offset+HeaderLen > len(raw) {
		return 0, false
	}
	return offset, true
}
