package ndp

//
// Egress pipeline: frames outgoing (meta, payload|ctrl) items from the
// arbiter queue into wire packets and serialises them at link rate
// (spec.md §4.2).
//

import (
	"context"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// EgressConfig configures an [EgressPipe]. All fields are MANDATORY.
type EgressConfig struct {
	// Logger is the logger to use.
	Logger Logger

	// NICMAC is the Ethernet source address of this endpoint.
	NICMAC net.HardwareAddr

	// SwitchMAC is the Ethernet address of the next hop.
	SwitchMAC net.HardwareAddr

	// SrcIP is this endpoint's IP address, used as the IP source of
	// every packet this pipe emits.
	SrcIP net.IP

	// TxLinkRateBitsPerNs is the transmit link rate in bits/nanosecond,
	// used to compute the packetisation delay of each outgoing packet.
	TxLinkRateBitsPerNs float64
}

// EgressPipe dequeues (meta, pkt) items from the arbiter queue, frames
// them into Ethernet/IP(/NDP) packets, and serialises them onto the TX
// link at the configured rate. The zero value is invalid; use
// [NewEgressPipe].
type EgressPipe struct {
	cfg EgressConfig
}

// NewEgressPipe creates an [EgressPipe].
func NewEgressPipe(cfg EgressConfig) *EgressPipe {
	return &EgressPipe{cfg: cfg}
}

// Run dequeues items from arbiter until it is closed or ctx is
// cancelled, framing and serialising each one onto txOut in turn. Because
// the packetisation delay is strictly serial, data packets preserve FIFO
// order through this pipe (spec.md §5 "Ordering guarantees").
func (ep *EgressPipe) Run(ctx context.Context, arbiter <-chan *ArbiterItem, txOut chan<- []byte) {
	ep.cfg.Logger.Infof("ndp: egress pipe up")
	defer ep.cfg.Logger.Infof("ndp: egress pipe down")
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-arbiter:
			if !ok {
				return
			}
			ep.send(ctx, item, txOut)
		}
	}
}

// send frames one item and serialises it, honouring the packetisation
// delay before handing it to txOut.
func (ep *EgressPipe) send(ctx context.Context, item *ArbiterItem, txOut chan<- []byte) {
	raw, err := ep.frame(item)
	if err != nil {
		ep.cfg.Logger.Warnf("ndp: egress: frame: %s", err.Error())
		return
	}

	delay := ep.packetisationDelay(len(raw))
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	select {
	case <-ctx.Done():
	case txOut <- raw:
	}
}

// packetisationDelay computes len(pkt)*8/tx_link_rate as a time.Duration
// of nanoseconds, per spec.md §4.2 step 4.
func (ep *EgressPipe) packetisationDelay(pktLen int) time.Duration {
	if ep.cfg.TxLinkRateBitsPerNs <= 0 {
		return 0
	}
	ns := float64(pktLen*8) / ep.cfg.TxLinkRateBitsPerNs
	return time.Duration(ns) * time.Nanosecond
}

// frame builds the Ethernet/IP(/NDP) wire packet for one arbiter item.
func (ep *EgressPipe) frame(item *ArbiterItem) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       ep.cfg.NICMAC,
		DstMAC:       ep.cfg.SwitchMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: IPProtocolNDP,
		SrcIP:    ep.cfg.SrcIP,
		DstIP:    net.ParseIP(item.Meta.DstIP),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

	if item.Meta.IsData {
		ep.cfg.Logger.Debugf("ndp: egress: data pkt msg=%d offset=%d", item.Meta.TxMsgID, item.Meta.PktOffset)
		hdr := &Header{
			Flags:      FlagData,
			SrcContext: item.Meta.SrcContext,
			DstContext: item.Meta.DstContext,
			TxMsgID:    item.Meta.TxMsgID,
			MsgLen:     item.Meta.MsgLen,
			PktOffset:  item.Meta.PktOffset,
		}
		payload := gopacket.Payload(item.Payload)
		if err := gopacket.SerializeLayers(buf, opts, eth, ip, hdr, payload); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	ep.cfg.Logger.Debugf("ndp: egress: ctrl pkt flags=%s", item.Ctrl.Flags)
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, item.Ctrl); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
