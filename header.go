package ndp

//
// NDP wire header: a 24-byte fixed layout layer for gopacket.
//

import (
	"encoding/binary"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// HeaderLen is the fixed, on-wire size of an NDP header in bytes.
const HeaderLen = 24

// reservedLen is the size of the zero-filled padding at the tail of
// the header.
const reservedLen = 11

// IPProtocolNDP is the layer-3 protocol number NDP uses inside IP.
const IPProtocolNDP = layers.IPProtocol(0x99)

// Flags is the 8-bit NDP flag set. Flags are not mutually exclusive.
type Flags uint8

const (
	// FlagData marks a data packet.
	FlagData Flags = 1 << iota

	// FlagACK acknowledges a single packet.
	FlagACK

	// FlagNACK marks a packet offset for retransmission.
	FlagNACK

	// FlagPULL carries receive credit (PullOffset).
	FlagPULL

	// FlagCHOP marks a packet that was trimmed by a congested switch.
	FlagCHOP

	flagF1
	flagF2
	flagF3
)

// Has reports whether all bits of want are set in f.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

// String renders the set flags, e.g. "DATA|CHOP".
func (f Flags) String() string {
	names := []struct {
		bit  Flags
		name string
	}{
		{FlagData, "DATA"}, {FlagACK, "ACK"}, {FlagNACK, "NACK"},
		{FlagPULL, "PULL"}, {FlagCHOP, "CHOP"},
	}
	out := ""
	for _, n := range names {
		if f.Has(n.bit) {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	if out == "" {
		return "(none)"
	}
	return out
}

// LayerTypeNDP identifies the NDP layer with gopacket.
var LayerTypeNDP = gopacket.RegisterLayerType(
	5911,
	gopacket.LayerTypeMetadata{Name: "NDP", Decoder: gopacket.DecodeFunc(decodeNDP)},
)

func init() {
	layers.IPProtocolMetadata[IPProtocolNDP] = layers.EnumMetadata{
		DecodeWith: gopacket.DecodeFunc(decodeNDP),
		Name:       "NDP",
		LayerType:  LayerTypeNDP,
	}
}

// Header is the 24-byte NDP header, implemented as both a
// [gopacket.DecodingLayer] and a [gopacket.SerializableLayer].
type Header struct {
	layers.BaseLayer

	// Flags is the 8-bit flag set.
	Flags Flags

	// SrcContext is the sender's logical endpoint identifier.
	SrcContext uint16

	// DstContext is the receiver's logical endpoint identifier.
	DstContext uint16

	// TxMsgID is the sender-chosen message handle, unique per
	// (src_ip, src_context).
	TxMsgID uint16

	// MsgLen is the message length in packets.
	MsgLen uint16

	// PktOffset is the 0-based packet index within the message.
	PktOffset uint16

	// PullOffset is the highest packet index the receiver has
	// granted credit for.
	PullOffset uint16
}

var (
	_ gopacket.Layer             = &Header{}
	_ gopacket.DecodingLayer     = &Header{}
	_ gopacket.SerializableLayer = &Header{}
)

// LayerType implements gopacket.Layer.
func (h *Header) LayerType() gopacket.LayerType { return LayerTypeNDP }

// CanDecode implements gopacket.DecodingLayer.
func (h *Header) CanDecode() gopacket.LayerClass { return LayerTypeNDP }

// NextLayerType implements gopacket.DecodingLayer.
func (h *Header) NextLayerType() gopacket.LayerType { return gopacket.LayerTypePayload }

// DecodeFromBytes implements gopacket.DecodingLayer.
func (h *Header) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < HeaderLen {
		return ErrShortHeader
	}
	h.Flags = Flags(data[0])
	h.SrcContext = binary.BigEndian.Uint16(data[1:3])
	h.DstContext = binary.BigEndian.Uint16(data[3:5])
	h.TxMsgID = binary.BigEndian.Uint16(data[5:7])
	h.MsgLen = binary.BigEndian.Uint16(data[7:9])
	h.PktOffset = binary.BigEndian.Uint16(data[9:11])
	h.PullOffset = binary.BigEndian.Uint16(data[11:13])
	h.BaseLayer = layers.BaseLayer{
		Contents: data[:HeaderLen],
		Payload:  data[HeaderLen:],
	}
	return nil
}

// SerializeTo implements gopacket.SerializableLayer.
func (h *Header) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(HeaderLen)
	if err != nil {
		return err
	}
	bytes[0] = byte(h.Flags)
	binary.BigEndian.PutUint16(bytes[1:3], h.SrcContext)
	binary.BigEndian.PutUint16(bytes[3:5], h.DstContext)
	binary.BigEndian.PutUint16(bytes[5:7], h.TxMsgID)
	binary.BigEndian.PutUint16(bytes[7:9], h.MsgLen)
	binary.BigEndian.PutUint16(bytes[9:11], h.PktOffset)
	binary.BigEndian.PutUint16(bytes[11:13], h.PullOffset)
	for i := HeaderLen - reservedLen; i < HeaderLen; i++ {
		bytes[i] = 0
	}
	return nil
}

// decodeNDP is the gopacket.DecodeFunc registered for [LayerTypeNDP] and
// for IP protocol [IPProtocolNDP].
func decodeNDP(data []byte, p gopacket.PacketBuilder) error {
	h := &Header{}
	if err := h.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(h)
	return p.NextDecoder(gopacket.LayerTypePayload)
}
