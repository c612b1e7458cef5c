package ndp

//
// Wire decoding: turns a raw Ethernet frame into an [IncomingPacket]
// ready for [IngressPipe.Run].
//

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// DecodePacket parses a raw Ethernet frame carrying an IPv4/NDP packet.
// It returns [ErrUnsupportedNetworkLayer] if the frame is missing either
// layer.
func DecodePacket(raw []byte) (*IncomingPacket, error) {
	pkt := gopacket.NewPacket(raw, layers.LayerTypeEthernet, gopacket.NoCopy)

	ipLayer := pkt.Layer(layers.LayerTypeIPv4)
	if ipLayer == nil {
		return nil, ErrUnsupportedNetworkLayer
	}
	ip, ok := ipLayer.(*layers.IPv4)
	if !ok {
		return nil, ErrUnsupportedNetworkLayer
	}

	ndpLayer := pkt.Layer(LayerTypeNDP)
	if ndpLayer == nil {
		return nil, ErrUnsupportedNetworkLayer
	}
	hdr, ok := ndpLayer.(*Header)
	if !ok {
		return nil, ErrUnsupportedNetworkLayer
	}

	return &IncomingPacket{
		SrcIP:   ip.SrcIP.String(),
		Header:  hdr,
		Payload: hdr.LayerPayload(),
	}, nil
}
