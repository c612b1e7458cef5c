package ndp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/gopacket"
)

func TestHeaderRoundTrip(t *testing.T) {
	// testcase describes a round-trip test case for Header.
	type testcase struct {
		// name is the name of this test case
		name string

		// hdr is the header to serialise then parse back
		hdr *Header

		// payload is the payload to append after the header
		payload []byte
	}

	var testcases = []testcase{{
		name: "DATA packet",
		hdr: &Header{
			Flags:      FlagData,
			SrcContext: 1,
			DstContext: 2,
			TxMsgID:    42,
			MsgLen:     10,
			PktOffset:  3,
			PullOffset: 0,
		},
		payload: []byte("hello world"),
	}, {
		name: "chopped DATA packet",
		hdr: &Header{
			Flags:      FlagData | FlagCHOP,
			SrcContext: 1,
			DstContext: 2,
			TxMsgID:    42,
			MsgLen:     10,
			PktOffset:  3,
		},
		payload: nil,
	}, {
		name: "combined PULL|NACK control packet",
		hdr: &Header{
			Flags:      FlagPULL | FlagNACK,
			SrcContext: 9,
			DstContext: 4,
			TxMsgID:    7,
			MsgLen:     20,
			PktOffset:  4,
			PullOffset: 11,
		},
	}}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			buf := gopacket.NewSerializeBuffer()
			opts := gopacket.SerializeOptions{FixLengths: true}

			var layers []gopacket.SerializableLayer
			layers = append(layers, tc.hdr)
			if len(tc.payload) > 0 {
				layers = append(layers, gopacket.Payload(tc.payload))
			}
			if err := gopacket.SerializeLayers(buf, opts, layers...); err != nil {
				t.Fatal(err)
			}

			got := &Header{}
			if err := got.DecodeFromBytes(buf.Bytes(), gopacket.NilDecodeFeedback); err != nil {
				t.Fatal(err)
			}

			want := &Header{
				Flags:      tc.hdr.Flags,
				SrcContext: tc.hdr.SrcContext,
				DstContext: tc.hdr.DstContext,
				TxMsgID:    tc.hdr.TxMsgID,
				MsgLen:     tc.hdr.MsgLen,
				PktOffset:  tc.hdr.PktOffset,
				PullOffset: tc.hdr.PullOffset,
			}

			if diff := cmp.Diff(want.Flags, got.Flags); diff != "" {
				t.Errorf("Flags mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want.SrcContext, got.SrcContext); diff != "" {
				t.Errorf("SrcContext mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want.DstContext, got.DstContext); diff != "" {
				t.Errorf("DstContext mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want.TxMsgID, got.TxMsgID); diff != "" {
				t.Errorf("TxMsgID mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want.MsgLen, got.MsgLen); diff != "" {
				t.Errorf("MsgLen mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want.PktOffset, got.PktOffset); diff != "" {
				t.Errorf("PktOffset mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want.PullOffset, got.PullOffset); diff != "" {
				t.Errorf("PullOffset mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.payload, got.LayerPayload()); diff != "" && len(tc.payload) > 0 {
				t.Errorf("payload mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHeaderDecodeShort(t *testing.T) {
	h := &Header{}
	err := h.DecodeFromBytes(make([]byte, HeaderLen-1), gopacket.NilDecodeFeedback)
	if err != ErrShortHeader {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestFlagsString(t *testing.T) {
	type testcase struct {
		name  string
		flags Flags
		want  string
	}

	var testcases = []testcase{
		{name: "no flags", flags: 0, want: "(none)"},
		{name: "data only", flags: FlagData, want: "DATA"},
		{name: "data and chop", flags: FlagData | FlagCHOP, want: "DATA|CHOP"},
		{name: "pull and nack", flags: FlagPULL | FlagNACK, want: "NACK|PULL"},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.flags.String(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
