package ndp

import (
	"context"
	"testing"
	"time"
)

// fakeRxMsgInfo implements GetRxMsgInfoFunc with a scripted answer.
type fakeRxMsgInfo struct {
	rxMsgID  RxMsgID
	ackNo    uint16
	isNewMsg bool
	isNewPkt bool
}

func (f fakeRxMsgInfo) call(string, uint16, uint16, uint16, uint16) (RxMsgID, uint16, bool, bool) {
	return f.rxMsgID, f.ackNo, f.isNewMsg, f.isNewPkt
}

// ctrlPktEventCall records one CtrlPktEvent invocation.
type ctrlPktEventCall struct {
	genACK, genNACK, genPULL bool
	dstIP                    string
	dstContext, srcContext   uint16
	txMsgID, msgLen          uint16
	pktOffset, pullOffset    uint16
}

// recordingCollaborators captures IngressPipe's calls into its externs.
type recordingCollaborators struct {
	ctrlPktEvents []ctrlPktEventCall
	assembled     []*ReassembleMeta
	delivered     []deliveredCall
	creditToBtx   []creditToBtxCall
}

type deliveredCall struct {
	txMsgID, pktOffset uint16
	isInterval         bool
	msgLen             uint16
}

type creditToBtxCall struct {
	txMsgID  uint16
	rtxPkt   *uint16
	newCredit *uint16
}

func (r *recordingCollaborators) ctrlPktEvent(
	genACK, genNACK, genPULL bool,
	dstIP string, dstContext, srcContext, txMsgID, msgLen, pktOffset, pullOffset uint16,
) {
	r.ctrlPktEvents = append(r.ctrlPktEvents, ctrlPktEventCall{
		genACK: genACK, genNACK: genNACK, genPULL: genPULL,
		dstIP: dstIP, dstContext: dstContext, srcContext: srcContext,
		txMsgID: txMsgID, msgLen: msgLen, pktOffset: pktOffset, pullOffset: pullOffset,
	})
}

func (r *recordingCollaborators) assemble(meta *ReassembleMeta, payload []byte) {
	r.assembled = append(r.assembled, meta)
}

func (r *recordingCollaborators) deliveredEvent(txMsgID, pktOffset uint16, isInterval bool, msgLen uint16) {
	r.delivered = append(r.delivered, deliveredCall{txMsgID, pktOffset, isInterval, msgLen})
}

func (r *recordingCollaborators) creditToBtxEvent(
	txMsgID uint16, rtxPkt *uint16, newCredit *uint16, op OpCode, compVal *uint16, relOp RelOp,
) {
	r.creditToBtx = append(r.creditToBtx, creditToBtxCall{txMsgID, rtxPkt, newCredit})
}

func newTestIngressPipe(rxInfo fakeRxMsgInfo) (*IngressPipe, *recordingCollaborators) {
	rec := &recordingCollaborators{}
	ip := NewIngressPipe(
		&NullLogger{},
		5,
		rxInfo.call,
		rec.deliveredEvent,
		rec.creditToBtxEvent,
		rec.ctrlPktEvent,
		rec.assemble,
	)
	return ip, rec
}

// TestIngressFreshDataPacket implements spec.md §8 scenario 1.
func TestIngressFreshDataPacket(t *testing.T) {
	ip, rec := newTestIngressPipe(fakeRxMsgInfo{rxMsgID: 7, ackNo: 0, isNewMsg: true, isNewPkt: true})

	pkt := &IncomingPacket{
		SrcIP: "10.0.0.2",
		Header: &Header{
			Flags: FlagData, SrcContext: 1, DstContext: 2,
			TxMsgID: 1, MsgLen: 10, PktOffset: 0,
		},
		Payload: []byte("p0"),
	}
	ip.process(pkt)

	if len(rec.assembled) != 1 {
		t.Fatalf("expected 1 assembled payload, got %d", len(rec.assembled))
	}
	if len(rec.ctrlPktEvents) != 1 {
		t.Fatalf("expected 1 ctrlPktEvent call, got %d", len(rec.ctrlPktEvents))
	}
	c := rec.ctrlPktEvents[0]
	if !c.genACK || c.genNACK || !c.genPULL {
		t.Errorf("expected ACK+PULL, got genACK=%v genNACK=%v genPULL=%v", c.genACK, c.genNACK, c.genPULL)
	}
	if c.pullOffset != 6 {
		t.Errorf("expected pull_offset=6, got %d", c.pullOffset)
	}
	if v, _ := ip.credit.get(7); v != 6 {
		t.Errorf("expected credit[7]=6, got %d", v)
	}
}

// TestIngressSubsequentDataPacket implements spec.md §8 scenario 2.
func TestIngressSubsequentDataPacket(t *testing.T) {
	ip, rec := newTestIngressPipe(fakeRxMsgInfo{rxMsgID: 7, ackNo: 0, isNewMsg: true, isNewPkt: true})
	ip.process(&IncomingPacket{
		SrcIP:  "10.0.0.2",
		Header: &Header{Flags: FlagData, TxMsgID: 1, MsgLen: 10, PktOffset: 0},
	})

	ip2, rec2 := ip, rec
	ip2.getRxMsgInfo = fakeRxMsgInfo{rxMsgID: 7, ackNo: 1, isNewMsg: false, isNewPkt: true}.call
	ip2.process(&IncomingPacket{
		SrcIP:  "10.0.0.2",
		Header: &Header{Flags: FlagData, TxMsgID: 1, MsgLen: 10, PktOffset: 1},
	})

	if v, _ := ip2.credit.get(7); v != 7 {
		t.Errorf("expected credit[7]=7, got %d", v)
	}
	last := rec2.ctrlPktEvents[len(rec2.ctrlPktEvents)-1]
	if last.pullOffset != 7 {
		t.Errorf("expected pull_offset=7, got %d", last.pullOffset)
	}
}

// TestIngressTrimmedPacket implements spec.md §8 scenario 3.
func TestIngressTrimmedPacket(t *testing.T) {
	ip, rec := newTestIngressPipe(fakeRxMsgInfo{rxMsgID: 7, ackNo: 1, isNewMsg: false, isNewPkt: true})
	ip.credit.entries[7] = 7 // as if scenarios 1+2 already ran

	ip.process(&IncomingPacket{
		SrcIP:  "10.0.0.2",
		Header: &Header{Flags: FlagData | FlagCHOP, TxMsgID: 1, MsgLen: 10, PktOffset: 2},
	})

	if len(rec.assembled) != 0 {
		t.Fatalf("expected no assembled payload for a chopped packet, got %d", len(rec.assembled))
	}
	c := rec.ctrlPktEvents[0]
	if c.genACK || !c.genNACK || !c.genPULL {
		t.Errorf("expected NACK+PULL, got genACK=%v genNACK=%v genPULL=%v", c.genACK, c.genNACK, c.genPULL)
	}
	if c.pullOffset != 7 {
		t.Errorf("expected credit unchanged at 7, got pull_offset=%d", c.pullOffset)
	}
}

// TestIngressACKReception implements spec.md §8 scenario 4.
func TestIngressACKReception(t *testing.T) {
	ip, rec := newTestIngressPipe(fakeRxMsgInfo{})
	ip.process(&IncomingPacket{
		SrcIP:  "10.0.0.2",
		Header: &Header{Flags: FlagACK, TxMsgID: 42, MsgLen: 20, PktOffset: 3},
	})

	if len(rec.delivered) != 1 {
		t.Fatalf("expected 1 deliveredEvent call, got %d", len(rec.delivered))
	}
	got := rec.delivered[0]
	if got.txMsgID != 42 || got.pktOffset != 3 || got.isInterval || got.msgLen != 20 {
		t.Errorf("unexpected deliveredEvent args: %+v", got)
	}
	if len(rec.ctrlPktEvents) != 0 {
		t.Errorf("expected no network output for a pure ACK, got %d calls", len(rec.ctrlPktEvents))
	}
}

// TestIngressCombinedPullNackReception implements spec.md §8 scenario 5.
func TestIngressCombinedPullNackReception(t *testing.T) {
	ip, rec := newTestIngressPipe(fakeRxMsgInfo{})
	ip.process(&IncomingPacket{
		SrcIP: "10.0.0.2",
		Header: &Header{
			Flags: FlagPULL | FlagNACK, TxMsgID: 42, PktOffset: 4, PullOffset: 11,
		},
	})

	if len(rec.creditToBtx) != 1 {
		t.Fatalf("expected 1 creditToBtxEvent call, got %d", len(rec.creditToBtx))
	}
	got := rec.creditToBtx[0]
	if got.txMsgID != 42 || got.rtxPkt == nil || *got.rtxPkt != 4 || got.newCredit == nil || *got.newCredit != 11 {
		t.Errorf("unexpected creditToBtxEvent args: txMsgID=%d rtxPkt=%v newCredit=%v", got.txMsgID, got.rtxPkt, got.newCredit)
	}
}

// TestIngressRunDrainsQueue exercises IngressPipe.Run end-to-end through
// a channel, rather than calling process directly.
func TestIngressRunDrainsQueue(t *testing.T) {
	ip, rec := newTestIngressPipe(fakeRxMsgInfo{rxMsgID: 1, ackNo: 0, isNewMsg: true, isNewPkt: true})

	queue := make(chan *IncomingPacket, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		ip.Run(ctx, queue)
		close(done)
	}()

	queue <- &IncomingPacket{
		SrcIP:  "10.0.0.2",
		Header: &Header{Flags: FlagData, TxMsgID: 1, MsgLen: 5, PktOffset: 0},
	}

	deadline := time.After(time.Second)
	for len(rec.ctrlPktEvents) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for ctrlPktEvent")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	cancel()
	<-done
}
