// Command ndpsim wires two loopback NDP endpoints through a simulated
// top-of-rack hop and drives a handful of demo messages across it.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nanotransport/ndp"
	"github.com/nanotransport/ndp/config"
	ndpmetrics "github.com/nanotransport/ndp/metrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		messages   int
		runtime    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ndpsim",
		Short: "Runs two loopback NDP endpoints connected through a simulated TOR hop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, messages, runtime)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML configuration file (defaults built in)")
	cmd.Flags().IntVar(&messages, "messages", 3, "number of demo messages host A sends to host B")
	cmd.Flags().DurationVar(&runtime, "runtime", 5*time.Second, "how long to run the simulation before shutting down")

	return cmd
}

func run(ctx context.Context, configPath string, messages int, runtime time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := &ndp.ApexLogger{}
	reg := prometheus.NewRegistry()
	collector := ndpmetrics.NewCollector(reg)

	go serveMetrics(cfg.Metrics.Addr, cfg.Metrics.Path, reg, logger)

	runCtx, cancel := context.WithTimeout(ctx, runtime)
	defer cancel()

	const (
		hostAIP = "10.0.0.1"
		hostBIP = "10.0.0.2"
	)
	macA := ndp.Must1(net.ParseMAC("02:00:00:00:00:01"))
	macB := ndp.Must1(net.ParseMAC("02:00:00:00:00:02"))

	hostA := newHost(hostParams{name: "A", ip: hostAIP, mac: macA, peerMAC: macB, cfg: cfg, logger: logger, metrics: collector})
	hostB := newHost(hostParams{name: "B", ip: hostBIP, mac: macB, peerMAC: macA, cfg: cfg, logger: logger, metrics: collector})

	netAtoB := ndp.NewNetwork(networkConfigFrom(cfg, logger, collector))
	netBtoA := ndp.NewNetwork(networkConfigFrom(cfg, logger, collector))

	wireAtoB := make(chan []byte, 256)
	wireBtoA := make(chan []byte, 256)

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error { hostA.ingress.Run(gctx, hostA.netQueue); return nil })
	g.Go(func() error { hostA.pktgen.Run(gctx); return nil })
	g.Go(func() error { hostA.egress.Run(gctx, hostA.arbiter, hostA.txOut); return nil })

	g.Go(func() error { hostB.ingress.Run(gctx, hostB.netQueue); return nil })
	g.Go(func() error { hostB.pktgen.Run(gctx); return nil })
	g.Go(func() error { hostB.egress.Run(gctx, hostB.arbiter, hostB.txOut); return nil })

	g.Go(func() error { netAtoB.RunRx(gctx, hostA.txOut); return nil })
	g.Go(func() error { netAtoB.RunTx(gctx, wireAtoB); return nil })
	g.Go(func() error { return pumpDecode(gctx, wireAtoB, hostB.netQueue, logger) })

	g.Go(func() error { netBtoA.RunRx(gctx, hostB.txOut); return nil })
	g.Go(func() error { netBtoA.RunTx(gctx, wireBtoA); return nil })
	g.Go(func() error { return pumpDecode(gctx, wireBtoA, hostA.netQueue, logger) })

	g.Go(func() error { return driveDemo(gctx, hostA, hostB, messages, logger) })

	return g.Wait()
}

// serveMetrics starts the Prometheus HTTP endpoint. It returns
// immediately if addr is empty.
func serveMetrics(addr, path string, reg *prometheus.Registry, logger ndp.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Infof("ndpsim: metrics listening on %s%s", addr, path)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warnf("ndpsim: metrics server: %s", err.Error())
	}
}

// networkConfigFrom builds an [ndp.NetworkConfig] from cfg.
func networkConfigFrom(cfg *config.Config, logger ndp.Logger, collector *ndpmetrics.Collector) ndp.NetworkConfig {
	return ndp.NetworkConfig{
		Logger:              logger,
		DataPktDelay:        distFromConfig(cfg.Network.DataPktDelay),
		CtrlPktDelay:        distFromConfig(cfg.Network.CtrlPktDelay),
		DataPktTrimProb:     cfg.Network.DataPktDropProb,
		RxLinkRateBitsPerNs: cfg.Endpoint.RxLinkRateBitsPerNs,
		Metrics:             collector,
	}
}

// distFromConfig resolves a declarative [config.DelayDistConfig] into a
// live [ndp.DistGenerator].
func distFromConfig(d config.DelayDistConfig) ndp.DistGenerator {
	switch d.Kind {
	case "uniform":
		return ndp.NewUniformDist(time.Duration(d.MinNs)*time.Nanosecond, time.Duration(d.MaxNs)*time.Nanosecond)
	case "exponential":
		return ndp.NewExponentialDist(time.Duration(d.MeanNs) * time.Nanosecond)
	default:
		return ndp.ConstantDist{Delay: time.Duration(d.MeanNs) * time.Nanosecond}
	}
}

// pumpDecode decodes raw frames arriving off wire and hands them to a
// host's ingress input queue.
func pumpDecode(ctx context.Context, wire <-chan []byte, out chan<- *ndp.IncomingPacket, logger ndp.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-wire:
			if !ok {
				return nil
			}
			pkt, err := ndp.DecodePacket(raw)
			if err != nil {
				logger.Warnf("ndpsim: decode: %s", err.Error())
				continue
			}
			select {
			case <-ctx.Done():
				return nil
			case out <- pkt:
			}
		}
	}
}

// -------------------------------------------------------------------------
// Host wiring
// -------------------------------------------------------------------------

// host bundles one endpoint's pipeline stages and demo collaborators.
type host struct {
	name string
	ip   string

	ingress *ndp.IngressPipe
	pktgen  *ndp.PktGen
	egress  *ndp.EgressPipe

	netQueue chan *ndp.IncomingPacket
	arbiter  chan *ndp.ArbiterItem
	txOut    chan []byte

	assembler *demoAssembler
	tx        *demoTxCollaborator
}

type hostParams struct {
	name, ip     string
	mac, peerMAC net.HardwareAddr
	cfg          *config.Config
	logger       ndp.Logger
	metrics      *ndpmetrics.Collector
}

// newHost wires one endpoint's IngressPipe, PktGen, and EgressPipe
// together with demo assembler/transmit-collaborator stand-ins, per
// spec.md §4.1's "Wiring (externs)".
func newHost(p hostParams) *host {
	arbiter := make(chan *ndp.ArbiterItem, 256)
	netQueue := make(chan *ndp.IncomingPacket, 256)
	txOut := make(chan []byte, 256)

	asm := newDemoAssembler(p.name, p.logger)
	tx := &demoTxCollaborator{name: p.name, logger: p.logger}

	pktgen := ndp.NewPktGen(ndp.PktGenConfig{
		Logger:              p.logger,
		MaxPktLenBytes:      p.cfg.Endpoint.MaxPktLenBytes,
		RxLinkRateBitsPerNs: p.cfg.Endpoint.RxLinkRateBitsPerNs,
		Metrics:             p.metrics,
	}, arbiter)

	ingress := ndp.NewIngressPipe(
		p.logger,
		p.cfg.Endpoint.RttPkts,
		asm.GetRxMsgInfo,
		tx.Delivered,
		tx.CreditToBtx,
		pktgen.CtrlPktEvent,
		asm.Enqueue,
	)
	ingress.SuppressPullNearMsgEnd = p.cfg.Endpoint.SuppressPullNearMsgEnd
	ingress.Metrics = p.metrics

	egress := ndp.NewEgressPipe(ndp.EgressConfig{
		Logger:              p.logger,
		NICMAC:              p.mac,
		SwitchMAC:           p.peerMAC,
		SrcIP:               net.ParseIP(p.ip),
		TxLinkRateBitsPerNs: p.cfg.Endpoint.TxLinkRateBitsPerNs,
	})

	return &host{
		name: p.name, ip: p.ip,
		ingress: ingress, pktgen: pktgen, egress: egress,
		netQueue: netQueue, arbiter: arbiter, txOut: txOut,
		assembler: asm, tx: tx,
	}
}

// driveDemo sends messages demo messages from hostA to hostB directly
// onto hostA's arbiter queue. It ignores receive credit entirely: real
// credit-gated scheduling is the external transmit collaborator's job
// (spec.md's "assembler" and "tx scheduling" are explicitly out of this
// package's scope, per doc.go) and is not part of this reference
// harness.
func driveDemo(ctx context.Context, hostA, hostB *host, messages int, logger ndp.Logger) error {
	const msgLen = 4
	for m := 0; m < messages; m++ {
		txMsgID := uint16(m + 1)
		for offset := uint16(0); offset < msgLen; offset++ {
			item := &ndp.ArbiterItem{
				Meta: &ndp.EgressMeta{
					IsData:     true,
					DstIP:      hostB.ip,
					SrcContext: 1,
					DstContext: 1,
					TxMsgID:    txMsgID,
					MsgLen:     msgLen,
					PktOffset:  offset,
				},
				Payload: []byte(fmt.Sprintf("hello from %s, msg=%d pkt=%d", hostA.name, txMsgID, offset)),
			}
			select {
			case <-ctx.Done():
				return nil
			case hostA.arbiter <- item:
			}
		}
		logger.Infof("ndpsim: host %s sent demo message %d (%d packets)", hostA.name, txMsgID, msgLen)
	}
	<-ctx.Done()
	return nil
}

// -------------------------------------------------------------------------
// Demo collaborators (NOT part of the ndp package: spec.md's assembler
// and transmit-collaborator roles are external to the endpoint pipeline).
// -------------------------------------------------------------------------

// demoAssembler is a minimal in-memory reassembler satisfying
// [ndp.GetRxMsgInfoFunc] and [ndp.AssembleEnqueueFunc].
type demoAssembler struct {
	host   string
	logger ndp.Logger

	mu       sync.Mutex
	nextID   ndp.RxMsgID
	messages map[string]*demoMessage
}

type demoMessage struct {
	rxMsgID  ndp.RxMsgID
	ackNo    uint16
	received map[uint16]bool
}

func newDemoAssembler(host string, logger ndp.Logger) *demoAssembler {
	return &demoAssembler{host: host, logger: logger, messages: make(map[string]*demoMessage)}
}

func (a *demoAssembler) key(srcIP string, srcContext, txMsgID uint16) string {
	return fmt.Sprintf("%s|%d|%d", srcIP, srcContext, txMsgID)
}

// GetRxMsgInfo implements [ndp.GetRxMsgInfoFunc].
func (a *demoAssembler) GetRxMsgInfo(
	srcIP string, srcContext, txMsgID, msgLen, pktOffset uint16,
) (rxMsgID ndp.RxMsgID, ackNo uint16, isNewMsg bool, isNewPkt bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := a.key(srcIP, srcContext, txMsgID)
	m, ok := a.messages[k]
	isNewMsg = !ok
	if !ok {
		a.nextID++
		m = &demoMessage{rxMsgID: a.nextID, received: make(map[uint16]bool)}
		a.messages[k] = m
	}
	isNewPkt = !m.received[pktOffset]
	return m.rxMsgID, m.ackNo, isNewMsg, isNewPkt
}

// Enqueue implements [ndp.AssembleEnqueueFunc].
func (a *demoAssembler) Enqueue(meta *ndp.ReassembleMeta, payload []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := a.key(meta.SrcIP, meta.SrcContext, meta.TxMsgID)
	m := a.messages[k]
	if m == nil || m.received[meta.PktOffset] {
		return
	}
	m.received[meta.PktOffset] = true
	for m.received[m.ackNo] {
		m.ackNo++
	}
	a.logger.Infof(
		"ndpsim: host %s reassembled msg=%d pkt=%d payload=%q (ack_no now %d/%d)",
		a.host, meta.TxMsgID, meta.PktOffset, payload, m.ackNo, meta.MsgLen,
	)
}

// demoTxCollaborator logs the events a real transmit collaborator would
// act on (retransmission marks, credit updates, delivery acks).
type demoTxCollaborator struct {
	name   string
	logger ndp.Logger
}

// Delivered implements [ndp.DeliveredEventFunc].
func (t *demoTxCollaborator) Delivered(txMsgID, pktOffset uint16, isInterval bool, msgLen uint16) {
	t.logger.Debugf(
		"ndpsim: host %s: delivered txMsgID=%d pktOffset=%d isInterval=%v msgLen=%d",
		t.name, txMsgID, pktOffset, isInterval, msgLen,
	)
}

// CreditToBtx implements [ndp.CreditToBtxEventFunc].
func (t *demoTxCollaborator) CreditToBtx(
	txMsgID uint16, rtxPkt *uint16, newCredit *uint16,
	op ndp.OpCode, compVal *uint16, relOp ndp.RelOp,
) {
	t.logger.Debugf(
		"ndpsim: host %s: creditToBtx txMsgID=%d rtxPkt=%v newCredit=%v op=%s",
		t.name, txMsgID, rtxPkt, newCredit, op,
	)
}
