// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics exposes per-(interface,peer) health and rate gauges as
// a Prometheus Collector, so a stack instance can be scraped without any
// component on the hot path touching a Prometheus client directly.
package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	peerRateDesc = prometheus.NewDesc(
		"protoserial_peer_rate_bytes_per_second",
		"Estimated useful byte rate to a peer, as tracked by the transfer layer's rate controller.",
		[]string{"interface", "address"}, nil,
	)
	peerRetriesDesc = prometheus.NewDesc(
		"protoserial_peer_retries_total",
		"Cumulative retransmit attempts observed for a peer.",
		[]string{"interface", "address"}, nil,
	)
	linkOverrunsDesc = prometheus.NewDesc(
		"protoserial_link_overruns_total",
		"Cumulative receive buffer overruns observed on a link.",
		[]string{"interface"}, nil,
	)
)

type peerEntry struct {
	rate    float64
	retries uint64
}

// Collector is a prometheus.Collector tracking per-(interface,address)
// peer rate and retry counts, and per-interface overrun counts. Values
// are pushed in by the owning stack instance as link/transfer events fire;
// Collect only ever reads the current snapshot.
type Collector struct {
	mu       sync.Mutex
	peers    map[string]*peerEntry
	overruns map[string]uint64
}

// NewCollector returns an empty Collector ready to register with a
// prometheus.Registry.
func NewCollector() *Collector {
	return &Collector{
		peers:    make(map[string]*peerEntry),
		overruns: make(map[string]uint64),
	}
}

func peerKey(iface string, addr uint8) string { return fmt.Sprintf("%s|%d", iface, addr) }

// SetPeerRate records the latest rate estimate for a peer.
func (c *Collector) SetPeerRate(iface string, addr uint8, rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(iface, addr)
	e.rate = rate
}

// IncPeerRetry records one retransmit attempt against a peer.
func (c *Collector) IncPeerRetry(iface string, addr uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(iface, addr)
	e.retries++
}

func (c *Collector) entry(iface string, addr uint8) *peerEntry {
	k := peerKey(iface, addr)
	e, ok := c.peers[k]
	if !ok {
		e = &peerEntry{}
		c.peers[k] = e
	}
	return e
}

// IncLinkOverrun records one receive buffer overrun on an interface.
func (c *Collector) IncLinkOverrun(iface string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overruns[iface]++
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- peerRateDesc
	descs <- peerRetriesDesc
	descs <- linkOverrunsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.peers {
		iface, addr := splitPeerKey(key)
		metrics <- prometheus.MustNewConstMetric(peerRateDesc, prometheus.GaugeValue, e.rate, iface, addr)
		metrics <- prometheus.MustNewConstMetric(peerRetriesDesc, prometheus.CounterValue, float64(e.retries), iface, addr)
	}
	for iface, n := range c.overruns {
		metrics <- prometheus.MustNewConstMetric(linkOverrunsDesc, prometheus.CounterValue, float64(n), iface)
	}
}

func splitPeerKey(k string) (iface, addr string) {
	for i := len(k) - 1; i >= 0; i-- {
		if k[i] == '|' {
			return k[:i], k[i+1:]
		}
	}
	return k, ""
}
