package txs

import (
	"github.com/homestead-network/go-homestead/metrics"
)

const namespace = "txs"

var (
	mempoolSize = metrics.NewGauge(
		"mempool_size",
		namespace,
		"number of pending transactions",
		nil,
	).WithLabelValues()

	gossipCount = metrics.NewCounter(
		"gossip",
		namespace,
		"number of gossiped transactions by outcome",
		[]string{"outcome"},
	)
	acceptedGossip  = gossipCount.WithLabelValues("accepted")
	duplicateGossip = gossipCount.WithLabelValues("duplicate")
	rejectedGossip  = gossipCount.WithLabelValues("rejected")
	ignoredGossip   = gossipCount.WithLabelValues("ignored")
)
