package chain

import (
	"github.com/homestead-network/go-homestead/metrics"
)

const namespace = "chain"

var (
	blocksAccepted = metrics.NewCounter(
		"blocks_accepted",
		namespace,
		"number of blocks applied to the ledger",
		nil,
	).WithLabelValues()
	headHeight = metrics.NewGauge(
		"head_height",
		namespace,
		"height of the finalized tip",
		nil,
	).WithLabelValues()
)
