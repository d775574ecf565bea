package miner

import (
	"github.com/homestead-network/go-homestead/metrics"
)

const namespace = "miner"

var (
	blocksMined = metrics.NewCounter(
		"blocks_mined",
		namespace,
		"number of blocks produced by this node",
		nil,
	).WithLabelValues()
)
