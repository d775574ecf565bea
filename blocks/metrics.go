package blocks

import (
	"github.com/homestead-network/go-homestead/metrics"
)

const namespace = "blocks"

var (
	blocksRejected = metrics.NewCounter(
		"rejected",
		namespace,
		"number of block announcements rejected",
		nil,
	).WithLabelValues()
)
