package syncer

import (
	"github.com/homestead-network/go-homestead/metrics"
)

const namespace = "syncer"

var (
	chunksReceived = metrics.NewCounter(
		"chunks_received",
		namespace,
		"number of state chunks received",
		nil,
	).WithLabelValues()
	chunksServed = metrics.NewCounter(
		"chunks_served",
		namespace,
		"number of state chunks served to peers",
		nil,
	).WithLabelValues()
	syncStateGauge = metrics.NewGauge(
		"state",
		namespace,
		"sync state (0 synced, 1 not synced, 2 syncing)",
		nil,
	).WithLabelValues()
)
