package claims

import (
	"github.com/homestead-network/go-homestead/metrics"
)

const namespace = "claims"

var (
	claimsAllocated = metrics.NewCounter(
		"allocated",
		namespace,
		"number of claims allocated",
		nil,
	).WithLabelValues()
	claimsExpired = metrics.NewCounter(
		"expired",
		namespace,
		"number of claims expired unused",
		nil,
	).WithLabelValues()
)
