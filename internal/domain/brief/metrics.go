package brief

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var generations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "helix_brief_generations_total",
		Help: "AI brief requests by outcome.",
	},
	[]string{"outcome"},
)
