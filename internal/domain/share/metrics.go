package share

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helix_share_resolutions_total",
		Help: "Public share token lookups by outcome.",
	}, []string{"outcome"})

	linksCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helix_share_links_created_total",
		Help: "Share links created by access level.",
	}, []string{"access_level"})
)
