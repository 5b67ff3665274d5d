package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StopReason labels why an enumerator stopped fetching.
type StopReason string

const (
	// StopMaxPages means the MaxPages bound was reached.
	StopMaxPages StopReason = "max_pages"

	// StopTotalPages means the known total page count was reached.
	StopTotalPages StopReason = "total_pages"

	// StopExhausted means the fetch returned no data.
	StopExhausted StopReason = "exhausted"
)

var (
	// PagesFetched tracks pages returned by fetch functions
	PagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "github_pagination_pages_fetched_total",
			Help: "Total number of pages fetched by pagination enumerators",
		},
	)

	// Stops tracks enumerator terminations by reason
	Stops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "github_pagination_stops_total",
			Help: "Total number of pagination enumerators stopped, by reason",
		},
		[]string{"reason"}, // "max_pages", "total_pages", "exhausted"
	)
)
