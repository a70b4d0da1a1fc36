package usage

import "time"

// UsageData represents the root structure stored in persistence.
type UsageData struct {
	Version   string          `json:"version"`
	Updated   time.Time       `json:"updated"`
	Aggregate AggregatedStats `json:"aggregate"`
}

// AggregatedStats holds counters broken down by various dimensions.
type AggregatedStats struct {
	Total      TokenCounts            `json:"total"`
	ByProvider map[string]TokenCounts `json:"by_provider"`
	ByModel    map[string]TokenCounts `json:"by_model"`
	ByAgent    map[string]TokenCounts `json:"by_agent"` // app-generator, info-agent, ...

	Generations int64            `json:"generations"`
	Diagnostics int64            `json:"diagnostics"` // recovered to the parse-error card
	Attempts    int64            `json:"attempts"`
	Failures    map[string]int64 `json:"failures"` // by error kind
}

// TokenCounts holds input/output sums.
type TokenCounts struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
	Total  int64 `json:"total"`
}

func (tc *TokenCounts) Add(input, output int) {
	tc.Input += int64(input)
	tc.Output += int64(output)
	tc.Total += int64(input + output)
}

func newAggregate() AggregatedStats {
	return AggregatedStats{
		ByProvider: make(map[string]TokenCounts),
		ByModel:    make(map[string]TokenCounts),
		ByAgent:    make(map[string]TokenCounts),
		Failures:   make(map[string]int64),
	}
}
