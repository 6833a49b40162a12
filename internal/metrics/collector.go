package metrics

import (
	"sort"
	"sync"
	"time"
)

// recentDurations is how many call durations are kept per tool.
const recentDurations = 100

// toolStats keeps a small in-memory summary of tool calls, for status
// output where scraping Prometheus is not an option.
type toolStats struct {
	mu sync.RWMutex

	calls     map[string]int64
	errors    map[string]int64
	durations map[string][]time.Duration

	rateLimitHits  int64
	rateLimitTotal int64
}

func newToolStats() *toolStats {
	return &toolStats{
		calls:     make(map[string]int64),
		errors:    make(map[string]int64),
		durations: make(map[string][]time.Duration),
	}
}

func (t *toolStats) record(tool, status string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls[tool]++
	if status == "error" {
		t.errors[tool]++
	}
	if status == "rate_limited" {
		t.rateLimitHits++
	}
	t.rateLimitTotal++

	durations := append(t.durations[tool], d)
	if len(durations) > recentDurations {
		durations = durations[1:]
	}
	t.durations[tool] = durations
}

// Stats is a snapshot of tool call statistics.
type Stats struct {
	Tools      []ToolStat     `json:"tools"`
	RateLimits RateLimitStats `json:"rateLimits"`
}

type ToolStat struct {
	Tool          string  `json:"tool"`
	Calls         int64   `json:"calls"`
	Errors        int64   `json:"errors"`
	ErrorRate     float64 `json:"errorRate"`
	AvgDurationMs int64   `json:"avgDurationMs"`
}

type RateLimitStats struct {
	Hits  int64   `json:"hits"`
	Total int64   `json:"total"`
	Rate  float64 `json:"rate"`
}

func (t *toolStats) snapshot() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Stats{Tools: make([]ToolStat, 0, len(t.calls))}
	for tool, calls := range t.calls {
		stat := ToolStat{Tool: tool, Calls: calls, Errors: t.errors[tool]}
		if calls > 0 {
			stat.ErrorRate = float64(stat.Errors) / float64(calls)
		}
		if durations := t.durations[tool]; len(durations) > 0 {
			var total time.Duration
			for _, d := range durations {
				total += d
			}
			stat.AvgDurationMs = (total / time.Duration(len(durations))).Milliseconds()
		}
		stats.Tools = append(stats.Tools, stat)
	}
	sort.Slice(stats.Tools, func(i, j int) bool { return stats.Tools[i].Tool < stats.Tools[j].Tool })

	stats.RateLimits = RateLimitStats{Hits: t.rateLimitHits, Total: t.rateLimitTotal}
	if t.rateLimitTotal > 0 {
		stats.RateLimits.Rate = float64(t.rateLimitHits) / float64(t.rateLimitTotal)
	}
	return stats
}
