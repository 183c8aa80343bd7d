package shell

import "time"

// Stats summarises classification activity since the shell was created.
type Stats struct {
	Selections                 int64   `json:"selections"`
	Completed                  int64   `json:"completed"`
	Failed                     int64   `json:"failed"`
	Cancelled                  int64   `json:"cancelled"`
	SuccessRate                float64 `json:"success_rate"`
	AverageProcessingLatencyMs float64 `json:"average_processing_latency_ms"`
}

type statsCounter struct {
	selections int64
	completed  int64
	failed     int64
	cancelled  int64
	latency    time.Duration
}

// record counts accepted transitions only; stale settlements never reach it.
func (c *statsCounter) record(ev Event, prev, next State) {
	switch ev := ev.(type) {
	case Selected:
		c.selections++
	case ClassificationSettled:
		if !prev.Processing || next.Processing {
			return
		}
		c.latency += ev.Elapsed
		if next.Result != nil {
			c.completed++
		} else {
			c.failed++
		}
	}
}

// Stats returns aggregated counters.
func (s *Shell) Stats() Stats {
	s.mu.Lock()
	c := s.stats
	s.mu.Unlock()

	summary := Stats{
		Selections: c.selections,
		Completed:  c.completed,
		Failed:     c.failed,
		Cancelled:  c.cancelled,
	}
	if settled := c.completed + c.failed; settled > 0 {
		summary.SuccessRate = float64(c.completed) / float64(settled)
		summary.AverageProcessingLatencyMs = float64(c.latency.Milliseconds()) / float64(settled)
	}
	return summary
}
