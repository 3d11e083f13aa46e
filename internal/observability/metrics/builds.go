package metrics

import "time"

// Build records a finished compile or test job.
func Build(kind, status string, duration time.Duration) {
	if !enabled {
		return
	}
	buildTotal.WithLabelValues(kind, status).Inc()
	buildDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// CompileCache records a compile cache lookup ("hit", "miss" or "error").
func CompileCache(result string) {
	if !enabled {
		return
	}
	compileCacheTotal.WithLabelValues(result).Inc()
}

// SandboxesSwept records sandboxes removed by a sweep.
func SandboxesSwept(n int) {
	if !enabled || n <= 0 {
		return
	}
	sandboxSweptTotal.Add(float64(n))
}

// Verification records a verification session that reached a final state.
func Verification(network, state string, attempts int) {
	if !enabled {
		return
	}
	verificationTotal.WithLabelValues(network, state).Inc()
	if attempts > 0 {
		verificationAttempts.Observe(float64(attempts))
	}
}
