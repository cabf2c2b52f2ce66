package inspector

import "github.com/ethereum/go-ethereum/metrics"

var (
	shortCircuitCounter = metrics.NewRegisteredCounter("inspector/shortcircuit", nil)
	framesCounter       = metrics.NewRegisteredCounter("inspector/frames", nil)
	logsCounter         = metrics.NewRegisteredCounter("inspector/logs", nil)
	selfdestructCounter = metrics.NewRegisteredCounter("inspector/selfdestructs", nil)
)

// Counters returns the number of short-circuited sub executions, inspected
// nested frames, reported logs and reported selfdestructs since start.
func Counters() (shortCircuits, frames, logs, selfdestructs int64) {
	return shortCircuitCounter.Snapshot().Count(),
		framesCounter.Snapshot().Count(),
		logsCounter.Snapshot().Count(),
		selfdestructCounter.Snapshot().Count()
}
