package history

import "time"

// Outcome summarizes how a recorded run ended.
type Outcome string

const (
	// OutcomeClean means the operation finished with no drift and no
	// failures.
	OutcomeClean Outcome = "clean"

	// OutcomeDrift means status or diff found the manifest and system out
	// of sync.
	OutcomeDrift Outcome = "drift"

	// OutcomeFailed means at least one package install failed.
	OutcomeFailed Outcome = "failed"

	// OutcomeDegraded means the run was a no-op because no backend could
	// serve the host.
	OutcomeDegraded Outcome = "degraded"
)

// Run is one recorded reconciliation operation.
type Run struct {
	ID         string    `json:"id"`
	Host       string    `json:"host"`
	Op         string    `json:"op"`
	Backend    string    `json:"backend"`
	Outcome    Outcome   `json:"outcome"`
	Missing    int       `json:"missing"`
	Extra      int       `json:"extra"`
	Installed  int       `json:"installed"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
