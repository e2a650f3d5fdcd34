package ingest

// State is the position of a source run in its lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateDeciding   State = "deciding"
	StateCommitting State = "committing"
	StateDone       State = "done"
)

// Report summarizes one source run. An aborted run ends in StateIdle with Err set.
type Report struct {
	Source    string `json:"source" yaml:"source"`
	Kind      string `json:"kind" yaml:"kind"`
	State     State  `json:"state" yaml:"state"`
	Fetched   int    `json:"fetched" yaml:"fetched"`
	Committed int    `json:"committed" yaml:"committed"`
	Skipped   int    `json:"skipped" yaml:"skipped"`
	Failures  int    `json:"failures" yaml:"failures"`
	Err       error  `json:"-" yaml:"-"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

func (r *Report) abort(err error) {
	r.State = StateIdle
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
}
