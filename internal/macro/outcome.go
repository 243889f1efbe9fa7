package macro

import "time"

// Outcome is the result of a combined query: either a snapshot or the
// reason it could not be produced. Exactly one of Snapshot and Error is set.
type Outcome struct {
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Error    string    `json:"error,omitempty"`
	Source   string    `json:"source,omitempty"`
	At       time.Time `json:"at"`
}

func Succeeded(s Snapshot) Outcome {
	return Outcome{Snapshot: &s, At: s.LastUpdated}
}

func Failed(err error, at time.Time) Outcome {
	source, _ := FailedSource(err)
	return Outcome{Error: err.Error(), Source: source, At: at}
}

// OK reports whether the outcome carries a snapshot.
func (o Outcome) OK() bool { return o.Snapshot != nil }
