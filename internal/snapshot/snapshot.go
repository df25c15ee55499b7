// Package snapshot holds the result of a collection run and its file
// representations.
package snapshot

import (
	"encoding/json"
	"time"

	"github.com/fr4iser90/FoundryCord-sub001/internal/value"
)

// Snapshot is the timestamped aggregate of one collection run. Results maps
// collector name to captured data or an error descriptor, in the order the
// collectors ran.
type Snapshot struct {
	Timestamp int64       `json:"timestamp"` // ms since epoch
	Results   value.Value `json:"results"`
}

// New returns an empty snapshot stamped with t.
func New(t time.Time) *Snapshot {
	return &Snapshot{Timestamp: t.UnixMilli(), Results: value.Map()}
}

// Time returns the snapshot timestamp as a time.Time.
func (s *Snapshot) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// Set records the result for one collector.
func (s *Snapshot) Set(name string, v value.Value) {
	s.Results = s.Results.With(name, v)
}

// Result returns the result recorded for name.
func (s *Snapshot) Result(name string) (value.Value, bool) {
	return s.Results.Get(name)
}

// Names returns the collector names in run order.
func (s *Snapshot) Names() []string {
	return s.Results.Keys()
}

// Failed reports whether the result for name is an error descriptor.
func (s *Snapshot) Failed(name string) bool {
	r, ok := s.Result(name)
	if !ok || r.Kind() != value.KindMap {
		return false
	}
	_, isErr := r.Get("error")
	return isErr
}

// UnmarshalJSON accepts a missing results object as an empty one.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type raw Snapshot
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	if r.Results.Kind() != value.KindMap {
		r.Results = value.Map()
	}
	*s = Snapshot(r)
	return nil
}
