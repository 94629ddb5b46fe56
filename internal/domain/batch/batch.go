// Package batch holds the batch search model: a user-submitted ordered list
// of queries executed asynchronously as one unit of work.
package batch

import (
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a batch search.
// Transitions are one-way: QUEUED -> RUNNING -> terminal.
type State string

const (
	Queued         State = "QUEUED"
	Running        State = "RUNNING"
	Success        State = "SUCCESS"
	PartialFailure State = "PARTIAL_FAILURE"
	Failure        State = "FAILURE"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == Success || s == PartialFailure || s == Failure
}

func (s State) String() string { return string(s) }

// BatchSearch is a user-owned, immutable-once-terminal batch of queries.
type BatchSearch struct {
	ID           string
	User         string
	Projects     []string
	Queries      []string
	State        State
	Date         time.Time
	QueryCount   int
	ResultCount  int
	ErrorMessage string
}

// New creates a QUEUED batch search with a fresh identity.
func New(user string, projects, queries []string) BatchSearch {
	return BatchSearch{
		ID:         uuid.NewString(),
		User:       user,
		Projects:   projects,
		Queries:    queries,
		State:      Queued,
		Date:       time.Now().UTC(),
		QueryCount: len(queries),
	}
}
