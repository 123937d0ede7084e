package history

import (
	"context"
	"time"

	"github.com/kilianp07/buildopt/core/optimization"
)

// Record captures the outcome of one solve.
type Record struct {
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       string    `json:"problem_type"`
	Status     string    `json:"status"`
	Building   string    `json:"building"`
	Diagnostic string    `json:"diagnostic,omitempty"`

	OperationCost  float64  `json:"operation_cost"`
	InvestmentCost float64  `json:"investment_cost"`
	Objective      float64  `json:"objective"`
	StorageSize    *float64 `json:"storage_size,omitempty"`
	LoadReduction  *float64 `json:"load_reduction,omitempty"`

	SolveSeconds float64 `json:"solve_seconds"`
}

// NewRecord summarizes res, solved for the building document at building.
func NewRecord(res *optimization.Result, building string, ts time.Time) Record {
	return Record{
		RunID:          res.RunID.String(),
		Timestamp:      ts,
		Kind:           res.Kind.String(),
		Status:         res.Status.String(),
		Building:       building,
		Diagnostic:     res.Diagnostic,
		OperationCost:  res.OperationCost,
		InvestmentCost: res.InvestmentCost,
		Objective:      res.Objective,
		StorageSize:    res.StorageSize,
		LoadReduction:  res.LoadReduction,
		SolveSeconds:   res.SolveDuration.Seconds(),
	}
}

// Query defines filters for retrieving records. Zero fields match
// everything. Limit keeps the most recent records.
type Query struct {
	Start  time.Time
	End    time.Time
	Kind   string
	Status string
	Limit  int
}

// Match reports whether r passes the filters of q, ignoring Limit.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	return q.Status == "" || r.Status == q.Status
}

// Trim keeps the last q.Limit records of recs.
func (q Query) Trim(recs []Record) []Record {
	if q.Limit > 0 && len(recs) > q.Limit {
		return recs[len(recs)-q.Limit:]
	}
	return recs
}

// Store persists Records and supports querying. Query returns records in
// ascending timestamp order.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Nop discards records.
type Nop struct{}

func (Nop) Append(context.Context, Record) error           { return nil }
func (Nop) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (Nop) Close() error                                   { return nil }
