package core

import "fmt"

// Stats accumulates row outcomes for a run.
//
// Each reconciliation call returns its own delta; the processor folds the
// deltas together with Add. Nothing is shared between rows, so a Stats
// value never needs locking.
type Stats struct {
	Matched       int `json:"matchedRecords"` // records found by bulk-update lookups
	Updated       int `json:"updatedRecords"` // matched records successfully updated
	Failed        int `json:"failedRecords"`  // matched records whose update was rejected
	FailedQueries int `json:"failedQueries"`  // rows or fragments that could not be applied
	Skipped       int `json:"skippedRecords"` // create rows whose record already existed
	Created       int `json:"createdRecords"` // records created
}

// Add returns the sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Matched:       s.Matched + o.Matched,
		Updated:       s.Updated + o.Updated,
		Failed:        s.Failed + o.Failed,
		FailedQueries: s.FailedQueries + o.FailedQueries,
		Skipped:       s.Skipped + o.Skipped,
		Created:       s.Created + o.Created,
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("matched=%d updated=%d failed=%d failed_queries=%d skipped=%d created=%d",
		s.Matched, s.Updated, s.Failed, s.FailedQueries, s.Skipped, s.Created)
}

func failedQuery() Stats {
	return Stats{FailedQueries: 1}
}
