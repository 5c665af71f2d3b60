package models

// BatchError records one failed item of a bulk operation.
type BatchError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchResult aggregates a bulk operation. One item's failure never aborts
// the remaining items; Success + Failed always equals Total.
type BatchResult struct {
	Total   int          `json:"total"`
	Success int          `json:"success"`
	Failed  int          `json:"failed"`
	Errors  []BatchError `json:"errors,omitempty"`
}

// Record tallies one item outcome.
func (r *BatchResult) Record(id string, err error) {
	if err != nil {
		r.Failed++
		r.Errors = append(r.Errors, BatchError{ID: id, Error: err.Error()})
		return
	}
	r.Success++
}
