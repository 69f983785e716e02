package aggregator

import "github.com/bbarnes4318/hoppy/internal/types"

// Tally is the end-of-run summary.
type Tally struct {
	Total             int                  `json:"total"`
	ByStatus          map[types.Status]int `json:"by_status"`
	Billable          int                  `json:"billable"`
	SaleOrApplication int                  `json:"sale_or_application"`
}

// Aggregate counts outcomes per status. Every status is present, zero or not.
func Aggregate(outcomes []types.ProcessingOutcome) Tally {
	t := Tally{ByStatus: make(map[types.Status]int, len(types.Statuses()))}
	for _, s := range types.Statuses() {
		t.ByStatus[s] = 0
	}
	for _, o := range outcomes {
		t.Total++
		t.ByStatus[o.Status]++
		if o.Status != types.StatusSuccess {
			continue
		}
		if o.Billable {
			t.Billable++
		}
		if o.SaleOrApplication {
			t.SaleOrApplication++
		}
	}
	return t
}

// SuccessRate is the share of items that finished with Success.
func (t Tally) SuccessRate() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.ByStatus[types.StatusSuccess]) / float64(t.Total)
}
