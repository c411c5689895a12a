package service

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"dividend-recon/internal/recon"
)

// ReasonProviderError marks an instrument skipped because the external
// provider returned no usable quote this run.
const ReasonProviderError recon.Reason = "provider_error"

// Summary aggregates a run's outcomes per decision path. Ambiguous or
// partial success must never look like full success, so errored instruments
// surface both in the counts and in Err.
type Summary struct {
	RunID   string
	Updated int
	Skipped int
	Errored int
	Reasons map[recon.Reason]int
}

// Err reports a non-nil error when any instrument failed.
func (s *Summary) Err() error {
	if s.Errored > 0 {
		return fmt.Errorf("%d of %d instruments failed", s.Errored, s.Updated+s.Skipped+s.Errored)
	}
	return nil
}

func summarize(outcomes []Outcome) *Summary {
	summary := &Summary{
		RunID:   uuid.NewString(),
		Reasons: make(map[recon.Reason]int),
	}
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			summary.Errored++
		case o.Decision.Action == recon.ActionApply:
			summary.Updated++
			summary.Reasons[o.Decision.Reason]++
		default:
			summary.Skipped++
			summary.Reasons[o.Decision.Reason]++
		}
	}
	return summary
}

// render prints the decision lines and the run summary. Outcomes are sorted
// by instrument id so the output is deterministic regardless of worker
// scheduling, and a dry run produces byte-identical lines to a real one.
func (s *Service) render(outcomes []Outcome, summary *Summary) {
	if s.out == nil {
		return
	}

	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].InstrumentID < outcomes[j].InstrumentID
	})

	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(s.out, "%-16s error  %v\n", o.InstrumentID, o.Err)
			continue
		}
		switch o.Decision.Action {
		case recon.ActionApply:
			tuple := o.Decision.Tuple
			fmt.Fprintf(s.out, "%-16s apply  %-22s rate=%s per_payment=%s payments_per_year=%d frequency=%s\n",
				o.InstrumentID,
				o.Decision.Reason,
				tuple.Rate.String(),
				tuple.PerPayment.String(),
				tuple.PaymentsPerYear,
				tuple.Frequency,
			)
		default:
			fmt.Fprintf(s.out, "%-16s skip   %s\n", o.InstrumentID, o.Decision.Reason)
		}
	}

	// The run id goes to the log, not here: decision output must be
	// byte-identical across dry and real runs.
	fmt.Fprintf(s.out, "summary: updated=%d skipped=%d errored=%d\n", summary.Updated, summary.Skipped, summary.Errored)

	reasons := make([]string, 0, len(summary.Reasons))
	for reason := range summary.Reasons {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(s.out, "  %s=%d\n", reason, summary.Reasons[recon.Reason(reason)])
	}
}
