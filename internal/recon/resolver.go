package recon

import (
	"github.com/shopspring/decimal"
)

// Action is what the resolver wants done with an instrument's rate tuple.
type Action string

const (
	ActionApply Action = "apply"
	ActionSkip  Action = "skip"
)

// Reason names the transition path a decision took. Reasons are stable
// identifiers: the run summary aggregates on them and tests assert on them.
type Reason string

const (
	ReasonOverrideApplied     Reason = "override_applied"
	ReasonOverrideCurrent     Reason = "override_current"
	ReasonOverrideLocked      Reason = "override_locked"
	ReasonInitialComputed     Reason = "initial_computed"
	ReasonForcedOverwrite     Reason = "forced_overwrite"
	ReasonDivergedOverwrite   Reason = "diverged_overwrite"
	ReasonWithinTolerance     Reason = "within_tolerance"
	ReasonNoPositiveCandidate Reason = "no_positive_candidate"
	ReasonExternalApplied     Reason = "external_applied"
	ReasonExternalBlacklisted Reason = "external_blacklisted"
)

// Decision is the resolver's verdict for one instrument and one event.
// Tuple is meaningful only when Action is ActionApply.
type Decision struct {
	Action Action
	Reason Reason
	Tuple  RateTuple
}

// Resolver implements the source-precedence policy. It is a pure decision
// function over (current state, event, force flag): same inputs, same
// decision, no clock, no randomness. Persistence and timestamps belong to
// the caller.
type Resolver struct {
	divergenceRatio decimal.Decimal
}

// NewResolver builds a resolver with the given material-divergence ratio.
// A non-positive ratio falls back to the default 2x band.
func NewResolver(divergenceRatio decimal.Decimal) Resolver {
	if !divergenceRatio.IsPositive() {
		divergenceRatio = DefaultDivergenceRatio
	}
	return Resolver{divergenceRatio: divergenceRatio}
}

// ResolveOverride handles the registry short-circuit. Override entries are
// terminal: once applied, only re-application of the identical entry is
// possible, and that is reported as a skip so repeated runs stay write-free.
func (r Resolver) ResolveOverride(current RateTuple, entry RateTuple) Decision {
	entry.Source = SourceOverride
	if current.Source == SourceOverride && tuplesEqual(current, entry) {
		return Decision{Action: ActionSkip, Reason: ReasonOverrideCurrent}
	}
	return Decision{Action: ActionApply, Reason: ReasonOverrideApplied, Tuple: entry}
}

// ResolveComputed handles a freshly computed TTM candidate against the
// current state.
func (r Resolver) ResolveComputed(current RateTuple, det RateDetermination, force bool) Decision {
	if current.Source == SourceOverride {
		return Decision{Action: ActionSkip, Reason: ReasonOverrideLocked}
	}
	if !det.Rate.IsPositive() {
		return Decision{Action: ActionSkip, Reason: ReasonNoPositiveCandidate}
	}

	tuple := computedTuple(det)

	// No stored rate yet: accept the candidate verbatim.
	if current.Source == SourceNone || current.Rate.IsZero() {
		return Decision{Action: ActionApply, Reason: ReasonInitialComputed, Tuple: tuple}
	}

	if force {
		return Decision{Action: ActionApply, Reason: ReasonForcedOverwrite, Tuple: tuple}
	}

	// Stored computed or external rates yield only to a materially diverging
	// candidate; the fresher computation wins over a stale figure.
	switch ClassifyDivergence(current.Rate, det.Rate, r.divergenceRatio) {
	case DivergesMaterially:
		return Decision{Action: ActionApply, Reason: ReasonDivergedOverwrite, Tuple: tuple}
	default:
		return Decision{Action: ActionSkip, Reason: ReasonWithinTolerance}
	}
}

// ResolveExternal handles a fresh provider quote. External sourcing is the
// most-frequently-refreshed tier and overwrites without divergence gating,
// except for blacklisted instruments (known-bad external source) and
// overridden ones.
func (r Resolver) ResolveExternal(current RateTuple, quote RateTuple, blacklisted bool) Decision {
	if current.Source == SourceOverride {
		return Decision{Action: ActionSkip, Reason: ReasonOverrideLocked}
	}
	if blacklisted {
		return Decision{Action: ActionSkip, Reason: ReasonExternalBlacklisted}
	}
	if !quote.Rate.IsPositive() {
		return Decision{Action: ActionSkip, Reason: ReasonNoPositiveCandidate}
	}
	quote.Source = SourceExternal
	if quote.PaymentsPerYear == 0 {
		quote.PaymentsPerYear = quote.Frequency.PaymentsPerYear()
	}
	if quote.PerPayment.IsZero() && quote.PaymentsPerYear > 0 {
		quote.PerPayment = quote.Rate.Div(decimal.NewFromInt(int64(quote.PaymentsPerYear)))
	}
	return Decision{Action: ActionApply, Reason: ReasonExternalApplied, Tuple: quote}
}

func computedTuple(det RateDetermination) RateTuple {
	tuple := RateTuple{
		Rate:            det.Rate,
		Frequency:       det.Frequency,
		PaymentsPerYear: det.Frequency.PaymentsPerYear(),
		Source:          SourceComputed,
	}
	if tuple.PaymentsPerYear > 0 {
		tuple.PerPayment = det.Rate.Div(decimal.NewFromInt(int64(tuple.PaymentsPerYear)))
	}
	return tuple
}

func tuplesEqual(a, b RateTuple) bool {
	return a.Rate.Equal(b.Rate) &&
		a.PerPayment.Equal(b.PerPayment) &&
		a.PaymentsPerYear == b.PaymentsPerYear &&
		a.Frequency == b.Frequency &&
		a.Source == b.Source
}
