package job

// Decision is the routing result out of probing.
type Decision struct {
	State  State
	Reason Reason
}

// Decide routes a probed job. source and estimate are nil when unknown.
//
//   - source unknown or within the ceiling: direct proceed
//   - source too large but the estimate fits: ask for confirmation
//   - otherwise: reject, distinguishing a missing estimate from an oversized one
func Decide(source, estimate *int64, ceiling int64) Decision {
	if source == nil || *source <= ceiling {
		return Decision{State: StateDirectProceed}
	}
	if estimate == nil {
		return Decision{State: StateRejected, Reason: ReasonSourceTooLargeNoEstimate}
	}
	if *estimate <= ceiling {
		return Decision{State: StateAwaitingConfirmation}
	}
	return Decision{State: StateRejected, Reason: ReasonEstimateTooLarge}
}

// AbortAfterFetch is the authoritative size check on the fetched file. Encoding
// is skipped when the file is over the ceiling and no estimate says the encode
// will bring it under.
func AbortAfterFetch(fetched int64, estimate *int64, ceiling int64) bool {
	if fetched <= ceiling {
		return false
	}
	return estimate == nil || *estimate > ceiling
}
