package settlement

// ValidateCandidate decides whether a candidate draw is safe to commit
// on-chain. previous holds the prior round's committed numbers, or nil when
// there is no prior round.
//
// The all-zero and same-as-previous checks are defensive heuristics: a
// degenerate scrape can parse as zeros, and a source that has not updated for
// the new day would replay yesterday's numbers.
func ValidateCandidate(candidate []int, previous []int) error {
	if len(candidate) != NumberCount {
		return ErrWrongCount
	}

	allZero := true
	for _, n := range candidate {
		if n < 0 || n > 99 {
			return ErrOutOfRange
		}
		if n != 0 {
			allZero = false
		}
	}
	if allZero {
		return ErrAllZero
	}

	if len(previous) == NumberCount {
		same := true
		for i, n := range candidate {
			if n != previous[i] {
				same = false
				break
			}
		}
		if same {
			return ErrSameAsPrevious
		}
	}

	return nil
}
