package state

type failureState struct {
	globalCount   int
	globalAlerted bool
	coinFailures  map[string]int
	coinAlerted   map[string]bool
}

func newFailureState() failureState {
	return failureState{
		coinFailures: make(map[string]int),
		coinAlerted:  make(map[string]bool),
	}
}

// NoteGlobalFailure records a failed monitor pass. It returns true exactly
// once per degraded episode, on the transition into it.
func (s *State) NoteGlobalFailure() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures.globalCount++
	if s.failures.globalAlerted {
		return false
	}
	s.failures.globalAlerted = true
	return true
}

// NoteGlobalSuccess records a pass with at least one successful lookup. It
// returns true when the pass ends a degraded episode that was alerted; ending
// an episode resets the entire failure state, global and per-asset, in one
// step. Outside an episode only the global counter is cleared, so per-asset
// history keeps accumulating across healthy passes.
func (s *State) NoteGlobalSuccess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures.globalAlerted {
		s.failures = newFailureState()
		return true
	}
	s.failures.globalCount = 0
	return false
}

// GlobalFailureCount returns the consecutive failed pass count.
func (s *State) GlobalFailureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures.globalCount
}

// NoteCoinFailure records a failed lookup for one asset during an otherwise
// healthy pass. It returns true when the consecutive count reaches threshold
// and no per-asset notice has been sent yet this episode.
func (s *State) NoteCoinFailure(coin string, threshold int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures.coinFailures[coin]++
	if threshold <= 0 || s.failures.coinFailures[coin] < threshold {
		return false
	}
	if s.failures.coinAlerted[coin] {
		return false
	}
	s.failures.coinAlerted[coin] = true
	return true
}

// NoteCoinSuccess clears the failure history of one asset.
func (s *State) NoteCoinSuccess(coin string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.failures.coinFailures, coin)
	delete(s.failures.coinAlerted, coin)
}

// CoinFailureCount returns the consecutive failed lookup count for one asset.
func (s *State) CoinFailureCount(coin string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures.coinFailures[coin]
}
