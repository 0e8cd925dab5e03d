package monitor

import (
	"sync"

	"github.com/Arielbs/claude-usage-monitor/internal/anthropic"
)

// State is the process-wide last-known-good view of usage and account data.
// Each field has its own lock so a usage update never blocks an account
// read. Reads are passive: they return copies and never trigger a fetch.
//
// Updates to the same field are serialized and the last writer wins; there
// is no staleness rejection across concurrent fetches.
type State struct {
	usageMu sync.RWMutex
	usage   *anthropic.UsageSnapshot

	accountMu sync.RWMutex
	account   *anthropic.AccountProfile

	errMu   sync.RWMutex
	lastErr string // empty means no error
}

// NewState returns an empty State.
func NewState() *State {
	return &State{}
}

// Usage returns the last fetched usage snapshot, or nil before the first
// successful fetch.
func (s *State) Usage() *anthropic.UsageSnapshot {
	s.usageMu.RLock()
	defer s.usageMu.RUnlock()

	if s.usage == nil {
		return nil
	}
	snapshot := *s.usage
	return &snapshot
}

// Account returns the last fetched account profile, or nil.
func (s *State) Account() *anthropic.AccountProfile {
	s.accountMu.RLock()
	defer s.accountMu.RUnlock()

	if s.account == nil {
		return nil
	}
	account := *s.account
	return &account
}

// LastError returns the last fetch error message, or "" if the most recent
// fetch succeeded.
func (s *State) LastError() string {
	s.errMu.RLock()
	defer s.errMu.RUnlock()
	return s.lastErr
}

// setUsage records a successful usage fetch, clearing any previous error so
// a stale error is never visible alongside fresh data.
func (s *State) setUsage(usage *anthropic.UsageSnapshot) {
	s.usageMu.Lock()
	s.usage = usage
	s.usageMu.Unlock()

	s.clearError()
}

// setAccount replaces the account profile wholesale.
func (s *State) setAccount(account *anthropic.AccountProfile) {
	s.accountMu.Lock()
	s.account = account
	s.accountMu.Unlock()
}

// setError records a failed fetch. The last usage and account values stay
// available: stale data beats no data.
func (s *State) setError(message string) {
	s.errMu.Lock()
	s.lastErr = message
	s.errMu.Unlock()
}

func (s *State) clearError() {
	s.errMu.Lock()
	s.lastErr = ""
	s.errMu.Unlock()
}
