package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/LuisDee/nl2sql-sub001/internal/errs"
)

// State is the per-turn bookkeeping the loop-prevention and exchange
// machinery read and write. A new question — signalled by a
// check_semantic_cache call — clears every field.
type State struct {
	mu sync.Mutex

	toolCallCount     int
	lastCallHash      string
	lastCallRepeats   int
	dryRunAttempts    int
	maxRetriesReached bool
	resolvedExchange  []string

	maxToolCalls     int
	maxRepeats       int
	maxDryRunRetries int
}

// NewState builds a State with the given per-turn budgets.
func NewState(maxToolCalls, maxRepeats, maxDryRunRetries int) *State {
	return &State{
		maxToolCalls:     maxToolCalls,
		maxRepeats:       maxRepeats,
		maxDryRunRetries: maxDryRunRetries,
	}
}

// Reset clears all per-turn fields. Called when check_semantic_cache fires.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolCallCount = 0
	s.lastCallHash = ""
	s.lastCallRepeats = 0
	s.dryRunAttempts = 0
	s.maxRetriesReached = false
	s.resolvedExchange = nil
}

// SetResolvedExchange records the dataset pair resolve_exchange produced.
func (s *State) SetResolvedExchange(datasets []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolvedExchange = datasets
}

// ResolvedExchange returns the dataset pair resolve_exchange last produced
// this turn, or nil if it hasn't run yet.
func (s *State) ResolvedExchange() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolvedExchange
}

// callHash is a stable hash of (name, canonicalised args): the raw JSON
// arguments are decoded and re-rendered as sorted key=value pairs, so two
// differently-formatted (or differently-ordered) encodings of the same
// arguments always hash the same.
func callHash(name, argsJSON string) string {
	canon := canonicalizeArgs(argsJSON)
	sum := sha256.Sum256([]byte(name + "\x00" + canon))
	return hex.EncodeToString(sum[:])
}

func canonicalizeArgs(argsJSON string) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &m); err != nil {
		return strings.Join(strings.Fields(argsJSON), " ")
	}
	keys := sortedKeys(m)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, ";")
}

// PreTool is the pre-tool callback: it runs before a tool call is
// dispatched and may block it by returning a non-nil error. It enforces the
// global per-turn call budget, the consecutive-repetition limit, and the
// dry-run/execute block once max_retries_reached is set.
func (s *State) PreTool(name, argsJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxRetriesReached && (name == "dry_run_sql" || name == "execute_sql") {
		return &errs.LoopError{Reason: "maximum dry-run retries reached; rephrase the question or try a different table"}
	}

	s.toolCallCount++
	if s.toolCallCount > s.maxToolCalls {
		return &errs.LoopError{Reason: "maximum tool calls for this turn exceeded; rephrase the question"}
	}

	hash := callHash(name, argsJSON)
	if hash == s.lastCallHash {
		s.lastCallRepeats++
	} else {
		s.lastCallHash = hash
		s.lastCallRepeats = 0
	}
	if s.lastCallRepeats >= s.maxRepeats {
		return &errs.LoopError{Reason: "the same tool call has repeated too many times; paraphrase your question or pick a different table"}
	}

	return nil
}

// PostDryRun is the post-tool callback for dry_run_sql: it tracks
// consecutive failures and flips max_retries_reached on the configured
// threshold.
func (s *State) PostDryRun(succeeded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if succeeded {
		s.dryRunAttempts = 0
		return
	}
	s.dryRunAttempts++
	if s.dryRunAttempts >= s.maxDryRunRetries {
		s.maxRetriesReached = true
	}
}

// MaxRetriesReached reports the current gate value, for tests and prompt
// assembly.
func (s *State) MaxRetriesReached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxRetriesReached
}

// sortedKeys returns m's keys in sorted order for canonicalizeArgs.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
