package inference

import "strings"

// ErrorCategory is the user-facing classification of a failure signal.
type ErrorCategory int

const (
	// CategoryNone is returned for results that are not errors.
	CategoryNone ErrorCategory = iota
	// CategoryResourceExhaustion covers GPU/host memory exhaustion.
	CategoryResourceExhaustion
	// CategoryTimeout covers timeouts reported by the executable itself.
	CategoryTimeout
	// CategorySystemLoad is a job killed at our own deadline. Worded like CategoryTimeout.
	CategorySystemLoad
	// CategoryNetworkFailure covers network and connection errors.
	CategoryNetworkFailure
	// CategorySubsystemLoadFailure means the inference package itself failed to load.
	CategorySubsystemLoadFailure
	// CategoryGeneric is the catch-all.
	CategoryGeneric
)

// SubsystemLoadMarker appears in the executable's diagnostics when its own
// package cannot be imported.
const SubsystemLoadMarker = "llm_forex_slack_simulator"

// genericSignalLimit caps how much raw diagnostic text reaches users.
const genericSignalLimit = 100

// String returns the stable name stored in job history.
func (c ErrorCategory) String() string {
	switch c {
	case CategoryNone:
		return ""
	case CategoryResourceExhaustion:
		return "resource_exhaustion"
	case CategoryTimeout:
		return "timeout"
	case CategorySystemLoad:
		return "system_load"
	case CategoryNetworkFailure:
		return "network_failure"
	case CategorySubsystemLoadFailure:
		return "subsystem_load_failure"
	default:
		return "generic"
	}
}

var classifierRules = []struct {
	category ErrorCategory
	needles  []string
}{
	{CategoryResourceExhaustion, []string{"memory", "cuda"}},
	{CategoryTimeout, []string{"timeout"}},
	{CategoryNetworkFailure, []string{"network", "connection"}},
	{CategorySubsystemLoadFailure, []string{SubsystemLoadMarker}},
}

// Classify maps exception text or process stderr to an ErrorCategory.
// Matching is case-insensitive and the first matching rule wins.
func Classify(signal string) ErrorCategory {
	lower := strings.ToLower(signal)
	for _, rule := range classifierRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.category
			}
		}
	}
	return CategoryGeneric
}

// truncateRunes cuts s to at most n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
