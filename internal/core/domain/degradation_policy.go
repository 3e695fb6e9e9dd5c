package domain

import "strings"

// DegradationPolicyMode enumerates how backend checks behave when the revocation store is unreachable.
type DegradationPolicyMode string

const (
	// DegradationPolicyModeLenient falls through to the session store when revocation data cannot be read.
	DegradationPolicyModeLenient DegradationPolicyMode = "lenient"
	// DegradationPolicyModeStrict reports ERROR whenever revocation data cannot be read.
	DegradationPolicyModeStrict DegradationPolicyMode = "strict"
)

// DegradationReason captures which dependency failed.
type DegradationReason string

const (
	// DegradationReasonRevocationStoreUnavailable denotes redis revocation lookups failed or timed out.
	DegradationReasonRevocationStoreUnavailable DegradationReason = "revocation_store_unavailable"
)

// DegradationPolicy decides whether a backend check may continue after a partial failure.
type DegradationPolicy struct {
	mode DegradationPolicyMode
}

// NewDegradationPolicy constructs a policy, defaulting to lenient.
func NewDegradationPolicy(mode DegradationPolicyMode) DegradationPolicy {
	if mode != DegradationPolicyModeStrict {
		mode = DegradationPolicyModeLenient
	}
	return DegradationPolicy{mode: mode}
}

// ParseDegradationPolicyMode normalises textual input into a supported policy mode.
func ParseDegradationPolicyMode(value string) DegradationPolicyMode {
	if strings.EqualFold(strings.TrimSpace(value), string(DegradationPolicyModeStrict)) {
		return DegradationPolicyModeStrict
	}
	return DegradationPolicyModeLenient
}

// Mode returns the underlying policy mode.
func (p DegradationPolicy) Mode() DegradationPolicyMode {
	return p.mode
}

// IsStrict indicates whether the policy rejects degraded states.
func (p DegradationPolicy) IsStrict() bool {
	return p.mode == DegradationPolicyModeStrict
}

// AllowsFallback reports whether work may continue after the supplied failure.
func (p DegradationPolicy) AllowsFallback(DegradationReason) bool {
	return !p.IsStrict()
}
