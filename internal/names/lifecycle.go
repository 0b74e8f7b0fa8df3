package names

import (
	derrors "github.com/Strata-Labs/bnsv2-api/pkg/domain-errors"
)

// Status classifies a name's validity at a given chain height.
type Status string

const (
	StatusActive       Status = "active"
	StatusGracePeriod  Status = "grace-period"
	StatusExpiringSoon Status = "expiring-soon"
	StatusExpired      Status = "expired"
	StatusRevoked      Status = "revoked"
	StatusNotFound     Status = "not_found"
)

// Expiry policy in burn-chain blocks. These are consensus constants, not
// tunables: the boundary comparisons in Classify are exact contracts.
const (
	GracePeriodBlocks  uint64 = 5000
	ExpiringSoonBlocks uint64 = 4320
)

// Lifecycle is the derived validity/renewal view of a name. It is computed
// on demand and never stored.
type Lifecycle struct {
	Status        Status `json:"status"`
	Resolvable    bool   `json:"resolvable"`
	NeedsRenewal  bool   `json:"needs_renewal"`
	RenewalHeight uint64 `json:"renewal_height"`
	Perpetual     bool   `json:"perpetual"`
}

// Classify derives a name's lifecycle from its record, its namespace record,
// and the current chain height. Rules apply in strict priority order
// (fail-fast, highest priority first):
//  1. revoked name
//  2. unlaunched namespace (hard error)
//  3. managed namespace (perpetual, renewal exempt)
//  4. lifetime 0 namespace (perpetual)
//  5. height classification against the effective renewal height
func Classify(name NameRecord, ns NamespaceRecord, height uint64) (Lifecycle, error) {
	if name.Revoked {
		return Lifecycle{
			Status:        StatusRevoked,
			Resolvable:    false,
			NeedsRenewal:  false,
			RenewalHeight: 0,
		}, nil
	}

	if !ns.Launched() {
		return Lifecycle{}, derrors.Newf(derrors.CodeConflict,
			"namespace %s has not been launched", ns.Namespace)
	}

	if ns.Managed() || ns.Lifetime == 0 {
		return Lifecycle{
			Status:        StatusActive,
			Resolvable:    true,
			NeedsRenewal:  false,
			RenewalHeight: 0,
			Perpetual:     true,
		}, nil
	}

	// Imported names carry a zero placeholder renewal height; their real
	// renewal height derives from the namespace launch.
	renewal := name.RenewalHeight
	if renewal == 0 && name.Imported() {
		renewal = *ns.LaunchedAt + ns.Lifetime
	}

	lc := Lifecycle{RenewalHeight: renewal}
	switch {
	case height > renewal+GracePeriodBlocks:
		lc.Status = StatusExpired
		lc.Resolvable = false
		lc.NeedsRenewal = true
	case height > renewal:
		lc.Status = StatusGracePeriod
		lc.Resolvable = true
		lc.NeedsRenewal = true
	case height+ExpiringSoonBlocks >= renewal:
		// H >= R - SOON, written addition-first so the unsigned arithmetic
		// cannot wrap for small renewal heights.
		lc.Status = StatusExpiringSoon
		lc.Resolvable = true
		lc.NeedsRenewal = true
	default:
		lc.Status = StatusActive
		lc.Resolvable = true
	}
	return lc, nil
}
