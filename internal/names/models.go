// Package names holds the name/namespace domain model, the lifecycle engine
// that classifies validity against the chain height, and the rarity scorer.
// Everything in this package is pure: no I/O, no side effects.
package names

import "encoding/json"

// NameRecord is an immutable snapshot of a registered name as materialized
// by the external indexer. This service never mutates it.
type NameRecord struct {
	Name          string  `json:"name_string"`
	Namespace     string  `json:"namespace_string"`
	Owner         string  `json:"owner"`
	RegisteredAt  uint64  `json:"registered_at"`
	RenewalHeight uint64  `json:"renewal_height"` // 0 = perpetual or import placeholder
	StxBurn       string  `json:"stx_burn"`
	Revoked       bool    `json:"revoked"`
	ImportedAt    *uint64 `json:"imported_at,omitempty"`
	PreorderedBy  string  `json:"preordered_by,omitempty"`
	Zonefile      *string `json:"zonefile,omitempty"` // opaque hex blob
	ID            uint64  `json:"id"`                 // monotonic token id
}

// FullName renders the canonical name.namespace form.
func (n NameRecord) FullName() string {
	return n.Name + "." + n.Namespace
}

// Imported reports whether the name entered the namespace via import rather
// than registration.
func (n NameRecord) Imported() bool {
	return n.ImportedAt != nil
}

// NoManager is the sentinel a namespace record carries when it has no
// designated manager.
const NoManager = "none"

// NamespaceRecord is an immutable snapshot of a namespace and its renewal
// policy. Pricing parameters are opaque to this service and passed through.
type NamespaceRecord struct {
	Namespace     string          `json:"namespace_string"`
	LaunchedAt    *uint64         `json:"launched_at,omitempty"` // unlaunched if absent
	Lifetime      uint64          `json:"lifetime"`              // 0 = no renewal required
	Manager       string          `json:"namespace_manager,omitempty"`
	PriceFunction json.RawMessage `json:"price_function,omitempty"`
}

// Launched reports whether the namespace has been launched.
func (ns NamespaceRecord) Launched() bool {
	return ns.LaunchedAt != nil
}

// Managed reports whether the namespace has a designated manager, which
// exempts its names from height-based expiry.
func (ns NamespaceRecord) Managed() bool {
	return ns.Manager != "" && ns.Manager != NoManager
}
