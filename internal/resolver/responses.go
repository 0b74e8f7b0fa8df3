package resolver

import (
	"github.com/Strata-Labs/bnsv2-api/internal/names"
	"github.com/Strata-Labs/bnsv2-api/internal/zonefile"
)

// NameDetails is a name record with its derived lifecycle. Network is set
// only for non-mainnet networks.
type NameDetails struct {
	Record        names.NameRecord `json:"record"`
	Lifecycle     names.Lifecycle  `json:"lifecycle"`
	CurrentHeight uint64           `json:"current_height"`
	Network       string           `json:"network,omitempty"`
}

// CanResolveResult answers the resolvability question directly.
type CanResolveResult struct {
	Resolvable    bool         `json:"resolvable"`
	Status        names.Status `json:"status"`
	CurrentHeight uint64       `json:"current_height"`
	Network       string       `json:"network,omitempty"`
}

// ResolveResult is a resolved zonefile. Exactly one of Zonefile and
// RawZonefile is populated, mirroring the structured/raw document split.
type ResolveResult struct {
	FullName      string           `json:"full_name"`
	Owner         string           `json:"owner"`
	Variant       zonefile.Variant `json:"variant"`
	Zonefile      map[string]any   `json:"zonefile,omitempty"`
	RawZonefile   string           `json:"raw_zonefile,omitempty"`
	CurrentHeight uint64           `json:"current_height"`
	Network       string           `json:"network,omitempty"`
}

// SubdomainsResult carries subdomain data from either schema variant.
// Sequence is the legacy ordered form; Subdomains the current keyed form.
type SubdomainsResult struct {
	FullName        string                              `json:"full_name"`
	Variant         zonefile.Variant                    `json:"variant"`
	Sequence        []zonefile.LegacySubdomain          `json:"sequence,omitempty"`
	Subdomains      map[string]zonefile.SubdomainRecord `json:"subdomains,omitempty"`
	ExternalFileURL string                              `json:"external_file_url,omitempty"`
	Network         string                              `json:"network,omitempty"`
}

// BTCAddressResult is the btc profile field of a resolved name.
type BTCAddressResult struct {
	FullName string `json:"full_name"`
	Address  string `json:"address"`
	Network  string `json:"network,omitempty"`
}

// RarityResult is a scored name with the statistics it was scored against.
type RarityResult struct {
	FullName string               `json:"full_name"`
	Rarity   names.Rarity         `json:"rarity"`
	Stats    names.NamespaceStats `json:"stats"`
	Network  string               `json:"network,omitempty"`
}

// NamespaceDetails is a namespace record with its name count.
type NamespaceDetails struct {
	Record    names.NamespaceRecord `json:"record"`
	NameCount uint64                `json:"name_count"`
	Network   string                `json:"network,omitempty"`
}

// NamespaceList is a page of namespaces.
type NamespaceList struct {
	Namespaces []names.NamespaceRecord `json:"namespaces"`
	Limit      int                     `json:"limit"`
	Offset     int                     `json:"offset"`
	Network    string                  `json:"network,omitempty"`
}

// NameListEntry is one listed name with its derived status.
type NameListEntry struct {
	Record     names.NameRecord `json:"record"`
	Status     names.Status     `json:"status"`
	Resolvable bool             `json:"resolvable"`
}

// NameList is a page of names with status, stamped with the height the
// statuses were computed at.
type NameList struct {
	Names         []NameListEntry `json:"names"`
	Limit         int             `json:"limit"`
	Offset        int             `json:"offset"`
	CurrentHeight uint64          `json:"current_height"`
	Network       string          `json:"network,omitempty"`
}

// TokenOwnerResult is the owner view of a token id.
type TokenOwnerResult struct {
	ID       uint64 `json:"id"`
	FullName string `json:"full_name"`
	Owner    string `json:"owner"`
	Network  string `json:"network,omitempty"`
}

// zonefileEnvelope is the cacheable form of a validated document.
type zonefileEnvelope struct {
	Variant zonefile.Variant `json:"variant"`
	RawText string           `json:"raw_text,omitempty"`
	Parsed  map[string]any   `json:"parsed,omitempty"`
}

func newZonefileEnvelope(doc *zonefile.Document) zonefileEnvelope {
	return zonefileEnvelope{
		Variant: doc.Variant,
		RawText: doc.RawText,
		Parsed:  doc.Parsed,
	}
}

func (e zonefileEnvelope) document() *zonefile.Document {
	return &zonefile.Document{
		Variant: e.Variant,
		RawText: e.RawText,
		Parsed:  e.Parsed,
	}
}
