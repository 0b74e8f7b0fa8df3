// Package zonefile decodes the opaque per-name hex blob into a structured
// profile/subdomain document and validates the two coexisting schema
// variants. Variant discrimination is explicit: the legacy shape is tried
// first, then the current shape.
package zonefile

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode/utf8"

	derrors "github.com/Strata-Labs/bnsv2-api/pkg/domain-errors"
)

// Variant discriminates the document shapes a zonefile can take.
type Variant string

const (
	// VariantRaw is a legal non-JSON zonefile carried verbatim.
	VariantRaw Variant = "raw"
	// VariantLegacy is the original shape: base fields plus an ordered
	// subdomain sequence.
	VariantLegacy Variant = "legacy"
	// VariantCurrent is the present shape: base fields plus exactly one of
	// an inline subdomain map or an external subdomain file URL.
	VariantCurrent Variant = "current"
)

// baseFields are the seven top-level profile fields both variants require.
var baseFields = []string{"owner", "general", "twitter", "url", "nostr", "lightning", "btc"}

// subdomainFields are the seven string fields of a current-variant
// subdomain record and of every entry in an external subdomain file.
var subdomainFields = baseFields

// Document is a decoded zonefile. Exactly one of RawText or Parsed is set:
// RawText for legal non-JSON zonefiles, Parsed for JSON documents.
type Document struct {
	Variant Variant
	RawText string
	Parsed  map[string]any
}

// Raw reports whether the document is a non-structured zonefile.
func (d *Document) Raw() bool { return d.Parsed == nil }

// LegacySubdomain is one element of the legacy ordered subdomain sequence.
type LegacySubdomain struct {
	Name      string  `json:"name"`
	Sequence  float64 `json:"sequence"`
	Owner     string  `json:"owner"`
	Signature string  `json:"signature"`
	Text      string  `json:"text"`
}

// SubdomainRecord is a current-variant subdomain profile, keyed by label.
type SubdomainRecord struct {
	Owner     string `json:"owner"`
	General   string `json:"general"`
	Twitter   string `json:"twitter"`
	URL       string `json:"url"`
	Nostr     string `json:"nostr"`
	Lightning string `json:"lightning"`
	BTC       string `json:"btc"`
}

// Decode turns a hex blob into a Document. The optional 0x prefix is
// stripped; hex-decode failure means "no zonefile" (nil, nil). Bytes that do
// not parse as JSON are legal and come back verbatim as a raw document.
func Decode(hexBlob string) *Document {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexBlob), "0x")
	if trimmed == "" {
		return nil
	}

	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil
	}
	if !utf8.Valid(raw) {
		return nil
	}
	text := string(raw)

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &Document{Variant: VariantRaw, RawText: text}
	}
	return &Document{Parsed: parsed}
}

// Validate checks a parsed document against the legacy shape first, then the
// current shape, and stamps the matching variant on the document. Raw
// documents are not schema-checked and pass through unchanged.
func Validate(doc *Document) error {
	if doc == nil {
		return derrors.New(derrors.CodeNotFound, "name has no zonefile")
	}
	if doc.Raw() {
		return nil
	}

	if validateLegacy(doc.Parsed) {
		doc.Variant = VariantLegacy
		return nil
	}
	if err := validateCurrent(doc.Parsed); err != nil {
		return derrors.Wrap(err, derrors.CodeInvalidInput, "zonefile matches neither schema variant")
	}
	doc.Variant = VariantCurrent
	return nil
}

// validateLegacy requires all eight top-level fields: the seven base string
// fields plus a subdomains sequence whose every element carries the five
// legacy sub-fields with a numeric sequence.
func validateLegacy(m map[string]any) bool {
	for _, f := range baseFields {
		if _, ok := m[f].(string); !ok {
			return false
		}
	}

	rawSubs, ok := m["subdomains"].([]any)
	if !ok {
		return false
	}
	for _, rawSub := range rawSubs {
		sub, ok := rawSub.(map[string]any)
		if !ok {
			return false
		}
		for _, f := range []string{"name", "owner", "signature", "text"} {
			if _, ok := sub[f].(string); !ok {
				return false
			}
		}
		if _, ok := sub["sequence"].(float64); !ok {
			return false
		}
	}
	return true
}

// validateCurrent requires the seven base string fields and exactly one of
// an inline subdomains map or an externalSubdomainFile URL string.
func validateCurrent(m map[string]any) error {
	for _, f := range baseFields {
		if _, ok := m[f].(string); !ok {
			return derrors.Newf(derrors.CodeInvalidInput, "missing or non-string field %q", f)
		}
	}

	rawSubs, hasSubs := m["subdomains"]
	rawExt, hasExt := m["externalSubdomainFile"]
	if hasSubs && hasExt {
		return derrors.New(derrors.CodeInvalidInput,
			"subdomains and externalSubdomainFile cannot both be present")
	}
	if !hasSubs && !hasExt {
		return derrors.New(derrors.CodeInvalidInput,
			"one of subdomains or externalSubdomainFile is required")
	}

	if hasExt {
		if _, ok := rawExt.(string); !ok {
			return derrors.New(derrors.CodeInvalidInput, "externalSubdomainFile must be a string")
		}
		return nil
	}

	subs, ok := rawSubs.(map[string]any)
	if !ok {
		return derrors.New(derrors.CodeInvalidInput, "subdomains must be a map of label to record")
	}
	for label, rawSub := range subs {
		sub, ok := rawSub.(map[string]any)
		if !ok {
			return derrors.Newf(derrors.CodeInvalidInput, "subdomain %q must be an object", label)
		}
		for _, f := range subdomainFields {
			if _, ok := sub[f].(string); !ok {
				return derrors.Newf(derrors.CodeInvalidInput,
					"subdomain %q: missing or non-string field %q", label, f)
			}
		}
	}
	return nil
}

// CheckOwner verifies the document's internal owner against the name
// record's owner. A mismatch means the on-chain owner changed after the
// zonefile was written; that is a needs-update condition, not a schema
// failure.
func CheckOwner(doc *Document, owner string) error {
	if doc == nil || doc.Raw() {
		return nil
	}
	docOwner, _ := doc.Parsed["owner"].(string)
	if docOwner != owner {
		return derrors.New(derrors.CodeInvalidInput,
			"zonefile does not match current owner and needs an update")
	}
	return nil
}

// ExternalFileURL returns the external subdomain file URL of a validated
// current-variant document, if any.
func (d *Document) ExternalFileURL() (string, bool) {
	if d == nil || d.Raw() || d.Variant != VariantCurrent {
		return "", false
	}
	url, ok := d.Parsed["externalSubdomainFile"].(string)
	return url, ok && url != ""
}

// LegacySubdomains extracts the ordered subdomain sequence of a validated
// legacy document.
func (d *Document) LegacySubdomains() []LegacySubdomain {
	if d == nil || d.Raw() || d.Variant != VariantLegacy {
		return nil
	}
	rawSubs, _ := d.Parsed["subdomains"].([]any)
	out := make([]LegacySubdomain, 0, len(rawSubs))
	for _, rawSub := range rawSubs {
		sub, _ := rawSub.(map[string]any)
		seq, _ := sub["sequence"].(float64)
		out = append(out, LegacySubdomain{
			Name:      str(sub["name"]),
			Sequence:  seq,
			Owner:     str(sub["owner"]),
			Signature: str(sub["signature"]),
			Text:      str(sub["text"]),
		})
	}
	return out
}

// InlineSubdomains extracts the label-keyed subdomain map of a validated
// current document. Absent for external-file documents.
func (d *Document) InlineSubdomains() map[string]SubdomainRecord {
	if d == nil || d.Raw() || d.Variant != VariantCurrent {
		return nil
	}
	subs, ok := d.Parsed["subdomains"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]SubdomainRecord, len(subs))
	for label, rawSub := range subs {
		sub, _ := rawSub.(map[string]any)
		out[label] = SubdomainRecord{
			Owner:     str(sub["owner"]),
			General:   str(sub["general"]),
			Twitter:   str(sub["twitter"]),
			URL:       str(sub["url"]),
			Nostr:     str(sub["nostr"]),
			Lightning: str(sub["lightning"]),
			BTC:       str(sub["btc"]),
		}
	}
	return out
}

// BTCAddress returns the document's btc profile field.
func (d *Document) BTCAddress() (string, bool) {
	if d == nil || d.Raw() {
		return "", false
	}
	addr, ok := d.Parsed["btc"].(string)
	return addr, ok && addr != ""
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
