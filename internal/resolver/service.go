// Package resolver composes the snapshot store, the height oracle, the
// zonefile pipeline, and the external subdomain fetcher into the query
// operations the HTTP surface exposes.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Strata-Labs/bnsv2-api/internal/cache"
	"github.com/Strata-Labs/bnsv2-api/internal/names"
	"github.com/Strata-Labs/bnsv2-api/internal/platform/config"
	"github.com/Strata-Labs/bnsv2-api/internal/zonefile"
	derrors "github.com/Strata-Labs/bnsv2-api/pkg/domain-errors"
	"github.com/Strata-Labs/bnsv2-api/pkg/platform/sentinel"
)

// Store is the read-only snapshot interface the resolver depends on.
type Store interface {
	GetName(ctx context.Context, network, name, namespace string) (names.NameRecord, error)
	GetNameByID(ctx context.Context, network string, id uint64) (names.NameRecord, error)
	GetNamespace(ctx context.Context, network, namespace string) (names.NamespaceRecord, error)
	ListNames(ctx context.Context, network string, limit, offset int) ([]names.NameRecord, error)
	ListNamespaceNames(ctx context.Context, network, namespace string, limit, offset int) ([]names.NameRecord, error)
	ListNamesByAddress(ctx context.Context, network, address string, limit, offset int) ([]names.NameRecord, error)
	ListNamespaces(ctx context.Context, network string, limit, offset int) ([]names.NamespaceRecord, error)
	CountNames(ctx context.Context, network, namespace string) (uint64, error)
	NamespaceStats(ctx context.Context, network, namespace string) (names.NamespaceStats, error)
}

// HeightOracle supplies the consensus height used as the expiry clock.
type HeightOracle interface {
	CurrentHeight(ctx context.Context, network string) (uint64, error)
}

// ExternalFetcher dereferences an externally hosted subdomain file.
type ExternalFetcher interface {
	Fetch(ctx context.Context, url string) (map[string]zonefile.SubdomainRecord, error)
}

// Service orchestrates resolution queries.
type Service struct {
	store    Store
	oracle   HeightOracle
	fetcher  ExternalFetcher
	cache    cache.Cache
	networks config.Networks
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache attaches a record/zonefile cache.
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithExternalFetcher attaches the external subdomain file fetcher.
func WithExternalFetcher(f ExternalFetcher) Option {
	return func(s *Service) { s.fetcher = f }
}

// New constructs the resolver service.
func New(store Store, oracle HeightOracle, networks config.Networks, logger *slog.Logger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if oracle == nil {
		return nil, fmt.Errorf("height oracle is required")
	}

	svc := &Service{
		store:    store,
		oracle:   oracle,
		networks: networks,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// KnownNetwork reports whether the selector names a configured network.
func (s *Service) KnownNetwork(network string) bool {
	_, ok := s.networks[network]
	return ok
}

// networkTag is the optional response field: set for every network except
// mainnet so mainnet payloads stay unchanged for existing clients.
func (s *Service) networkTag(network string) string {
	if network == "mainnet" {
		return ""
	}
	return network
}

// translate maps infrastructure sentinels to domain errors; already-tagged
// domain errors pass through unchanged.
func translate(err error, notFoundMsg string) error {
	var de *derrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return derrors.New(derrors.CodeNotFound, notFoundMsg)
	case errors.Is(err, sentinel.ErrUnavailable), errors.Is(err, sentinel.ErrMalformed):
		return derrors.Wrap(err, derrors.CodeUpstreamUnavailable, "upstream unavailable")
	default:
		return derrors.Wrap(err, derrors.CodeInternal, "query failed")
	}
}

// fetchName loads the name and namespace records concurrently.
func (s *Service) fetchName(ctx context.Context, network, name, namespace string) (names.NameRecord, names.NamespaceRecord, error) {
	var (
		record names.NameRecord
		ns     names.NamespaceRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		record, err = s.store.GetName(gctx, network, name, namespace)
		return translate(err, "name not found")
	})
	g.Go(func() error {
		var err error
		ns, err = s.store.GetNamespace(gctx, network, namespace)
		return translate(err, "namespace not found")
	})
	if err := g.Wait(); err != nil {
		return names.NameRecord{}, names.NamespaceRecord{}, err
	}
	return record, ns, nil
}

// GetName returns a name record with its derived lifecycle.
func (s *Service) GetName(ctx context.Context, network, name, namespace string) (*NameDetails, error) {
	record, ns, err := s.fetchName(ctx, network, name, namespace)
	if err != nil {
		return nil, err
	}

	height, err := s.oracle.CurrentHeight(ctx, network)
	if err != nil {
		return nil, translate(err, "name not found")
	}

	lc, err := names.Classify(record, ns, height)
	if err != nil {
		return nil, err
	}

	return &NameDetails{
		Record:        record,
		Lifecycle:     lc,
		CurrentHeight: height,
		Network:       s.networkTag(network),
	}, nil
}

// CanResolve reports whether a name currently resolves, and why not when it
// does not.
func (s *Service) CanResolve(ctx context.Context, network, name, namespace string) (*CanResolveResult, error) {
	details, err := s.GetName(ctx, network, name, namespace)
	if err != nil {
		return nil, err
	}
	return &CanResolveResult{
		Resolvable:    details.Lifecycle.Resolvable,
		Status:        details.Lifecycle.Status,
		CurrentHeight: details.CurrentHeight,
		Network:       details.Network,
	}, nil
}

// resolvableDetails loads a name and rejects it unless its lifecycle allows
// resolution. Expired and revoked names surface as not found per the query
// contract.
func (s *Service) resolvableDetails(ctx context.Context, network, name, namespace string) (*NameDetails, error) {
	details, err := s.GetName(ctx, network, name, namespace)
	if err != nil {
		return nil, err
	}
	if !details.Lifecycle.Resolvable {
		return nil, derrors.Newf(derrors.CodeNotFound, "name is %s", details.Lifecycle.Status)
	}
	return details, nil
}

// resolveDocument runs the zonefile pipeline for a resolvable name: decode,
// schema validation, owner check. Validated documents are cached per name.
func (s *Service) resolveDocument(ctx context.Context, network string, details *NameDetails) (*zonefile.Document, error) {
	if details.Record.Zonefile == nil {
		return nil, derrors.New(derrors.CodeNotFound, "name has no zonefile")
	}

	cacheKey := s.zonefileCacheKey(network, details.Record)
	if s.cache != nil {
		var cached zonefileEnvelope
		if hit, err := cache.GetJSON(ctx, s.cache, cacheKey, &cached); err == nil && hit {
			return cached.document(), nil
		}
	}

	doc := zonefile.Decode(*details.Record.Zonefile)
	if doc == nil {
		return nil, derrors.New(derrors.CodeNotFound, "name has no zonefile")
	}
	if err := zonefile.Validate(doc); err != nil {
		return nil, err
	}
	if err := zonefile.CheckOwner(doc, details.Record.Owner); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, cacheKey, newZonefileEnvelope(doc), config.ZonefileCacheTTL); err != nil {
			s.logger.WarnContext(ctx, "failed to cache zonefile",
				"name", details.Record.FullName(), "error", err)
		}
	}
	return doc, nil
}

func (s *Service) cachePrefix(network string) string {
	if nw, ok := s.networks[network]; ok && nw.CachePrefix != "" {
		return nw.CachePrefix
	}
	return "bns:" + network
}

func (s *Service) zonefileCacheKey(network string, record names.NameRecord) string {
	return fmt.Sprintf("%s:zonefile:%s", s.cachePrefix(network), record.FullName())
}

// Resolve returns the decoded, validated zonefile document of a resolvable
// name. Non-structured zonefiles come back verbatim.
func (s *Service) Resolve(ctx context.Context, network, name, namespace string) (*ResolveResult, error) {
	details, err := s.resolvableDetails(ctx, network, name, namespace)
	if err != nil {
		return nil, err
	}

	doc, err := s.resolveDocument(ctx, network, details)
	if err != nil {
		return nil, err
	}

	result := &ResolveResult{
		FullName:      details.Record.FullName(),
		Owner:         details.Record.Owner,
		Variant:       doc.Variant,
		CurrentHeight: details.CurrentHeight,
		Network:       details.Network,
	}
	if doc.Raw() {
		result.RawZonefile = doc.RawText
	} else {
		result.Zonefile = doc.Parsed
	}
	return result, nil
}

// GetSubdomains returns a name's subdomains from either variant,
// dereferencing the external file when the zonefile points at one.
func (s *Service) GetSubdomains(ctx context.Context, network, name, namespace string) (*SubdomainsResult, error) {
	details, err := s.resolvableDetails(ctx, network, name, namespace)
	if err != nil {
		return nil, err
	}

	doc, err := s.resolveDocument(ctx, network, details)
	if err != nil {
		return nil, err
	}

	result := &SubdomainsResult{
		FullName: details.Record.FullName(),
		Variant:  doc.Variant,
		Network:  details.Network,
	}

	switch doc.Variant {
	case zonefile.VariantLegacy:
		result.Sequence = doc.LegacySubdomains()
	case zonefile.VariantCurrent:
		if url, ok := doc.ExternalFileURL(); ok {
			if s.fetcher == nil {
				return nil, derrors.New(derrors.CodeInternal, "external subdomain fetching is not configured")
			}
			subs, err := s.fetcher.Fetch(ctx, url)
			if err != nil {
				return nil, err
			}
			result.Subdomains = subs
			result.ExternalFileURL = url
		} else {
			result.Subdomains = doc.InlineSubdomains()
		}
	default:
		return nil, derrors.New(derrors.CodeNotFound, "zonefile carries no subdomain data")
	}
	return result, nil
}

// GetBTCAddress returns the btc profile field of a resolvable name.
func (s *Service) GetBTCAddress(ctx context.Context, network, name, namespace string) (*BTCAddressResult, error) {
	details, err := s.resolvableDetails(ctx, network, name, namespace)
	if err != nil {
		return nil, err
	}

	doc, err := s.resolveDocument(ctx, network, details)
	if err != nil {
		return nil, err
	}

	addr, ok := doc.BTCAddress()
	if !ok {
		return nil, derrors.New(derrors.CodeNotFound, "zonefile carries no btc address")
	}
	return &BTCAddressResult{
		FullName: details.Record.FullName(),
		Address:  addr,
		Network:  details.Network,
	}, nil
}

// namespaceStats loads namespace aggregates, caching them briefly since the
// underlying query scans the whole namespace.
func (s *Service) namespaceStats(ctx context.Context, network, namespace string) (names.NamespaceStats, error) {
	cacheKey := fmt.Sprintf("%s:stats:%s", s.cachePrefix(network), namespace)
	if s.cache != nil {
		var cached names.NamespaceStats
		if hit, err := cache.GetJSON(ctx, s.cache, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	stats, err := s.store.NamespaceStats(ctx, network, namespace)
	if err != nil {
		return names.NamespaceStats{}, err
	}

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, cacheKey, stats, config.RecordCacheTTL); err != nil {
			s.logger.WarnContext(ctx, "failed to cache namespace stats",
				"namespace", namespace, "error", err)
		}
	}
	return stats, nil
}

// Rarity scores a registered name against its namespace statistics.
func (s *Service) Rarity(ctx context.Context, network, name, namespace string) (*RarityResult, error) {
	if _, err := s.store.GetName(ctx, network, name, namespace); err != nil {
		return nil, translate(err, "name not found")
	}

	stats, err := s.namespaceStats(ctx, network, namespace)
	if err != nil {
		return nil, translate(err, "namespace not found")
	}

	rarity := names.ScoreName(name, stats)
	return &RarityResult{
		FullName: name + "." + namespace,
		Rarity:   rarity,
		Stats:    stats,
		Network:  s.networkTag(network),
	}, nil
}

// GetNamespace returns a namespace record with its name count.
func (s *Service) GetNamespace(ctx context.Context, network, namespace string) (*NamespaceDetails, error) {
	ns, err := s.store.GetNamespace(ctx, network, namespace)
	if err != nil {
		return nil, translate(err, "namespace not found")
	}
	count, err := s.store.CountNames(ctx, network, namespace)
	if err != nil {
		return nil, translate(err, "namespace not found")
	}
	return &NamespaceDetails{
		Record:    ns,
		NameCount: count,
		Network:   s.networkTag(network),
	}, nil
}

// ListNamespaces pages through namespaces.
func (s *Service) ListNamespaces(ctx context.Context, network string, limit, offset int) (*NamespaceList, error) {
	records, err := s.store.ListNamespaces(ctx, network, limit, offset)
	if err != nil {
		return nil, translate(err, "no namespaces found")
	}
	return &NamespaceList{
		Namespaces: records,
		Limit:      limit,
		Offset:     offset,
		Network:    s.networkTag(network),
	}, nil
}

// listWithStatus classifies a page of name records, memoizing namespace
// lookups and fetching the height once.
func (s *Service) listWithStatus(ctx context.Context, network string, records []names.NameRecord, limit, offset int) (*NameList, error) {
	height, err := s.oracle.CurrentHeight(ctx, network)
	if err != nil {
		return nil, translate(err, "no names found")
	}

	nsCache := make(map[string]names.NamespaceRecord)
	entries := make([]NameListEntry, 0, len(records))
	for _, record := range records {
		ns, ok := nsCache[record.Namespace]
		if !ok {
			ns, err = s.store.GetNamespace(ctx, network, record.Namespace)
			if err != nil {
				return nil, translate(err, "namespace not found")
			}
			nsCache[record.Namespace] = ns
		}

		entry := NameListEntry{Record: record}
		lc, err := names.Classify(record, ns, height)
		if err != nil {
			// Unlaunched namespaces can hold imported names; report them
			// rather than failing the whole page.
			entry.Status = names.StatusNotFound
		} else {
			entry.Status = lc.Status
			entry.Resolvable = lc.Resolvable
		}
		entries = append(entries, entry)
	}

	return &NameList{
		Names:         entries,
		Limit:         limit,
		Offset:        offset,
		CurrentHeight: height,
		Network:       s.networkTag(network),
	}, nil
}

// ListNames pages through all names with their derived status.
func (s *Service) ListNames(ctx context.Context, network string, limit, offset int) (*NameList, error) {
	records, err := s.store.ListNames(ctx, network, limit, offset)
	if err != nil {
		return nil, translate(err, "no names found")
	}
	return s.listWithStatus(ctx, network, records, limit, offset)
}

// ListNamespaceNames pages through one namespace's names with status.
func (s *Service) ListNamespaceNames(ctx context.Context, network, namespace string, limit, offset int) (*NameList, error) {
	records, err := s.store.ListNamespaceNames(ctx, network, namespace, limit, offset)
	if err != nil {
		return nil, translate(err, "namespace not found")
	}
	return s.listWithStatus(ctx, network, records, limit, offset)
}

// ListNamesByAddress pages through the names an address owns, with status.
func (s *Service) ListNamesByAddress(ctx context.Context, network, address string, limit, offset int) (*NameList, error) {
	records, err := s.store.ListNamesByAddress(ctx, network, address, limit, offset)
	if err != nil {
		return nil, translate(err, "no names found for address")
	}
	return s.listWithStatus(ctx, network, records, limit, offset)
}

// GetToken returns the name record a token id points at, with lifecycle.
func (s *Service) GetToken(ctx context.Context, network string, id uint64) (*NameDetails, error) {
	record, err := s.store.GetNameByID(ctx, network, id)
	if err != nil {
		return nil, translate(err, "token not found")
	}
	return s.GetName(ctx, network, record.Name, record.Namespace)
}

// GetTokenOwner returns just the owner of a token id.
func (s *Service) GetTokenOwner(ctx context.Context, network string, id uint64) (*TokenOwnerResult, error) {
	record, err := s.store.GetNameByID(ctx, network, id)
	if err != nil {
		return nil, translate(err, "token not found")
	}
	return &TokenOwnerResult{
		ID:       record.ID,
		FullName: record.FullName(),
		Owner:    record.Owner,
		Network:  s.networkTag(network),
	}, nil
}
