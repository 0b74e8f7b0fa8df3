package resolver

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/Strata-Labs/bnsv2-api/internal/cache"
	"github.com/Strata-Labs/bnsv2-api/internal/names"
	"github.com/Strata-Labs/bnsv2-api/internal/platform/config"
	"github.com/Strata-Labs/bnsv2-api/internal/platform/logger"
	"github.com/Strata-Labs/bnsv2-api/internal/zonefile"
	derrors "github.com/Strata-Labs/bnsv2-api/pkg/domain-errors"
	"github.com/Strata-Labs/bnsv2-api/pkg/platform/sentinel"
)

const testOwner = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"

// fakeStore serves records from maps, keyed the way the snapshot store keys
// its queries.
type fakeStore struct {
	names      map[string]names.NameRecord // full name -> record
	namespaces map[string]names.NamespaceRecord
	stats      map[string]names.NamespaceStats
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		names:      make(map[string]names.NameRecord),
		namespaces: make(map[string]names.NamespaceRecord),
		stats:      make(map[string]names.NamespaceStats),
	}
}

func (f *fakeStore) GetName(_ context.Context, _, name, namespace string) (names.NameRecord, error) {
	n, ok := f.names[name+"."+namespace]
	if !ok {
		return names.NameRecord{}, sentinel.ErrNotFound
	}
	return n, nil
}

func (f *fakeStore) GetNameByID(_ context.Context, _ string, id uint64) (names.NameRecord, error) {
	for _, n := range f.names {
		if n.ID == id {
			return n, nil
		}
	}
	return names.NameRecord{}, sentinel.ErrNotFound
}

func (f *fakeStore) GetNamespace(_ context.Context, _, namespace string) (names.NamespaceRecord, error) {
	ns, ok := f.namespaces[namespace]
	if !ok {
		return names.NamespaceRecord{}, sentinel.ErrNotFound
	}
	return ns, nil
}

func (f *fakeStore) ListNames(_ context.Context, _ string, limit, offset int) ([]names.NameRecord, error) {
	out := make([]names.NameRecord, 0, len(f.names))
	for _, n := range f.names {
		out = append(out, n)
	}
	return page(out, limit, offset), nil
}

func (f *fakeStore) ListNamespaceNames(_ context.Context, _, namespace string, limit, offset int) ([]names.NameRecord, error) {
	var out []names.NameRecord
	for _, n := range f.names {
		if n.Namespace == namespace {
			out = append(out, n)
		}
	}
	return page(out, limit, offset), nil
}

func (f *fakeStore) ListNamesByAddress(_ context.Context, _, address string, limit, offset int) ([]names.NameRecord, error) {
	var out []names.NameRecord
	for _, n := range f.names {
		if n.Owner == address {
			out = append(out, n)
		}
	}
	return page(out, limit, offset), nil
}

func (f *fakeStore) ListNamespaces(_ context.Context, _ string, limit, offset int) ([]names.NamespaceRecord, error) {
	out := make([]names.NamespaceRecord, 0, len(f.namespaces))
	for _, ns := range f.namespaces {
		out = append(out, ns)
	}
	return page(out, limit, offset), nil
}

func (f *fakeStore) CountNames(_ context.Context, _, namespace string) (uint64, error) {
	var count uint64
	for _, n := range f.names {
		if n.Namespace == namespace {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) NamespaceStats(_ context.Context, _, namespace string) (names.NamespaceStats, error) {
	return f.stats[namespace], nil
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit < len(in) {
		in = in[:limit]
	}
	return in
}

type fakeOracle struct {
	height uint64
	err    error
}

func (f *fakeOracle) CurrentHeight(context.Context, string) (uint64, error) {
	return f.height, f.err
}

type fakeFetcher struct {
	subs   map[string]zonefile.SubdomainRecord
	err    error
	gotURL string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (map[string]zonefile.SubdomainRecord, error) {
	f.gotURL = url
	return f.subs, f.err
}

type ResolverSuite struct {
	suite.Suite
	store   *fakeStore
	oracle  *fakeOracle
	fetcher *fakeFetcher
	service *Service
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func launchedAt(h uint64) *uint64 { return &h }

func (s *ResolverSuite) SetupTest() {
	s.store = newFakeStore()
	s.oracle = &fakeOracle{height: 842000}
	s.fetcher = &fakeFetcher{}

	s.store.namespaces["btc"] = names.NamespaceRecord{
		Namespace:  "btc",
		LaunchedAt: launchedAt(100000),
		Lifetime:   52595,
		Manager:    names.NoManager,
	}

	var err error
	s.service, err = New(s.store, s.oracle, config.DefaultNetworks(), logger.New(),
		WithCache(cache.NewMemory()),
		WithExternalFetcher(s.fetcher),
	)
	s.Require().NoError(err)
}

func (s *ResolverSuite) addName(name string, zf map[string]any) names.NameRecord {
	record := names.NameRecord{
		Name:          name,
		Namespace:     "btc",
		Owner:         testOwner,
		RegisteredAt:  800000,
		RenewalHeight: 900000,
		ID:            uint64(len(s.store.names) + 1),
	}
	if zf != nil {
		raw, err := json.Marshal(zf)
		s.Require().NoError(err)
		encoded := hex.EncodeToString(raw)
		record.Zonefile = &encoded
	}
	s.store.names[record.FullName()] = record
	return record
}

func (s *ResolverSuite) zonefileWithExternal(url string) map[string]any {
	return map[string]any{
		"owner": testOwner, "general": "", "twitter": "", "url": "",
		"nostr": "", "lightning": "", "btc": "bc1qexample",
		"externalSubdomainFile": url,
	}
}

func (s *ResolverSuite) zonefileWithInline() map[string]any {
	return map[string]any{
		"owner": testOwner, "general": "", "twitter": "", "url": "",
		"nostr": "", "lightning": "", "btc": "bc1qexample",
		"subdomains": map[string]any{
			"pay": map[string]any{
				"owner": testOwner, "general": "", "twitter": "", "url": "",
				"nostr": "", "lightning": "", "btc": "bc1qsub",
			},
		},
	}
}

func (s *ResolverSuite) TestGetName() {
	s.Run("active name resolves with lifecycle", func() {
		s.addName("satoshi", nil)
		details, err := s.service.GetName(context.Background(), "mainnet", "satoshi", "btc")
		s.Require().NoError(err)
		s.Equal(names.StatusActive, details.Lifecycle.Status)
		s.Equal(uint64(842000), details.CurrentHeight)
		s.Empty(details.Network, "mainnet omits the network tag")
	})

	s.Run("testnet responses carry the network tag", func() {
		s.addName("satoshi", nil)
		details, err := s.service.GetName(context.Background(), "testnet", "satoshi", "btc")
		s.Require().NoError(err)
		s.Equal("testnet", details.Network)
	})

	s.Run("missing name is not found", func() {
		_, err := s.service.GetName(context.Background(), "mainnet", "ghost", "btc")
		s.True(derrors.HasCode(err, derrors.CodeNotFound))
	})

	s.Run("oracle failure is upstream unavailable", func() {
		s.addName("satoshi", nil)
		s.oracle.err = sentinel.ErrUnavailable
		defer func() { s.oracle.err = nil }()

		_, err := s.service.GetName(context.Background(), "mainnet", "satoshi", "btc")
		s.True(derrors.HasCode(err, derrors.CodeUpstreamUnavailable))
	})
}

func (s *ResolverSuite) TestCanResolve() {
	s.Run("expired name does not resolve", func() {
		record := s.addName("stale", nil)
		record.RenewalHeight = 800000 // height 842000 > 800000+5000
		s.store.names[record.FullName()] = record

		result, err := s.service.CanResolve(context.Background(), "mainnet", "stale", "btc")
		s.Require().NoError(err)
		s.False(result.Resolvable)
		s.Equal(names.StatusExpired, result.Status)
	})

	s.Run("grace period name still resolves", func() {
		record := s.addName("grace", nil)
		record.RenewalHeight = 840000 // 842000 within 840000+5000
		s.store.names[record.FullName()] = record

		result, err := s.service.CanResolve(context.Background(), "mainnet", "grace", "btc")
		s.Require().NoError(err)
		s.True(result.Resolvable)
		s.Equal(names.StatusGracePeriod, result.Status)
	})
}

func (s *ResolverSuite) TestResolve() {
	s.Run("structured zonefile resolves", func() {
		s.addName("satoshi", s.zonefileWithInline())

		result, err := s.service.Resolve(context.Background(), "mainnet", "satoshi", "btc")
		s.Require().NoError(err)
		s.Equal(zonefile.VariantCurrent, result.Variant)
		s.Equal(testOwner, result.Zonefile["owner"])
		s.Empty(result.RawZonefile)
	})

	s.Run("raw text zonefile comes back verbatim", func() {
		text := "$ORIGIN satoshi.btc"
		encoded := hex.EncodeToString([]byte(text))
		record := s.addName("rawname", nil)
		record.Zonefile = &encoded
		s.store.names[record.FullName()] = record

		result, err := s.service.Resolve(context.Background(), "mainnet", "rawname", "btc")
		s.Require().NoError(err)
		s.Equal(zonefile.VariantRaw, result.Variant)
		s.Equal(text, result.RawZonefile)
	})

	s.Run("no zonefile is not found", func() {
		s.addName("empty", nil)
		_, err := s.service.Resolve(context.Background(), "mainnet", "empty", "btc")
		s.True(derrors.HasCode(err, derrors.CodeNotFound))
	})

	s.Run("owner mismatch needs update", func() {
		zf := s.zonefileWithInline()
		zf["owner"] = "SP000000000000000000002Q6VF78"
		s.addName("stolen", zf)

		_, err := s.service.Resolve(context.Background(), "mainnet", "stolen", "btc")
		s.True(derrors.HasCode(err, derrors.CodeInvalidInput))
	})

	s.Run("revoked name is not found", func() {
		record := s.addName("banned", s.zonefileWithInline())
		record.Revoked = true
		s.store.names[record.FullName()] = record

		_, err := s.service.Resolve(context.Background(), "mainnet", "banned", "btc")
		s.True(derrors.HasCode(err, derrors.CodeNotFound))
	})
}

func (s *ResolverSuite) TestGetSubdomains() {
	s.Run("inline subdomains", func() {
		s.addName("satoshi", s.zonefileWithInline())

		result, err := s.service.GetSubdomains(context.Background(), "mainnet", "satoshi", "btc")
		s.Require().NoError(err)
		s.Contains(result.Subdomains, "pay")
		s.Empty(result.ExternalFileURL)
	})

	s.Run("external file dereferenced through the fetcher", func() {
		const fileURL = "https://bucket.s3.amazonaws.com/subs.json"
		s.addName("hosted", s.zonefileWithExternal(fileURL))
		s.fetcher.subs = map[string]zonefile.SubdomainRecord{
			"pay": {Owner: testOwner, BTC: "bc1qsub"},
		}

		result, err := s.service.GetSubdomains(context.Background(), "mainnet", "hosted", "btc")
		s.Require().NoError(err)
		s.Equal(fileURL, s.fetcher.gotURL)
		s.Equal(fileURL, result.ExternalFileURL)
		s.Contains(result.Subdomains, "pay")
	})

	s.Run("fetcher rejection propagates", func() {
		s.addName("unsafe", s.zonefileWithExternal("https://bucket.s3.amazonaws.com/subs.json"))
		s.fetcher.subs = nil
		s.fetcher.err = derrors.New(derrors.CodeUnsafeURL, "rejected")

		_, err := s.service.GetSubdomains(context.Background(), "mainnet", "unsafe", "btc")
		s.True(derrors.HasCode(err, derrors.CodeUnsafeURL))
	})

	s.Run("legacy sequence form", func() {
		zf := map[string]any{
			"owner": testOwner, "general": "", "twitter": "", "url": "",
			"nostr": "", "lightning": "", "btc": "",
			"subdomains": []any{
				map[string]any{
					"name": "pay", "sequence": float64(3), "owner": testOwner,
					"signature": "sig", "text": "txt",
				},
			},
		}
		s.addName("oldschool", zf)

		result, err := s.service.GetSubdomains(context.Background(), "mainnet", "oldschool", "btc")
		s.Require().NoError(err)
		s.Equal(zonefile.VariantLegacy, result.Variant)
		s.Require().Len(result.Sequence, 1)
		s.Equal("pay", result.Sequence[0].Name)
	})
}

func (s *ResolverSuite) TestGetBTCAddress() {
	s.addName("satoshi", s.zonefileWithInline())

	result, err := s.service.GetBTCAddress(context.Background(), "mainnet", "satoshi", "btc")
	s.Require().NoError(err)
	s.Equal("bc1qexample", result.Address)
}

func (s *ResolverSuite) TestRarity() {
	s.store.stats["btc"] = names.NamespaceStats{Total: 1000, AllLetters: 400}
	s.addName("satoshi", nil)

	s.Run("registered name scores", func() {
		result, err := s.service.Rarity(context.Background(), "mainnet", "satoshi", "btc")
		s.Require().NoError(err)
		s.GreaterOrEqual(result.Rarity.Score, 0.0)
		s.LessOrEqual(result.Rarity.Score, 100.0)
		s.NotEmpty(result.Rarity.Band)
	})

	s.Run("unregistered name is not found", func() {
		_, err := s.service.Rarity(context.Background(), "mainnet", "ghost", "btc")
		s.True(derrors.HasCode(err, derrors.CodeNotFound))
	})
}

func (s *ResolverSuite) TestTokens() {
	record := s.addName("satoshi", nil)

	s.Run("token id resolves to name details", func() {
		details, err := s.service.GetToken(context.Background(), "mainnet", record.ID)
		s.Require().NoError(err)
		s.Equal("satoshi.btc", details.Record.FullName())
	})

	s.Run("token owner view", func() {
		owner, err := s.service.GetTokenOwner(context.Background(), "mainnet", record.ID)
		s.Require().NoError(err)
		s.Equal(testOwner, owner.Owner)
	})

	s.Run("unknown token is not found", func() {
		_, err := s.service.GetToken(context.Background(), "mainnet", 9999)
		s.True(derrors.HasCode(err, derrors.CodeNotFound))
	})
}

func (s *ResolverSuite) TestLists() {
	s.addName("satoshi", nil)
	s.addName("hal", nil)

	s.Run("names list carries status and height", func() {
		list, err := s.service.ListNames(context.Background(), "mainnet", 50, 0)
		s.Require().NoError(err)
		s.Len(list.Names, 2)
		s.Equal(uint64(842000), list.CurrentHeight)
		for _, entry := range list.Names {
			s.Equal(names.StatusActive, entry.Status)
		}
	})

	s.Run("pagination bounds", func() {
		list, err := s.service.ListNames(context.Background(), "mainnet", 1, 0)
		s.Require().NoError(err)
		s.Len(list.Names, 1)

		list, err = s.service.ListNames(context.Background(), "mainnet", 50, 5)
		s.Require().NoError(err)
		s.Empty(list.Names)
	})

	s.Run("namespace detail includes count", func() {
		details, err := s.service.GetNamespace(context.Background(), "mainnet", "btc")
		s.Require().NoError(err)
		s.Equal(uint64(2), details.NameCount)
	})

	s.Run("names by address", func() {
		list, err := s.service.ListNamesByAddress(context.Background(), "mainnet", testOwner, 50, 0)
		s.Require().NoError(err)
		s.Len(list.Names, 2)
	})
}

func (s *ResolverSuite) TestConstructor() {
	s.Run("nil store rejected", func() {
		_, err := New(nil, s.oracle, config.DefaultNetworks(), logger.New())
		s.Error(err)
	})

	s.Run("nil oracle rejected", func() {
		_, err := New(s.store, nil, config.DefaultNetworks(), logger.New())
		s.Error(err)
	})
}
