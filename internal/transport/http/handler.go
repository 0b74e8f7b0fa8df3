package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strata-Labs/bnsv2-api/internal/resolver"
	derrors "github.com/Strata-Labs/bnsv2-api/pkg/domain-errors"
	"github.com/Strata-Labs/bnsv2-api/pkg/platform/httputil"
	"github.com/Strata-Labs/bnsv2-api/pkg/requestcontext"
)

// Service defines the resolution operations the HTTP layer exposes.
type Service interface {
	KnownNetwork(network string) bool
	GetName(ctx context.Context, network, name, namespace string) (*resolver.NameDetails, error)
	CanResolve(ctx context.Context, network, name, namespace string) (*resolver.CanResolveResult, error)
	Resolve(ctx context.Context, network, name, namespace string) (*resolver.ResolveResult, error)
	GetSubdomains(ctx context.Context, network, name, namespace string) (*resolver.SubdomainsResult, error)
	GetBTCAddress(ctx context.Context, network, name, namespace string) (*resolver.BTCAddressResult, error)
	Rarity(ctx context.Context, network, name, namespace string) (*resolver.RarityResult, error)
	GetNamespace(ctx context.Context, network, namespace string) (*resolver.NamespaceDetails, error)
	ListNamespaces(ctx context.Context, network string, limit, offset int) (*resolver.NamespaceList, error)
	ListNames(ctx context.Context, network string, limit, offset int) (*resolver.NameList, error)
	ListNamespaceNames(ctx context.Context, network, namespace string, limit, offset int) (*resolver.NameList, error)
	ListNamesByAddress(ctx context.Context, network, address string, limit, offset int) (*resolver.NameList, error)
	GetToken(ctx context.Context, network string, id uint64) (*resolver.NameDetails, error)
	GetTokenOwner(ctx context.Context, network string, id uint64) (*resolver.TokenOwnerResult, error)
}

// Handler wires resolution endpoints to the resolver service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// NewHandler constructs the HTTP handler.
func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts all network-scoped endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v2/{network}", func(r chi.Router) {
		r.Use(h.requireNetwork)

		r.Get("/names", h.handleListNames)
		r.Get("/names/{fullName}", h.handleGetName)
		r.Get("/names/{fullName}/can-resolve", h.handleCanResolve)
		r.Get("/names/{fullName}/rarity", h.handleRarity)
		r.Get("/namespaces", h.handleListNamespaces)
		r.Get("/namespaces/{namespace}", h.handleGetNamespace)
		r.Get("/namespaces/{namespace}/names", h.handleListNamespaceNames)
		r.Get("/tokens/{id}", h.handleGetToken)
		r.Get("/tokens/{id}/owner", h.handleGetTokenOwner)
		r.Get("/addresses/{address}/names", h.handleListNamesByAddress)
		r.Get("/subdomains/{fullName}", h.handleGetSubdomains)
		r.Get("/resolve/{fullName}", h.handleResolve)
		r.Get("/btc-address/{fullName}", h.handleGetBTCAddress)
	})
}

// requireNetwork rejects unknown network selectors before any handler runs
// and stores the validated selector in the request context.
func (h *Handler) requireNetwork(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		network := chi.URLParam(r, "network")
		if !h.service.KnownNetwork(network) {
			httputil.WriteError(w, derrors.Newf(derrors.CodeInvalidInput, "unknown network %q", network))
			return
		}
		ctx := requestcontext.WithNetwork(r.Context(), network)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// respond renders either the service result or its error, logging failures
// that are not the client's fault.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, result any, err error) {
	if err != nil {
		code := derrors.CodeOf(err)
		if derrors.ToHTTPStatus(code) >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "request failed",
				"request_id", requestcontext.RequestID(r.Context()),
				"path", r.URL.Path,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetName(w http.ResponseWriter, r *http.Request) {
	name, namespace, err := fullNameParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.GetName(r.Context(), requestcontext.Network(r.Context()), name, namespace)
	h.respond(w, r, result, err)
}

func (h *Handler) handleCanResolve(w http.ResponseWriter, r *http.Request) {
	name, namespace, err := fullNameParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.CanResolve(r.Context(), requestcontext.Network(r.Context()), name, namespace)
	h.respond(w, r, result, err)
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	name, namespace, err := fullNameParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.Resolve(r.Context(), requestcontext.Network(r.Context()), name, namespace)
	h.respond(w, r, result, err)
}

func (h *Handler) handleGetSubdomains(w http.ResponseWriter, r *http.Request) {
	name, namespace, err := fullNameParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.GetSubdomains(r.Context(), requestcontext.Network(r.Context()), name, namespace)
	h.respond(w, r, result, err)
}

func (h *Handler) handleGetBTCAddress(w http.ResponseWriter, r *http.Request) {
	name, namespace, err := fullNameParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.GetBTCAddress(r.Context(), requestcontext.Network(r.Context()), name, namespace)
	h.respond(w, r, result, err)
}

func (h *Handler) handleRarity(w http.ResponseWriter, r *http.Request) {
	name, namespace, err := fullNameParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.Rarity(r.Context(), requestcontext.Network(r.Context()), name, namespace)
	h.respond(w, r, result, err)
}

func (h *Handler) handleListNames(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.ListNames(r.Context(), requestcontext.Network(r.Context()), limit, offset)
	h.respond(w, r, result, err)
}

func (h *Handler) handleListNamespaces(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.ListNamespaces(r.Context(), requestcontext.Network(r.Context()), limit, offset)
	h.respond(w, r, result, err)
}

func (h *Handler) handleGetNamespace(w http.ResponseWriter, r *http.Request) {
	namespace, err := namespaceParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.GetNamespace(r.Context(), requestcontext.Network(r.Context()), namespace)
	h.respond(w, r, result, err)
}

func (h *Handler) handleListNamespaceNames(w http.ResponseWriter, r *http.Request) {
	namespace, err := namespaceParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.ListNamespaceNames(r.Context(), requestcontext.Network(r.Context()), namespace, limit, offset)
	h.respond(w, r, result, err)
}

func (h *Handler) handleListNamesByAddress(w http.ResponseWriter, r *http.Request) {
	address, err := addressParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.ListNamesByAddress(r.Context(), requestcontext.Network(r.Context()), address, limit, offset)
	h.respond(w, r, result, err)
}

func (h *Handler) handleGetToken(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.GetToken(r.Context(), requestcontext.Network(r.Context()), id)
	h.respond(w, r, result, err)
}

func (h *Handler) handleGetTokenOwner(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.GetTokenOwner(r.Context(), requestcontext.Network(r.Context()), id)
	h.respond(w, r, result, err)
}
