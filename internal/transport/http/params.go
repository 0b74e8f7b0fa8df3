package httptransport

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	derrors "github.com/Strata-Labs/bnsv2-api/pkg/domain-errors"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200

	namePattern      = `^[a-z0-9_+-]{1,48}$`
	namespacePattern = `^[a-z0-9-]{1,20}$`
)

// splitFullName parses a "{name}.{namespace}" path segment. Names may not
// contain dots, so the single separator is unambiguous.
func splitFullName(full string) (name, namespace string, err error) {
	parts := strings.Split(full, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", derrors.New(derrors.CodeInvalidInput, "expected name.namespace")
	}
	name, namespace = parts[0], parts[1]
	if !govalidator.Matches(name, namePattern) {
		return "", "", derrors.New(derrors.CodeInvalidInput, "invalid name")
	}
	if !govalidator.Matches(namespace, namespacePattern) {
		return "", "", derrors.New(derrors.CodeInvalidInput, "invalid namespace")
	}
	return name, namespace, nil
}

// fullNameParam extracts and validates the {fullName} chi parameter.
func fullNameParam(r *http.Request) (name, namespace string, err error) {
	return splitFullName(chi.URLParam(r, "fullName"))
}

// namespaceParam extracts and validates the {namespace} chi parameter.
func namespaceParam(r *http.Request) (string, error) {
	namespace := chi.URLParam(r, "namespace")
	if !govalidator.Matches(namespace, namespacePattern) {
		return "", derrors.New(derrors.CodeInvalidInput, "invalid namespace")
	}
	return namespace, nil
}

// addressParam extracts and validates the {address} chi parameter. Stacks
// principals are c32 encoded, upper-case alphanumeric.
func addressParam(r *http.Request) (string, error) {
	address := chi.URLParam(r, "address")
	if address == "" || !govalidator.IsAlphanumeric(address) || len(address) > 64 {
		return "", derrors.New(derrors.CodeInvalidInput, "invalid address")
	}
	return address, nil
}

// tokenIDParam extracts and validates the numeric {id} chi parameter.
func tokenIDParam(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	if !govalidator.IsNumeric(raw) {
		return 0, derrors.New(derrors.CodeInvalidInput, "invalid token id")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, derrors.New(derrors.CodeInvalidInput, "invalid token id")
	}
	return id, nil
}

// pagination reads limit/offset query parameters with defaults and bounds.
func pagination(r *http.Request) (limit, offset int, err error) {
	limit, offset = defaultPageLimit, 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxPageLimit {
			return 0, 0, derrors.Newf(derrors.CodeInvalidInput, "limit must be between 1 and %d", maxPageLimit)
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, derrors.New(derrors.CodeInvalidInput, "offset must not be negative")
		}
	}
	return limit, offset, nil
}
