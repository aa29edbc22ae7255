package base

import (
	"errors"
	"fmt"
	"net/http"

	"lean-data/internal/ratelimit"
)

var (
	// ErrTransient covers 429, 5xx and network timeouts.
	ErrTransient = errors.New("transient vendor error")
	// ErrPermanent covers unknown symbols and other 4xx responses.
	ErrPermanent = ratelimit.ErrPermanent
	// ErrNoData means the vendor answered but had nothing for the request.
	ErrNoData = errors.New("no data")
	// ErrUnsupportedResolution is returned for resolutions an adapter does not serve.
	ErrUnsupportedResolution = errors.New("unsupported resolution")
	// ErrUnsupportedAssetClass is returned for asset classes an adapter does not serve.
	ErrUnsupportedAssetClass = errors.New("unsupported asset class")
)

// StatusError is a non-2xx vendor response.
type StatusError struct {
	Vendor string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Vendor, e.Code, body)
}

// Unwrap classifies the status as transient or permanent.
func (e *StatusError) Unwrap() error {
	if IsTransientStatus(e.Code) {
		return ErrTransient
	}
	return ErrPermanent
}

// IsTransientStatus reports whether a status code is worth retrying.
func IsTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

// Transient wraps err as a transient failure.
func Transient(err error) error {
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
