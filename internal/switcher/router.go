package switcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultProxyTimeout bounds a single proxied request.
const DefaultProxyTimeout = 10 * time.Second

const defaultContentType = "application/octet-stream"

// ErrBodyInterrupted is returned when the upstream body fails after the
// response head was already sent to the client.
var ErrBodyInterrupted = errors.New("upstream body interrupted")

// UpstreamStatusError reports an origin response with status >= 400.
type UpstreamStatusError struct {
	Origin     Role
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("%s origin returned status %d", e.Origin, e.StatusCode)
}

// Router resolves the active origin and forwards requests to it.
type Router struct {
	primary string
	backup  string
	store   Store
	client  *http.Client
}

// NewRouter returns a Router reading the active origin from store.
// If timeout <= 0, DefaultProxyTimeout is used.
func NewRouter(primary, backup OriginEndpoint, store Store, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = DefaultProxyTimeout
	}
	return &Router{
		primary: primary.BaseURL,
		backup:  backup.BaseURL,
		store:   store,
		client:  &http.Client{Timeout: timeout},
	}
}

// Resolve returns the active origin and its base URL. The read is a single
// snapshot; a flip right after it does not affect the caller.
func (rt *Router) Resolve() (Role, string) {
	if active := rt.store.Active(); active == Backup {
		return Backup, rt.backup
	}
	return Primary, rt.primary
}

// Forward proxies a GET for path (relative to the base URL, optional query)
// to the origin active at call time. No retry and no fallback to the other origin.
// An empty path targets the base URL itself.
func (rt *Router) Forward(ctx context.Context, w http.ResponseWriter, path, rawQuery string) (Role, error) {
	origin, base := rt.Resolve()

	target := base + "/" + strings.TrimLeft(path, "/")
	if rawQuery != "" {
		target += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return origin, fmt.Errorf("build request: %w", err)
	}

	resp, err := rt.client.Do(req)
	if err != nil {
		return origin, fmt.Errorf("fetch %s: %w", origin, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return origin, &UpstreamStatusError{Origin: origin, StatusCode: resp.StatusCode}
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = defaultContentType
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		return origin, fmt.Errorf("%w: %s: %v", ErrBodyInterrupted, origin, err)
	}
	return origin, nil
}

// proxyErrorStatus maps a Forward error to the status returned to the client.
func proxyErrorStatus(err error) int {
	var use *UpstreamStatusError
	if errors.As(err, &use) {
		return use.StatusCode
	}
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
