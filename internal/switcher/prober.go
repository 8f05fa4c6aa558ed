package switcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"hls-switcher/internal/platform/metrics"

	"golang.org/x/sync/errgroup"
)

// DefaultProbeTimeout bounds a single playlist fetch.
const DefaultProbeTimeout = 5 * time.Second

// DefaultMaxPlaylistBytes caps the playlist body size accepted by a probe.
const DefaultMaxPlaylistBytes = 4 << 20

var (
	// ErrUnexpectedStatus is returned when an origin answers a probe with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrPlaylistTooLarge is returned when a playlist body exceeds the size cap.
	// No age is derived from the prefix: its last tag is not the playlist's last tag.
	ErrPlaylistTooLarge = errors.New("playlist exceeds size limit")
)

// Failure reasons, used as metric labels.
const (
	reasonTransport = "transport"
	reasonStatus    = "status"
	reasonParse     = "parse"
)

// Prober fetches the playlist from both origins and derives their segment ages.
type Prober struct {
	primary      OriginEndpoint
	backup       OriginEndpoint
	playlistPath string
	client       *http.Client
	metrics      *metrics.Metrics
	maxBody      int64
	now          func() time.Time
}

// NewProber returns a Prober for the given origins. Metrics may be nil.
// If timeout <= 0, DefaultProbeTimeout is used.
func NewProber(primary, backup OriginEndpoint, playlistPath string, timeout time.Duration, m *metrics.Metrics) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{
		primary:      primary,
		backup:       backup,
		playlistPath: playlistPath,
		client:       &http.Client{Timeout: timeout},
		metrics:      m,
		maxBody:      DefaultMaxPlaylistBytes,
		now:          time.Now,
	}
}

// ProbeBoth probes primary and backup concurrently. Both are always probed,
// whichever origin is active.
func (p *Prober) ProbeBoth(ctx context.Context) (primary, backup ProbeResult) {
	// Results are carried out through primary/backup; the group only joins.
	var g errgroup.Group
	g.Go(func() error {
		primary = p.Probe(ctx, p.primary)
		return nil
	})
	g.Go(func() error {
		backup = p.Probe(ctx, p.backup)
		return nil
	})
	_ = g.Wait()
	return primary, backup
}

// Probe fetches origin's playlist once and returns its segment age.
// On success the age is recorded in the origin's staleness gauge.
func (p *Prober) Probe(ctx context.Context, origin OriginEndpoint) ProbeResult {
	res := ProbeResult{Origin: origin.Role}

	snap, err := p.fetch(ctx, origin)
	if err != nil {
		res.Err = err
		reason := reasonTransport
		if errors.Is(err, ErrPlaylistTooLarge) {
			reason = reasonParse
		}
		p.recordFailure(origin.Role, reason)
		return res
	}

	if snap.StatusCode >= 500 && snap.StatusCode < 600 && p.metrics != nil {
		p.metrics.IncOrigin5xx(origin.Role.String())
	}
	if snap.StatusCode < 200 || snap.StatusCode > 299 {
		res.Err = fmt.Errorf("%w: %d", ErrUnexpectedStatus, snap.StatusCode)
		p.recordFailure(origin.Role, reasonStatus)
		return res
	}

	age, err := SegmentAge(snap.Body, snap.FetchedAt)
	if err != nil {
		res.Err = fmt.Errorf("parse playlist: %w", err)
		p.recordFailure(origin.Role, reasonParse)
		return res
	}

	res.Age = age
	if p.metrics != nil {
		p.metrics.SetSegmentAge(origin.Role.String(), age.Seconds())
	}
	return res
}

func (p *Prober) fetch(ctx context.Context, origin OriginEndpoint) (PlaylistSnapshot, error) {
	url := origin.BaseURL + "/" + p.playlistPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PlaylistSnapshot{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return PlaylistSnapshot{}, fmt.Errorf("fetch playlist: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	snap := PlaylistSnapshot{Origin: origin.Role, StatusCode: resp.StatusCode}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBody+1))
		if err != nil {
			return PlaylistSnapshot{}, fmt.Errorf("read playlist body: %w", err)
		}
		if int64(len(body)) > p.maxBody {
			return PlaylistSnapshot{}, fmt.Errorf("%w: more than %d bytes", ErrPlaylistTooLarge, p.maxBody)
		}
		snap.Body = body
	}
	snap.FetchedAt = p.now()
	return snap, nil
}

func (p *Prober) recordFailure(origin Role, reason string) {
	if p.metrics != nil {
		p.metrics.IncProbeFailure(origin.String(), reason)
	}
}
