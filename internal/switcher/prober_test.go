package switcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"hls-switcher/internal/platform/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

// fakeOrigin serves a playlist whose latest program date time can be moved.
type fakeOrigin struct {
	srv    *httptest.Server
	status atomic.Int32
	age    atomic.Int64 // seconds before fixedNow
	noPDT  atomic.Bool
	hits   atomic.Int32
}

func newFakeOrigin(t *testing.T) *fakeOrigin {
	t.Helper()
	o := &fakeOrigin{}
	o.status.Store(http.StatusOK)
	o.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.hits.Add(1)
		if r.URL.Path != "/hls/index.m3u8" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.WriteHeader(int(o.status.Load()))
		if o.noPDT.Load() {
			fmt.Fprint(w, "#EXTM3U\n#EXTINF:2.0,\nseg1.ts\n")
			return
		}
		latest := fixedNow.Add(-time.Duration(o.age.Load()) * time.Second)
		fmt.Fprintf(w, "#EXTM3U\n#EXT-X-PROGRAM-DATE-TIME:%s\n#EXTINF:2.0,\nseg1.ts\n#EXT-X-PROGRAM-DATE-TIME:%s\n#EXTINF:2.0,\nseg2.ts\n",
			latest.Add(-2*time.Second).Format(time.RFC3339Nano), latest.Format(time.RFC3339Nano))
	}))
	t.Cleanup(o.srv.Close)
	return o
}

func (o *fakeOrigin) endpoint(role Role) OriginEndpoint {
	return OriginEndpoint{Role: role, BaseURL: o.srv.URL + "/hls"}
}

func newTestProber(t *testing.T, primary, backup *fakeOrigin, m *metrics.Metrics) *Prober {
	t.Helper()
	p := NewProber(primary.endpoint(Primary), backup.endpoint(Backup), "index.m3u8", time.Second, m)
	p.now = func() time.Time { return fixedNow }
	return p
}

func TestProber_ProbeBoth_ages(t *testing.T) {
	primary, backup := newFakeOrigin(t), newFakeOrigin(t)
	primary.age.Store(7)
	backup.age.Store(30)
	m := metrics.New()

	pr, br := newTestProber(t, primary, backup, m).ProbeBoth(context.Background())

	require.NoError(t, pr.Err)
	require.NoError(t, br.Err)
	assert.Equal(t, Primary, pr.Origin)
	assert.Equal(t, Backup, br.Origin)
	assert.Equal(t, 7*time.Second, pr.Age)
	assert.Equal(t, 30*time.Second, br.Age)
	assert.EqualValues(t, 1, primary.hits.Load())
	assert.EqualValues(t, 1, backup.hits.Load())

	expected := `
# HELP segment_age_seconds Seconds since the latest EXT-X-PROGRAM-DATE-TIME in the origin playlist
# TYPE segment_age_seconds gauge
segment_age_seconds{origin="backup"} 30
segment_age_seconds{origin="primary"} 7
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "segment_age_seconds"))
}

func TestProber_5xx_counts_and_fails(t *testing.T) {
	primary, backup := newFakeOrigin(t), newFakeOrigin(t)
	primary.status.Store(http.StatusServiceUnavailable)

	m := metrics.New()

	pr, br := newTestProber(t, primary, backup, m).ProbeBoth(context.Background())

	assert.ErrorIs(t, pr.Err, ErrUnexpectedStatus)
	assert.False(t, pr.OK())
	assert.True(t, br.OK())

	expected := `
# HELP origin_http_5xx_total Playlist probes answered with a 5xx status
# TYPE origin_http_5xx_total counter
origin_http_5xx_total{origin="primary"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "origin_http_5xx_total"))
}

func TestProber_4xx_fails(t *testing.T) {
	primary, backup := newFakeOrigin(t), newFakeOrigin(t)
	backup.status.Store(http.StatusNotFound)

	_, br := newTestProber(t, primary, backup, nil).ProbeBoth(context.Background())
	assert.ErrorIs(t, br.Err, ErrUnexpectedStatus)
}

func TestProber_missing_tag_fails(t *testing.T) {
	primary, backup := newFakeOrigin(t), newFakeOrigin(t)
	primary.noPDT.Store(true)

	pr, _ := newTestProber(t, primary, backup, nil).ProbeBoth(context.Background())
	assert.ErrorIs(t, pr.Err, ErrNoProgramDateTime)
}

func TestProber_transport_error(t *testing.T) {
	primary, backup := newFakeOrigin(t), newFakeOrigin(t)
	p := newTestProber(t, primary, backup, nil)

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	res := p.Probe(context.Background(), OriginEndpoint{Role: Primary, BaseURL: deadURL})
	assert.Error(t, res.Err)
	assert.False(t, errors.Is(res.Err, ErrUnexpectedStatus))
}

func TestProber_timeout_is_failure(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(slow.Close)

	p := NewProber(OriginEndpoint{Role: Primary, BaseURL: slow.URL}, OriginEndpoint{Role: Backup, BaseURL: slow.URL},
		"index.m3u8", 50*time.Millisecond, nil)

	start := time.Now()
	res := p.Probe(context.Background(), OriginEndpoint{Role: Primary, BaseURL: slow.URL})
	assert.Error(t, res.Err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestProber_oversized_playlist_fails(t *testing.T) {
	// A long DVR playlist: a stale tag up front and the fresh one past the cap.
	big := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		fmt.Fprintf(w, "#EXTM3U\n#EXT-X-PROGRAM-DATE-TIME:%s\n", fixedNow.Add(-10*time.Hour).Format(time.RFC3339Nano))
		filler := strings.Repeat("#EXTINF:2.0,\nsegment-with-a-long-name.ts\n", 1024)
		for written := 0; written <= DefaultMaxPlaylistBytes; written += len(filler) {
			_, _ = io.WriteString(w, filler)
		}
		fmt.Fprintf(w, "#EXT-X-PROGRAM-DATE-TIME:%s\n", fixedNow.Add(-2*time.Second).Format(time.RFC3339Nano))
	}))
	t.Cleanup(big.Close)

	m := metrics.New()
	origin := OriginEndpoint{Role: Primary, BaseURL: big.URL + "/hls"}
	p := NewProber(origin, origin, "index.m3u8", 5*time.Second, m)
	p.now = func() time.Time { return fixedNow }

	res := p.Probe(context.Background(), origin)

	require.ErrorIs(t, res.Err, ErrPlaylistTooLarge)
	assert.Zero(t, res.Age, "no age from a truncated prefix")

	expected := `
# HELP switcher_probe_failures_total Playlist probes that produced no usable age, by reason
# TYPE switcher_probe_failures_total counter
switcher_probe_failures_total{origin="primary",reason="parse"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "switcher_probe_failures_total"))
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(""), "segment_age_seconds"))
}

func TestProber_playlist_at_cap_is_accepted(t *testing.T) {
	primary, backup := newFakeOrigin(t), newFakeOrigin(t)
	primary.age.Store(3)
	p := newTestProber(t, primary, backup, nil)
	p.maxBody = 256

	res := p.Probe(context.Background(), primary.endpoint(Primary))
	require.NoError(t, res.Err)
	assert.Equal(t, 3*time.Second, res.Age)

	p.maxBody = 16
	res = p.Probe(context.Background(), primary.endpoint(Primary))
	assert.ErrorIs(t, res.Err, ErrPlaylistTooLarge)
}
