package switcher

import "time"

// Role identifies one of the two candidate origins.
type Role int32

const (
	Primary Role = iota
	Backup
)

// String returns the identifier used in metrics labels, logs and /healthz.
func (r Role) String() string {
	switch r {
	case Primary:
		return "primary"
	case Backup:
		return "backup"
	default:
		return "unknown"
	}
}

// OriginEndpoint is one configured origin. Immutable after startup.
type OriginEndpoint struct {
	Role    Role
	BaseURL string
}

// PlaylistSnapshot is a playlist body fetched from one origin in one cycle.
type PlaylistSnapshot struct {
	Origin     Role
	StatusCode int
	Body       []byte
	FetchedAt  time.Time
}

// ProbeResult is the outcome of probing one origin: either Age or Err is meaningful.
type ProbeResult struct {
	Origin Role
	Age    time.Duration
	Err    error // non-nil means the probe failed
}

// OK reports whether the probe produced a usable age.
func (r ProbeResult) OK() bool {
	return r.Err == nil
}

// FailoverState is the hysteresis state owned by the monitor.
// BadWindows is only non-zero while Active == Primary and GoodWindows only
// while Active == Backup; every transition zeroes both.
type FailoverState struct {
	Active      Role
	BadWindows  uint
	GoodWindows uint
}

// Policy holds the hysteresis knobs for both directions.
type Policy struct {
	Threshold         time.Duration
	Windows           uint
	FailbackThreshold time.Duration
	FailbackWindows   uint
}

// SymmetricPolicy uses the same threshold and window count in both directions.
func SymmetricPolicy(threshold time.Duration, windows uint) Policy {
	return Policy{
		Threshold:         threshold,
		Windows:           windows,
		FailbackThreshold: threshold,
		FailbackWindows:   windows,
	}
}

// Event is emitted by Step when the active origin changes.
type Event int

const (
	EventNone Event = iota
	EventFailover
	EventSwitchback
)

func (e Event) String() string {
	switch e {
	case EventFailover:
		return "failover"
	case EventSwitchback:
		return "switchback"
	default:
		return "none"
	}
}
