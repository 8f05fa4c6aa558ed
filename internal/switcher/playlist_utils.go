package switcher

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"time"
)

const programDateTimeTag = "#EXT-X-PROGRAM-DATE-TIME:"

// ErrNoProgramDateTime is returned when a playlist carries no parseable
// #EXT-X-PROGRAM-DATE-TIME tag.
var ErrNoProgramDateTime = errors.New("no program date time tag in playlist")

// pdtLayouts are tried in order; RFC3339Nano also accepts values without fractions.
var pdtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
}

// LatestProgramDateTime returns the timestamp of the last parseable
// #EXT-X-PROGRAM-DATE-TIME tag in body. Tags whose value cannot be parsed
// are skipped, so an earlier valid tag still counts.
func LatestProgramDateTime(body []byte) (time.Time, error) {
	var (
		latest time.Time
		found  bool
	)

	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, programDateTimeTag) {
			continue
		}
		if ts, ok := parseProgramDateTime(strings.TrimSpace(line[len(programDateTimeTag):])); ok {
			latest, found = ts, true
		}
	}
	if err := sc.Err(); err != nil {
		return time.Time{}, err
	}
	if !found {
		return time.Time{}, ErrNoProgramDateTime
	}
	return latest, nil
}

// SegmentAge returns now minus the latest program date time in body.
// A timestamp ahead of now yields zero.
func SegmentAge(body []byte, now time.Time) (time.Duration, error) {
	latest, err := LatestProgramDateTime(body)
	if err != nil {
		return 0, err
	}
	age := now.Sub(latest)
	if age < 0 {
		age = 0
	}
	return age, nil
}

func parseProgramDateTime(v string) (time.Time, bool) {
	for _, layout := range pdtLayouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
