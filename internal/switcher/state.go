package switcher

import "time"

// Step advances the hysteresis state by one usable primary age sample.
// It is pure: callers own any side effects of the returned Event.
//
// While primary is active, ages above Threshold extend the bad run and any
// other sample clears it; Windows consecutive bad samples fail over.
// While backup is active, ages at or below FailbackThreshold extend the good
// run; FailbackWindows consecutive good samples switch back. The backup's own
// age never influences the decision.
func Step(s FailoverState, primaryAge time.Duration, p Policy) (FailoverState, Event) {
	switch s.Active {
	case Primary:
		if primaryAge > p.Threshold {
			s.BadWindows++
		} else {
			s.BadWindows = 0
		}
		if s.BadWindows >= max(p.Windows, 1) {
			return FailoverState{Active: Backup}, EventFailover
		}
	case Backup:
		if primaryAge <= p.FailbackThreshold {
			s.GoodWindows++
		} else {
			s.GoodWindows = 0
		}
		if s.GoodWindows >= max(p.FailbackWindows, 1) {
			return FailoverState{Active: Primary}, EventSwitchback
		}
	}
	return s, EventNone
}
