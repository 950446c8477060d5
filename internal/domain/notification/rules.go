package notification

import (
	"strconv"
	"strings"
	"time"
)

// InQuietHours reports whether now falls inside the user's quiet window.
// Bounds are HH:mm or HH:mm:ss strings interpreted in the given IANA
// timezone. A missing bound, an unknown timezone, or an unparseable bound
// disables quiet hours entirely. Equal bounds define a zero-width window,
// which means "no restriction", not "always quiet".
func InQuietHours(now time.Time, quietStart, quietEnd, timezone string) bool {
	if quietStart == "" || quietEnd == "" {
		return false
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return false
	}
	start, ok := clockSeconds(quietStart)
	if !ok {
		return false
	}
	end, ok := clockSeconds(quietEnd)
	if !ok {
		return false
	}
	if start == end {
		return false
	}

	local := now.In(loc)
	current := local.Hour()*3600 + local.Minute()*60 + local.Second()

	if start < end {
		return current >= start && current < end
	}
	// Window wraps midnight.
	return current >= start || current < end
}

// clockSeconds parses "HH:mm" or "HH:mm:ss" into seconds since midnight.
func clockSeconds(value string) (int, bool) {
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, false
	}
	seconds := 0
	if len(parts) == 3 {
		seconds, err = strconv.Atoi(parts[2])
		if err != nil || seconds < 0 || seconds > 59 {
			return 0, false
		}
	}
	return hours*3600 + minutes*60 + seconds, true
}

// AllowedChannels computes the effective channel set for an event. The base
// candidate list is the requested channels, or every channel present in the
// preference map when the request names none. A channel survives only if
// the user has it enabled; under quiet hours it must additionally appear in
// quietOverrides, and an empty override list suppresses everything. Order
// follows the base list with duplicates collapsed.
func AllowedChannels(preferences map[Channel]bool, requested []Channel, quiet bool, quietOverrides []Channel) []Channel {
	base := requested
	if len(base) == 0 {
		for _, ch := range AllChannels {
			if _, ok := preferences[ch]; ok {
				base = append(base, ch)
			}
		}
	}

	if quiet && len(quietOverrides) == 0 {
		return []Channel{}
	}

	overrides := make(map[Channel]bool, len(quietOverrides))
	for _, ch := range quietOverrides {
		overrides[ch] = true
	}

	seen := make(map[Channel]bool, len(base))
	allowed := make([]Channel, 0, len(base))
	for _, ch := range base {
		if seen[ch] {
			continue
		}
		seen[ch] = true
		if !preferences[ch] {
			continue
		}
		if quiet && !overrides[ch] {
			continue
		}
		allowed = append(allowed, ch)
	}
	return allowed
}
