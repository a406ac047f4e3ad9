package models

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimePeriod validity classes.
const (
	DuringAll      = "a" // every day
	DuringWeekdays = "w" // monday through friday
	DuringWeekends = "y" // saturday and sunday
)

// AlertProfile is a named notification profile owned by an account. A profile
// divides the week into time periods; each period carries subscriptions that
// route matching alerts to addresses.
type AlertProfile struct {
	ID      int64
	Account string
	Name    string
	Active  bool

	Periods []TimePeriod
	Filters []FilterMatch
}

// TimePeriod is one slice of an alert profile's week. A period is in effect
// from its start time until the start of the next period in the same validity
// class, wrapping around midnight and the week.
type TimePeriod struct {
	ID          int64
	ProfileID   int64
	ValidDuring string
	Start       string // "HH:MM"

	Subscriptions []AlertSubscription
}

// FilterMatch is one condition an alert must satisfy for the profile to
// fire. All matches on a profile must hold (logical AND).
type FilterMatch struct {
	ID       int64
	Field    string // eventtype | category | group | sysname | severity
	Operator string // eq | ne | contains | gte | lte
	Value    string
}

// Alert address types understood by the dispatcher.
const (
	AddressSlack = "slack"
	AddressHTTP  = "http"
	AddressAMQP  = "amqp"
	AddressLog   = "log"
)

// AlertAddress is one delivery target owned by an account.
type AlertAddress struct {
	ID      int64
	Account string
	Type    string
	Address string
}

// AlertSubscription ties a time period to an address.
type AlertSubscription struct {
	ID        int64
	PeriodID  int64
	AddressID int64
}

// minutesOf parses "HH:MM" into minutes after midnight. Malformed values
// parse as 0, which keeps a broken period permanently at the start of day
// rather than dropping it silently.
func minutesOf(hhmm string) int {
	h, m, ok := strings.Cut(hhmm, ":")
	if !ok {
		return 0
	}
	hours, err1 := strconv.Atoi(h)
	mins, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil {
		return 0
	}
	return hours*60 + mins
}

func classMatches(class string, day time.Weekday) bool {
	weekend := day == time.Saturday || day == time.Sunday
	switch class {
	case DuringAll:
		return true
	case DuringWeekdays:
		return !weekend
	case DuringWeekends:
		return weekend
	}
	return false
}

// ActivePeriod returns the time period in effect at now, or nil when the
// profile has no applicable periods. The active period is the one with the
// latest start time not after now among today's applicable periods; before
// the first start of the day, it is the last period of the most recent
// earlier day that has any.
func (p *AlertProfile) ActivePeriod(now time.Time) *TimePeriod {
	if len(p.Periods) == 0 {
		return nil
	}

	nowMin := now.Hour()*60 + now.Minute()

	// Walk backwards up to a full week: today counting only periods that
	// started already, earlier days counting all their periods.
	for back := 0; back < 8; back++ {
		day := now.AddDate(0, 0, -back).Weekday()

		var candidates []*TimePeriod
		for i := range p.Periods {
			tp := &p.Periods[i]
			if !classMatches(tp.ValidDuring, day) {
				continue
			}
			if back == 0 && minutesOf(tp.Start) > nowMin {
				continue
			}
			candidates = append(candidates, tp)
		}
		if len(candidates) == 0 {
			continue
		}
		sort.Slice(candidates, func(i, j int) bool {
			return minutesOf(candidates[i].Start) < minutesOf(candidates[j].Start)
		})
		return candidates[len(candidates)-1]
	}
	return nil
}

// Matches reports whether the alert satisfies every filter on the profile.
// A profile without filters matches everything.
func (p *AlertProfile) Matches(a *AlertView) bool {
	for _, m := range p.Filters {
		if !m.matches(a) {
			return false
		}
	}
	return true
}

// AlertView is the flattened view of an alert the filter machinery evaluates:
// the event enriched with netbox attributes looked up by the engine.
type AlertView struct {
	EventType string
	Category  string
	Groups    []string
	Sysname   string
	Severity  int
}

func (m *FilterMatch) matches(a *AlertView) bool {
	var actual string
	switch m.Field {
	case "eventtype":
		actual = a.EventType
	case "category":
		actual = a.Category
	case "sysname":
		actual = a.Sysname
	case "severity":
		sev, err := strconv.Atoi(m.Value)
		if err != nil {
			return false
		}
		switch m.Operator {
		case "eq":
			return a.Severity == sev
		case "ne":
			return a.Severity != sev
		case "gte":
			return a.Severity >= sev
		case "lte":
			return a.Severity <= sev
		}
		return false
	case "group":
		// "ne" must hold against every group; the rest need one hit.
		if m.Operator == "ne" {
			for _, g := range a.Groups {
				if g == m.Value {
					return false
				}
			}
			return true
		}
		for _, g := range a.Groups {
			if matchString(m.Operator, g, m.Value) {
				return true
			}
		}
		return false
	default:
		return false
	}
	return matchString(m.Operator, actual, m.Value)
}

func matchString(op, actual, want string) bool {
	switch op {
	case "eq":
		return actual == want
	case "ne":
		return actual != want
	case "contains":
		return strings.Contains(actual, want)
	}
	return false
}
