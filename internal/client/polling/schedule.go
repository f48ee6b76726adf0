package polling

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Schedule gates how often an entity is fetched. Zero means every cycle.
type Schedule struct {
	Expr   string
	Period time.Duration
}

// Due reports whether an entity last fetched at last should be fetched at now
func (s Schedule) Due(last, now time.Time) bool {
	if s.Period <= 0 || last.IsZero() {
		return true
	}
	return now.Sub(last) >= s.Period
}

type scheduleRule struct {
	pattern *regexp.Regexp
	period  func(match []string) time.Duration
}

func fixed(d time.Duration) func([]string) time.Duration {
	return func([]string) time.Duration { return d }
}

func counted(unit time.Duration) func([]string) time.Duration {
	return func(match []string) time.Duration {
		n, err := strconv.Atoi(match[1])
		if err != nil || n <= 0 {
			return 0
		}
		return time.Duration(n) * unit
	}
}

// scheduleRules полный список поддерживаемых выражений.
// Все остальное опрашивается каждый цикл.
var scheduleRules = []scheduleRule{
	{pattern: regexp.MustCompile(`^every (\d+) minutes?$`), period: counted(time.Minute)},
	{pattern: regexp.MustCompile(`^every (\d+) hours?$`), period: counted(time.Hour)},
	{pattern: regexp.MustCompile(`^hourly$`), period: fixed(time.Hour)},
	{pattern: regexp.MustCompile(`^daily$`), period: fixed(24 * time.Hour)},
	{pattern: regexp.MustCompile(`^weekly$`), period: fixed(7 * 24 * time.Hour)},
}

// ParseSchedule matches expr against the rule table. An empty expression is
// valid and means every cycle; an unsupported one returns ok=false and
// also falls back to every cycle.
func ParseSchedule(expr string) (Schedule, bool) {
	normalized := strings.Join(strings.Fields(strings.ToLower(expr)), " ")
	if normalized == "" {
		return Schedule{}, true
	}
	for _, rule := range scheduleRules {
		match := rule.pattern.FindStringSubmatch(normalized)
		if match == nil {
			continue
		}
		period := rule.period(match)
		if period <= 0 {
			return Schedule{Expr: expr}, false
		}
		return Schedule{Expr: expr, Period: period}, true
	}
	return Schedule{Expr: expr}, false
}
