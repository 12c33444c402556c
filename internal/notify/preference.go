package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
)

// settings is a preference record resolved for evaluation. Contradictory or
// missing settings fall back to the permissive default for that setting and
// leave a warning behind.
type settings struct {
	enabledTypes       labelSet
	disabledTypes      labelSet
	minPriority        model.Priority
	highPriorityOnly   bool
	enabledCategories  labelSet
	disabledCategories labelSet
	enabledTags        labelSet
	disabledTags       labelSet
	channels           []model.Channel
	maxPerHour         int
	quiet              *quietHours
	location           *time.Location
	warnings           []string
}

type quietHours struct {
	start, end int
}

// contains reports whether hour falls in [start, end), wrapping midnight
// when start > end. start == end is an empty window.
func (q quietHours) contains(hour int) bool {
	if q.start < q.end {
		return hour >= q.start && hour < q.end
	}
	if q.start > q.end {
		return hour >= q.start || hour < q.end
	}
	return false
}

type labelSet map[string]bool

func newLabelSet(labels []string) labelSet {
	set := make(labelSet, len(labels))
	for _, l := range labels {
		if l = model.NormalizeLabel(l); l != "" {
			set[l] = true
		}
	}
	return set
}

func (s labelSet) has(label string) bool {
	return s[model.NormalizeLabel(label)]
}

func (s labelSet) any(labels []string) bool {
	for _, l := range labels {
		if s.has(l) {
			return true
		}
	}
	return false
}

func resolve(pref *model.NotificationPreference, agentID int64) settings {
	var s settings
	if pref == nil {
		d := model.DefaultNotificationPreference(agentID)
		pref = &d
		s.warn("no notification preference for agent %d; using defaults", agentID)
	}

	s.enabledTypes = newLabelSet(pref.EnabledTypes)
	s.disabledTypes = newLabelSet(pref.DisabledTypes)
	s.enabledCategories = newLabelSet(pref.EnabledCategories)
	s.disabledCategories = newLabelSet(pref.DisabledCategories)
	s.enabledTags = newLabelSet(pref.EnabledTags)
	s.disabledTags = newLabelSet(pref.DisabledTags)
	s.highPriorityOnly = pref.HighPriorityOnly

	s.minPriority = pref.MinPriority
	switch {
	case s.minPriority == "":
		s.minPriority = model.PriorityLow
	case model.PriorityRank(s.minPriority) == 0:
		s.warn("unknown min_priority %q; using low", pref.MinPriority)
		s.minPriority = model.PriorityLow
	}

	s.maxPerHour = pref.MaxPerHour
	if s.maxPerHour <= 0 {
		s.warn("max_notifications_per_hour %d is not positive; using %d", pref.MaxPerHour, model.DefaultMaxPerHour)
		s.maxPerHour = model.DefaultMaxPerHour
	}

	if pref.PushEnabled {
		s.channels = append(s.channels, model.ChannelPush)
	}
	if pref.EmailEnabled {
		s.channels = append(s.channels, model.ChannelEmail)
	}
	if pref.WebhookEnabled {
		if strings.TrimSpace(pref.WebhookURL) == "" {
			s.warn("webhook enabled without webhook_url; webhook channel skipped")
		} else {
			s.channels = append(s.channels, model.ChannelWebhook)
		}
	}

	s.location = time.UTC
	if tz := strings.TrimSpace(pref.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			s.warn("unknown timezone %q; using UTC", pref.Timezone)
		} else {
			s.location = loc
		}
	}

	start, end := pref.QuietHoursStart, pref.QuietHoursEnd
	switch {
	case start == nil && end == nil:
	case start == nil || end == nil:
		s.warn("quiet hours need both start and end; quiet hours ignored")
	case !validHour(*start) || !validHour(*end):
		s.warn("quiet hours %d-%d outside 0-23; quiet hours ignored", *start, *end)
	default:
		s.quiet = &quietHours{start: *start, end: *end}
	}
	return s
}

func validHour(h int) bool { return h >= 0 && h <= 23 }

func (s *settings) warn(format string, args ...any) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}
