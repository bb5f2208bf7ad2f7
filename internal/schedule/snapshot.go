package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// MarkerUnknown is the sentinel marker for a payload carrying no update
// stamp at all. Markers are compared by plain string equality, so an
// unknown-to-unknown comparison is not a change while any transition
// between unknown and a real stamp is.
const MarkerUnknown = "unknown"

// StatusUnknown is the sentinel status for an hour slot the provider left
// out of today's table.
const StatusUnknown = "unknown"

// Marker derives the change-detection fingerprint of a payload. Primary
// source is the provider's own updateTimestamp; the fact table's update
// field is the fallback. Whitespace-only stamps count as absent. The result
// is opaque: equality comparison only.
func Marker(p *Payload) string {
	if p == nil {
		return MarkerUnknown
	}
	if ut := strings.TrimSpace(p.UpdateTimestamp); ut != "" {
		return "updateTimestamp:" + ut
	}
	if u := factUpdate(p.Fact); u != "" {
		return "fact.update:" + u
	}
	return MarkerUnknown
}

func factUpdate(f Fact) string {
	if u := strings.TrimSpace(f.Update); u != "" {
		return u
	}
	return strings.TrimSpace(f.UpdateFact)
}

// QueueForHouse returns the shutdown queue code for a house, or "" when the
// house is unknown or has no queue assigned. Neither case is an error.
func QueueForHouse(p *Payload, house string) string {
	if p == nil {
		return ""
	}
	reasons := p.Data[house].SubTypeReason
	if len(reasons) == 0 {
		return ""
	}
	return reasons[0]
}

// HourStatus is one row of today's forecast.
type HourStatus struct {
	Hour  int    // 1..24
	Label string // display label for the slot, e.g. "04:00 - 05:00"
	Code  string // provider status code, StatusUnknown when absent
	Human string // translated label, falls back to Code
}

// TodayForecast resolves today's hourly statuses for a queue. It returns 24
// ordered entries, or nil when the payload has no fact data for today and
// this queue. Missing pieces degrade per entry: a synthesized slot label, the
// StatusUnknown code, the raw code as its own translation.
func TodayForecast(p *Payload, queue string) []HourStatus {
	if p == nil || queue == "" || p.Fact.Today == "" {
		return nil
	}
	hours := p.Fact.Data[p.Fact.Today][queue]
	if len(hours) == 0 {
		return nil
	}

	out := make([]HourStatus, 0, 24)
	for h := 1; h <= 24; h++ {
		key := strconv.Itoa(h)

		label := ""
		if labels := p.Preset.TimeZone[key]; len(labels) > 0 {
			label = labels[0]
		}
		if label == "" {
			label = fmt.Sprintf("%02d?", h)
		}

		code, ok := hours[key]
		if !ok || code == "" {
			code = StatusUnknown
		}

		human := p.Preset.TimeType[code]
		if human == "" {
			human = code
		}

		out = append(out, HourStatus{Hour: h, Label: label, Code: code, Human: human})
	}
	return out
}
