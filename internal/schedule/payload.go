// Package schedule models the provider's shutdown-schedule payload and the
// pure transformations over it: change markers, per-house queue lookup, and
// the hourly forecast for today.
//
// The payload is treated as semi-structured: the provider drops and reshapes
// sections without notice, so every section decodes independently and a
// malformed section degrades to its zero value instead of failing the fetch.
package schedule

import (
	"encoding/json"
	"fmt"
)

// Payload is the decoded shutdown-schedule document.
type Payload struct {
	// Result is the provider's own success flag; Text carries its error
	// message when Result is false.
	Result bool
	Text   string

	// Data maps house number to its queue assignment.
	Data map[string]House

	// UpdateTimestamp is the provider's last-change stamp, verbatim.
	UpdateTimestamp string

	Fact   Fact
	Preset Preset
}

// House holds the queue codes assigned to one house. The first entry of
// SubTypeReason is the house's shutdown queue.
type House struct {
	SubTypeReason []string `json:"sub_type_reason"`
}

// Fact is the per-day, per-queue hourly status table.
type Fact struct {
	// Today is the current day key, normalized to string form (the provider
	// stores it as either a string or a number).
	Today string

	// Update/UpdateFact carry the table's own last-update time; used as the
	// marker fallback when UpdateTimestamp is absent.
	Update     string
	UpdateFact string

	// Data maps dayKey -> queueCode -> hourSlot("1".."24") -> statusCode.
	Data map[string]map[string]map[string]string
}

// Preset holds the provider's display dictionaries.
type Preset struct {
	// TimeZone maps hour slot to its display labels ("00:00 - 01:00", ...).
	TimeZone map[string][]string `json:"time_zone"`
	// TimeType translates status codes to human labels.
	TimeType map[string]string `json:"time_type"`
}

// Parse decodes a raw provider response. Only a non-object top level is an
// error; missing or malformed sections yield zero values.
func Parse(raw []byte) (*Payload, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}

	p := &Payload{}
	decode(top["result"], &p.Result)
	decode(top["text"], &p.Text)
	decode(top["data"], &p.Data)
	decode(top["updateTimestamp"], &p.UpdateTimestamp)
	decode(top["preset"], &p.Preset)
	p.Fact = parseFact(top["fact"])
	return p, nil
}

func parseFact(raw json.RawMessage) Fact {
	var sections map[string]json.RawMessage
	if !decode(raw, &sections) {
		return Fact{}
	}

	f := Fact{}
	decode(sections["update"], &f.Update)
	decode(sections["updateFact"], &f.UpdateFact)
	decode(sections["data"], &f.Data)

	// The day key arrives as either "20250101" or 20250101.
	if !decode(sections["today"], &f.Today) {
		var n json.Number
		if decode(sections["today"], &n) {
			f.Today = n.String()
		}
	}
	return f
}

// decode unmarshals best-effort: absent or malformed input leaves dst
// untouched and reports false.
func decode(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
