package schedule

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerPrefersUpdateTimestamp(t *testing.T) {
	t.Parallel()

	p1 := &Payload{UpdateTimestamp: "10:00 01.01.2025", Data: map[string]House{"1": {}}}
	p2 := &Payload{UpdateTimestamp: "10:00 01.01.2025", Fact: Fact{Update: "something else"}}
	assert.Equal(t, "updateTimestamp:10:00 01.01.2025", Marker(p1))
	// Identical updateTimestamp means identical marker regardless of the rest.
	assert.Equal(t, Marker(p1), Marker(p2))
}

func TestMarkerFallsBackToFactUpdate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "fact.update:09:30", Marker(&Payload{Fact: Fact{Update: "09:30"}}))
	assert.Equal(t, "fact.update:09:45", Marker(&Payload{Fact: Fact{UpdateFact: "09:45"}}))
}

func TestMarkerSkipsBlankStamps(t *testing.T) {
	t.Parallel()

	// A whitespace-only stamp counts as absent and falls through.
	assert.Equal(t, "fact.update:09:30",
		Marker(&Payload{UpdateTimestamp: "  ", Fact: Fact{Update: "09:30"}}))
	assert.Equal(t, MarkerUnknown,
		Marker(&Payload{UpdateTimestamp: " ", Fact: Fact{Update: "\t", UpdateFact: "\n"}}))
	// Surrounding whitespace never changes the fingerprint.
	assert.Equal(t, Marker(&Payload{UpdateTimestamp: "10:00"}),
		Marker(&Payload{UpdateTimestamp: " 10:00 "}))
}

func TestMarkerUnknownSentinel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, MarkerUnknown, Marker(&Payload{}))
	assert.Equal(t, MarkerUnknown, Marker(nil))
	// unknown == unknown: not a change under plain string equality.
	assert.Equal(t, Marker(&Payload{}), Marker(nil))
	assert.NotEqual(t, MarkerUnknown, Marker(&Payload{UpdateTimestamp: "x"}))
}

func TestQueueForHouse(t *testing.T) {
	t.Parallel()

	p := &Payload{Data: map[string]House{
		"12": {SubTypeReason: []string{"GPV1.1"}},
		"14": {SubTypeReason: nil},
	}}
	assert.Equal(t, "GPV1.1", QueueForHouse(p, "12"))
	assert.Equal(t, "", QueueForHouse(p, "14"))
	assert.Equal(t, "", QueueForHouse(p, "99"))
	assert.Equal(t, "", QueueForHouse(nil, "12"))
}

func fullForecastPayload() *Payload {
	hours := map[string]string{}
	for h := 1; h <= 24; h++ {
		hours[fmt.Sprint(h)] = "yes"
	}
	return &Payload{
		Fact: Fact{
			Today: "20250101",
			Data:  map[string]map[string]map[string]string{"20250101": {"GPV1.1": hours}},
		},
		Preset: Preset{
			TimeZone: map[string][]string{"5": {"04:00 - 05:00"}},
			TimeType: map[string]string{"yes": "power on"},
		},
	}
}

func TestTodayForecastComplete(t *testing.T) {
	t.Parallel()

	rows := TodayForecast(fullForecastPayload(), "GPV1.1")
	require.Len(t, rows, 24)
	for i, row := range rows {
		assert.Equal(t, i+1, row.Hour)
		assert.Equal(t, "yes", row.Code)
		assert.Equal(t, "power on", row.Human)
	}
	// Known label used where the preset has one, synthesized otherwise.
	assert.Equal(t, "04:00 - 05:00", rows[4].Label)
	assert.Equal(t, "06?", rows[5].Label)
}

func TestTodayForecastMissingHour(t *testing.T) {
	t.Parallel()

	p := fullForecastPayload()
	delete(p.Fact.Data["20250101"]["GPV1.1"], "13")

	rows := TodayForecast(p, "GPV1.1")
	require.Len(t, rows, 24)
	for _, row := range rows {
		if row.Hour == 13 {
			assert.Equal(t, StatusUnknown, row.Code)
			// No translation for the sentinel: the code is its own label.
			assert.Equal(t, StatusUnknown, row.Human)
			continue
		}
		assert.Equal(t, "yes", row.Code)
	}
}

func TestTodayForecastNoData(t *testing.T) {
	t.Parallel()

	assert.Nil(t, TodayForecast(&Payload{}, "GPV1.1"))
	assert.Nil(t, TodayForecast(fullForecastPayload(), "GPV9.9"))
	assert.Nil(t, TodayForecast(fullForecastPayload(), ""))
	assert.Nil(t, TodayForecast(nil, "GPV1.1"))
}
