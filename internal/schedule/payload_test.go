package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFullDocument(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"result": true,
		"data": {"12": {"sub_type_reason": ["GPV1.1", "GPV1.2"]}},
		"updateTimestamp": "10:05 01.01.2025",
		"fact": {
			"today": "20250101",
			"data": {"20250101": {"GPV1.1": {"5": "off"}}}
		},
		"preset": {
			"time_zone": {"5": ["04:00 - 05:00"]},
			"time_type": {"off": "no power"}
		}
	}`)

	p, err := Parse(raw)
	require.NoError(t, err)
	assert.True(t, p.Result)
	assert.Equal(t, "10:05 01.01.2025", p.UpdateTimestamp)
	assert.Equal(t, "GPV1.1", QueueForHouse(p, "12"))
	assert.Equal(t, "20250101", p.Fact.Today)
	assert.Equal(t, "off", p.Fact.Data["20250101"]["GPV1.1"]["5"])
	assert.Equal(t, "no power", p.Preset.TimeType["off"])
}

func TestParseNumericToday(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte(`{"fact": {"today": 20250101, "data": {"20250101": {"Q1": {"1": "yes"}}}}}`))
	require.NoError(t, err)
	assert.Equal(t, "20250101", p.Fact.Today)
	// Numeric day key still resolves against the stringly-keyed table.
	require.Len(t, TodayForecast(p, "Q1"), 24)
}

func TestParseDegradesSectionBySection(t *testing.T) {
	t.Parallel()

	// data is a bool and fact is an array: both sections degrade, the
	// document still parses and the rest stays usable.
	p, err := Parse([]byte(`{"result": true, "data": false, "fact": [1,2], "updateTimestamp": "09:00"}`))
	require.NoError(t, err)
	assert.True(t, p.Result)
	assert.Empty(t, p.Data)
	assert.Equal(t, Fact{}, p.Fact)
	assert.Equal(t, "updateTimestamp:09:00", Marker(p))
}

func TestParseEmptyObject(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, MarkerUnknown, Marker(p))
	assert.Equal(t, "", QueueForHouse(p, "12"))
	assert.Nil(t, TodayForecast(p, "Q1"))
}

func TestParseRejectsNonObject(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`<html>bot wall</html>`))
	require.Error(t, err)

	_, err = Parse([]byte(`[1,2,3]`))
	require.Error(t, err)
}

func TestParseProviderErrorShape(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte(`{"result": false, "text": "street not found"}`))
	require.NoError(t, err)
	assert.False(t, p.Result)
	assert.Equal(t, "street not found", p.Text)
}
