package dtek

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odanko/outagebot/internal/schedule"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func TestQueryForm(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 12, 31, 23, 5, 0, 0, time.Local)
	form := queryForm("вул. Борщагівська", now)

	assert.Equal(t, "getHomeNum", form.Get("method"))
	assert.Equal(t, "street", form.Get("data[0][name]"))
	assert.Equal(t, "вул. Борщагівська", form.Get("data[0][value]"))
	assert.Equal(t, "updateFact", form.Get("data[1][name]"))
	// Literal plus between date and time, exactly as the site's script sends.
	assert.Equal(t, "31.12.2025+23:05", form.Get("data[1][value]"))
	// The plus survives only percent-encoded on the wire.
	assert.Contains(t, form.Encode(), "31.12.2025%2B23%3A05")
}

func TestAjaxScript(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 2, 3, 4, 0, 0, time.Local)

	script, err := ajaxScript("вул. Тест", "tok-123", now)
	require.NoError(t, err)
	assert.Contains(t, script, `fetch("/ua/ajax"`)
	assert.Contains(t, script, `"X-CSRF-Token":"tok-123"`)
	assert.Contains(t, script, `"X-Requested-With":"XMLHttpRequest"`)
	assert.Contains(t, script, "method=getHomeNum")
	assert.Contains(t, script, `credentials: "same-origin"`)

	// Without a harvested token the header is omitted entirely.
	script, err = ajaxScript("вул. Тест", "", now)
	require.NoError(t, err)
	assert.NotContains(t, script, "X-CSRF-Token")
}

func TestPayloadCacheTTL(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1000, 0)}
	cache := newPayloadCache(2*time.Minute, clk)
	p := &schedule.Payload{UpdateTimestamp: "10:00"}

	_, ok := cache.get("вул. А")
	assert.False(t, ok)

	cache.put("вул. А", p)
	got, ok := cache.get("вул. А")
	require.True(t, ok)
	assert.Same(t, p, got)

	// Different street string is a different key.
	_, ok = cache.get("вул. Б")
	assert.False(t, ok)

	clk.now = clk.now.Add(2*time.Minute + time.Second)
	_, ok = cache.get("вул. А")
	assert.False(t, ok)
}

func TestPayloadCacheDisabled(t *testing.T) {
	t.Parallel()

	cache := newPayloadCache(0, &fakeClock{})
	require.Nil(t, cache)
	// Nil cache must be inert, not panic.
	cache.put("вул. А", &schedule.Payload{})
	_, ok := cache.get("вул. А")
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	c := New(Config{}, &fakeClock{}, nil)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	<-ctx.Done()

	var timeoutErr *TimeoutError
	assert.ErrorAs(t, c.classify(errors.New("chromedp run"), ctx), &timeoutErr)

	var sessionErr *SessionError
	assert.ErrorAs(t, c.classify(errors.New("target crashed"), context.Background()), &sessionErr)
}

func TestFetchScheduleRequiresStreet(t *testing.T) {
	t.Parallel()

	c := New(Config{}, &fakeClock{}, nil)
	_, err := c.FetchSchedule(context.Background(), "")
	require.Error(t, err)
}

func TestUpstreamFormatErrorMessage(t *testing.T) {
	t.Parallel()

	err := &UpstreamFormatError{Status: 403, ContentType: "text/html", BodyPrefix: "<html>denied"}
	msg := err.Error()
	assert.Contains(t, msg, "403")
	assert.Contains(t, msg, "text/html")
	assert.Contains(t, msg, "denied")
}

func TestSnippetBounded(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 1000)
	assert.Len(t, snippet(long), bodySnippetLimit)
	assert.Equal(t, "short", snippet("short"))
}

func TestSnippetKeepsRunesWhole(t *testing.T) {
	t.Parallel()

	// Cyrillic runes are two bytes; the ASCII prefix shifts them to odd
	// offsets so the limit lands mid-rune without the boundary backoff.
	long := "x" + strings.Repeat("а", 1000)
	got := snippet(long)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), bodySnippetLimit)
	assert.Equal(t, bodySnippetLimit-1, len(got))
}
