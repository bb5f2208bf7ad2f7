package telegram

import (
	"strings"

	"github.com/odanko/outagebot/internal/schedule"
	"github.com/odanko/outagebot/internal/store"
)

// MessageFormatter renders subscriber-facing messages. All user text is
// Ukrainian to match the portal's audience.
type MessageFormatter struct{}

// FormatChange renders the current schedule for the subscriber's house:
// header, queue assignment and today's hourly forecast.
func (MessageFormatter) FormatChange(sub store.Subscription, payload *schedule.Payload) string {
	var b strings.Builder
	b.WriteString("⚡️ Графік відключень: ")
	b.WriteString(sub.Address.String())
	b.WriteString("\n")

	if payload != nil && payload.UpdateTimestamp != "" {
		b.WriteString("Оновлено: ")
		b.WriteString(payload.UpdateTimestamp)
		b.WriteString("\n")
	}

	queue := schedule.QueueForHouse(payload, sub.Address.House)
	if queue == "" {
		b.WriteString("\nЧергу для цього будинку не знайдено. Перевірте номер будинку або спробуйте пізніше.")
		return b.String()
	}
	b.WriteString("Черга: ")
	b.WriteString(queue)
	b.WriteString("\n")

	forecast := schedule.TodayForecast(payload, queue)
	if forecast == nil {
		b.WriteString("\nПогодинний графік на сьогодні відсутній.")
		return b.String()
	}
	b.WriteString("\nСьогодні:\n")
	for _, hour := range forecast {
		b.WriteString(hour.Label)
		b.WriteString(": ")
		b.WriteString(hour.Human)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatError renders a fetch failure. Sent once per distinct error text.
func (MessageFormatter) FormatError(sub store.Subscription, errText string) string {
	var b strings.Builder
	b.WriteString("⚠️ Не вдалося перевірити графік: ")
	b.WriteString(sub.Address.String())
	b.WriteString("\n")
	b.WriteString(errText)
	b.WriteString("\nНаступна спроба у звичайному режимі.")
	return b.String()
}

// FormatStatus renders the /status reply from stored subscription state.
func (MessageFormatter) FormatStatus(sub store.Subscription) string {
	var b strings.Builder
	b.WriteString("Адреса: ")
	b.WriteString(sub.Address.String())
	b.WriteString("\n")
	if sub.LastUpdateTimestamp != "" {
		b.WriteString("Останнє оновлення графіка: ")
		b.WriteString(sub.LastUpdateTimestamp)
		b.WriteString("\n")
	}
	if sub.LastError != "" {
		b.WriteString("Остання помилка перевірки: ")
		b.WriteString(sub.LastError)
		b.WriteString("\n")
	}
	if sub.LastUpdateTimestamp == "" && sub.LastError == "" {
		b.WriteString("Перша перевірка ще не виконувалась.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
