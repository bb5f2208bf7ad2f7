// Package main hosts the outagebot service entrypoint.
//
// Architecture overview:
//   - Telegram bot: internal/telegram registers subscriber addresses through a
//     two-step dialog, answers on-demand /check requests, and delivers change
//     notifications. Subscriber identity is the Telegram chat ID.
//   - Monitor: internal/monitor runs a fixed-cadence poll loop over all active
//     subscriptions with bounded parallelism. Change detection compares an
//     opaque marker derived from the portal payload; state persists before any
//     notification goes out, so each change is announced at most once.
//   - Fetch pipeline: internal/dtek keeps a warm headless-Chrome page on the
//     portal's shutdowns page and issues the schedule query as an in-page XHR,
//     so cookies, origin and CSRF token match the site's own client.
//   - Persistence: internal/store offers file (atomic tmp+rename JSON),
//     Postgres (pgxpool upserts) and in-memory providers behind one interface.
//   - Observability: internal/events batches monitoring events to a zap log
//     sink and a Prometheus sink; internal/api serves /healthz, /readyz,
//     /metrics and a read-only subscription view over chi.
//   - Configuration: Viper with OUTAGEBOT_ env overrides and optional YAML
//     file; godotenv loads a local .env first.
//
// Run locally: go run . run --config config.yaml
// One-shot probe: go run . check --street "вул. Хрещатик" --house 12
package main

import "github.com/odanko/outagebot/cmd"

func main() {
	cmd.Execute()
}
