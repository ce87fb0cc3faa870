// Package dispatch provides a composable webhook delivery engine for Go.
//
// Dispatch is library-first: import it into your application to get managed
// webhook subscriptions, a dynamic event type catalog with JSON Schema
// validation, HMAC-signed at-least-once delivery with exponential backoff
// retries, and a replayable dead letter queue. A standalone service binary
// lives in cmd/dispatchd.
//
// Key features:
//   - Subscription management with endpoint validation before acceptance
//   - Dot-separated event types with single-segment wildcard matching
//   - HMAC signature (sha256, sha512 or sha1) on every delivery
//   - Per-attempt audit records and per-subscription delivery stats
//   - Event bus decoupling: publishers never block on endpoint I/O
//   - Composable store pattern with multiple backends (Postgres, SQLite,
//     Redis, MongoDB, Memory)
//
// Quick start:
//
//	m, err := dispatch.New(
//	    dispatch.WithStore(memory.New()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	m.Start(ctx)
//	defer m.Stop(ctx)
//
//	m.RegisterBuiltinEventTypes(ctx)
//
//	m.CreateSubscription(ctx, subscription.Input{
//	    URL:        "https://example.com/hooks",
//	    EventTypes: []string{"transaction.*"},
//	})
//
//	m.TriggerEvent(ctx, &event.Event{
//	    Type:          "transaction.created",
//	    Data:          json.RawMessage(`{"transaction_id":"TXN-301","amount":125.00,"currency":"EUR"}`),
//	    SourceService: "core-banking",
//	})
package dispatch
