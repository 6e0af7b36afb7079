// Package notifier delivers reminder notifications.
//
// Notify only enqueues. A small worker pool drains the queue, waits on a
// shared rate limiter and fans each notification out to every configured
// sink (console, desktop, Telegram), retrying failed sinks with jittered
// exponential backoff.
//
// # History
//
// For debugging and operator visibility, the service keeps a small in-memory
// history of recently delivered notifications. Final outcomes are also
// passed to an optional ResultHook, which the app uses to persist the
// firing history.
package notifier
