// Package trigger decides whether a due reminder fires and, when it does,
// notifies and stamps lastTriggeredAt.
package trigger
