// Package storage holds reminders and groups.
//
// Store keeps the working set in memory behind a single RWMutex and writes
// the whole snapshot through a Backend after each mutation. Backends:
//   - file: one JSON document plus a JSONL firing history
//   - sqlite: tables for groups, reminders and fires
//   - memory: for tests
package storage
