// Package scheduler is the job registry and tick engine.
//
// The registry maps a reminder id to a parsed cron schedule and a job body.
// A single background loop calls Tick on a fixed period; Tick runs due
// bodies outside the registry lock so Add/Remove never wait on a body.
package scheduler
