// Package cronexpr normalizes user-entered schedules.
//
// Input may be a 5-field cron spec, a 6-field spec with leading seconds, an
// @descriptor, or a short English phrase such as "every weekday at 09:30".
// Output is always an expression the scheduler's parser accepts.
package cronexpr
