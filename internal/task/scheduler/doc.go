// Package scheduler fires named jobs on cron expressions or fixed intervals.
//
// A job never overlaps with itself: a tick that arrives while the previous
// run is still going is skipped. Job errors and panics are logged and never
// unschedule the job; the next tick runs as usual.
package scheduler
