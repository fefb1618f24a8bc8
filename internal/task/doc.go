// Package task runs generation jobs in the background. The Orchestrator
// starts one goroutine per job, bounds how many jobs of a project run at
// once, forwards streamed events to a notification sink and persists the
// folded result. Jobs live only in memory; nothing here survives a restart.
package task
