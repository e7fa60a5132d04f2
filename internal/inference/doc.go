// Package inference runs the external trading-decision inference job.
//
// # Single flight
//
// At most one job runs per process. Both trigger sources (the interactive slash
// command and the periodic cron job) go through Orchestrator, which owns the only
// JobLock. A request that cannot acquire the lock is rejected immediately with an
// "already running" reply; nothing is queued and nothing is retried.
//
// # Job lifecycle
//
//	Idle -> Acquiring -> Running -> Resolving -> Notifying -> Idle
//
//   - Running: Runner spawns the executable with --transaction_file and
//     --output_dir and blocks until it exits or the timeout kills it.
//   - Resolving: Resolve turns the SubprocessOutcome into a JobResult by
//     inspecting the exit status and the response.txt artifact.
//   - Notifying: the result is rendered (Classify supplies the wording for
//     failures) and handed to the notification router exactly once.
//
// The lock is released after the terminal notification on every path, including
// panics raised while running, resolving or notifying.
package inference
