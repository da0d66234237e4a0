// Package tasks orchestrates playlist imports between music services with real-time progress reporting.
//
// # Core Operations
//
// The [ImportEngine] interface defines three operations:
//
//  1. [ImportEngine.RunMatch] : Match stage for background jobs
//     - Enumerates the source playlist from Spotify
//     - Searches each track on the target catalog concurrently
//     - Classifies every track and parks the job for review
//
//  2. [ImportEngine.RunFinalize] : Finalize stage for reviewed jobs
//     - Creates the target playlist, or reuses the one persisted earlier
//     - Writes accepted tracks in batches with split-retry on failure
//     - Records the completion report on the job
//
//  3. [ImportEngine.Transfer] : Synchronous source → target migration
//     - Skips the review queue, taking each heuristic pick as final
//     - Returns counts and missed tracks for terminal display
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Background Execution
//
// The [Queue] runs job stages on a fixed worker pool fed by a bounded channel.
// [PipelineEngine.Recover] re-enqueues interrupted work at startup so queued
// and half-imported jobs survive a process restart.
//
// # Implementation
//
// [PipelineEngine] implements [ImportEngine] with dependencies on:
//   - [services.Source] and [services.Target] : provider API adapters
//   - [repositories.JobRepository] and [repositories.ItemRepository] : SQLite job store
//   - [repositories.ConnectionRepository] : stored provider credentials
package tasks
