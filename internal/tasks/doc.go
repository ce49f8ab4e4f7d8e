// Package tasks runs long favorites jobs over a worker pool with progress reporting.
//
// # Operations
//
// [Engine] implements two jobs:
//
//  1. [Engine.Refresh] : Re-fetch TMDB metadata for stored favorites
//     - Lists the favorites of one user, or of everyone
//     - Looks each series up through [services.Catalog]
//     - Stores the current name and poster path when they changed
//     - Reports updated, unchanged and failed counts
//
//  2. [Engine.BulkExport] : Export every user's favorites to a directory
//     - Renders one file per user with [formatter.WriteExport]
//     - Writes an export_manifest.json summarizing the run
//
// # Progress Reporting
//
// Both jobs accept an optional channel of [ProgressUpdate]. Sends use select
// with default so a slow or absent reader never blocks a worker.
//
// # Rate Limiting
//
// Jobs are dispatched through a [rate.Limiter] on top of the limiter inside
// the TMDB gateway, so a refresh over many favorites leaves headroom for
// request traffic.
package tasks
