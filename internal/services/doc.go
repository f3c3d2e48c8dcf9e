// Package services defines shared utilities consumed by the batch
// orchestration layer and the external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp work-item IDs, batch-run IDs, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent item outcomes (failed vs invalid vs timed out).
//
// Use these helpers when wiring new integrations so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
