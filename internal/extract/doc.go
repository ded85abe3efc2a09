// Package extract materializes per-modality assets from open .smc archives
// into the output tree.
//
// Each extractor is a pure function of (archive, output directory, selection)
// that writes files and reports summary counts. Extractors are idempotent at
// the finest practical granularity: every artifact write first checks whether
// the destination already exists and skips the decode when it does. That
// check is the crash-recovery mechanism, not an optimization — a partially
// written camera's missing frames are exactly those still to do.
//
// A single frame or camera failing to decode is logged and counted but never
// aborts the surrounding loop; extraction is best-effort per modality.
package extract
