// Package pipeline orchestrates extraction tasks end to end.
//
// Scheduling is single-threaded and sequential on purpose: subjects run one
// at a time, performances within a subject run one at a time, and each task
// finishes its download, extract, and verify stages before the next begins.
// Extraction order determines deterministic resumability — a partially
// written camera's missing frames are exactly those still to do — so there
// is no task pool.
//
// Durable progress lives in the manifest and in per-task completion markers;
// a run interrupted at any point resumes by consulting both and re-scanning
// existing output files.
package pipeline
