// Package config loads, normalizes, and validates the capstan configuration.
//
// Configuration lives in a single TOML file declaring which subjects and
// performances to extract, which cameras and modalities to select, where
// archives are staged and output is written, and the processing policy
// (retries, cleanup, free-space floor). Load applies defaults, expands
// user paths, and rejects configurations the pipeline cannot run with.
package config
