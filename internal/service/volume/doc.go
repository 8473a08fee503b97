// Package volume reconciles the persistent mount against the expected layout.
//
// It creates the required subdirectories (saves, config, mods, scenarios,
// script-output), seeds missing default configuration files, and exposes the
// resulting paths to the rest of the pipeline. Reconciliation is idempotent
// and never overwrites an existing user-editable file.
package volume
