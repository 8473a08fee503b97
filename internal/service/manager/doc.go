// Package manager orchestrates the server startup pipeline: it resolves the
// declared release, installs it, reconciles the persistent volume and mod
// manifest, selects a save or scenario, provisions credentials, and hands
// the assembled launch command to the supervisor. The manager's exit code is
// the server child's exit code.
package manager
