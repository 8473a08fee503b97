// Package installer downloads and unpacks headless server releases.
//
// Installs follow a temp-then-rename discipline: the archive is landed with
// checksum verification, extracted into a staging directory beside the
// installation root, atomically swapped in, and only then is the version
// marker written. Re-running against a current marker is a no-op.
package installer
