// Package resolver determines which upstream release to install.
//
// It resolves the declared channel (stable, experimental) against the
// factorio.com latest-releases listing, or takes a pinned version literally,
// compares the result with the installed version marker, and reports whether
// a download is needed along with the archive URL and checksum.
package resolver
