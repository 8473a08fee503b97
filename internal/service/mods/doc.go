// Package mods reconciles mod-list.json against the DLC feature toggle.
//
// The toggle owns a fixed bundle of mod names; user-added entries are never
// touched. Whether a governed mod's file actually exists in the mods
// directory is left for the server's own startup validation.
package mods
