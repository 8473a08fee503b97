// Package saves resolves which save or scenario the server launches with.
//
// Precedence, first match wins: declared scenario, declared save name, the
// generate-new-save flag, then the most recently modified save archive.
package saves
