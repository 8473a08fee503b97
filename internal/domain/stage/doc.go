// Package stage names the lifecycle pipeline steps and the error taxonomy
// shared by every component: configuration, network, filesystem, and child
// process categories, plus a wrapper that records which stage failed.
package stage
