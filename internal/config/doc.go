// Package config defines the typed configuration for a server instance and
// parses it once from the container environment.
//
// The Config type covers the full recognized key set: volume and install
// locations, network ports, version channel or pin, the DLC toggle, save
// selection flags, and upstream download credentials. Validation happens at
// parse time so the rest of the pipeline only ever sees well-formed values.
package config
