// Package config loads the provider registry, provider credentials and
// runtime tunables.
//
// The registry ([Registry]) is a YAML document with a management_systems
// map of provider key to provider entry. Credentials live in a separate
// file so that the registry can be shared; their values may reference
// environment variables. Timeouts and retry settings come from
// TRACKSYNC_* environment variables ([LoadTimeouts]).
package config
