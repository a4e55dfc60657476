// Package handlers implements the business logic behind CLI commands.
//
// Handlers load configuration, wire the internal packages together and
// render results. External dependencies are created through factory
// variables that tests replace.
package handlers
