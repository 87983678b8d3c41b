// Package testutil contains helpers used across tests to reduce boilerplate:
// a manually driven clock, a scripted model provider and synthetic room
// images for the vision pipeline. They are not intended for production usage.
package testutil
