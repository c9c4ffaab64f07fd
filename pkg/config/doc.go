// Package config loads application configuration from environment variables
// and the trigger roles file. Every setting has a IDHUB_-prefixed variable;
// Validate catches inconsistent combinations before startup proceeds.
package config
