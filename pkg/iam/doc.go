// Package iam provides the client for the external identity-and-access
// management gateway.
//
// The gateway is the system of record for client identities and federation
// links. Every failure surfaces as a fault.ExternalSystemError so callers can
// apply the right propagation policy: fatal during service account creation,
// row-isolated during link reconciliation.
package iam
