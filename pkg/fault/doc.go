// Package fault defines the shared error taxonomy for provisioning and
// reconciliation flows.
//
// Each error type carries the data a caller needs to act on it (missing ids,
// row numbers, the failing gateway operation) and has an Is* helper built on
// errors.As so wrapped errors classify correctly.
package fault
