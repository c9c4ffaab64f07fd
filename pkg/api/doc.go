// Package api exposes the provisioning and reconciliation operations over
// HTTP. Handlers stay thin: they authenticate, decode, delegate to the
// domain packages and map the error taxonomy onto status codes.
package api
