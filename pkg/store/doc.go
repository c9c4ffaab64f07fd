// Package store provides the persistence layer for identities, service
// account records, role assignments and process records.
//
// The store is one of the two authoritative systems the provisioning core
// keeps consistent. It is never the source of truth for identity-provider
// links (the IAM gateway is); it owns identities, service accounts, role
// assignments and the process/step records that track asynchronous external
// provisioning.
package store
