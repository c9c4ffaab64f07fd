// Package serviceaccounts provisions machine identities across the IAM
// gateway and the local store.
//
// Provisioning is gateway-first: the external client is created under a
// freshly allocated, prefix-derived client id, then mirrored locally as an
// ACTIVE identity with its role assignments. Role validation happens before
// either system is touched. When the requested roles include a configured
// trigger role a second PENDING account is recorded for external
// provisioning and optionally attached to a process with its initial step.
//
// There is no distributed transaction. A local failure after gateway success
// leaves the external client orphaned; the maintenance sweeper reports such
// leftovers.
package serviceaccounts
