// Package identityproviders reconciles per-user identity-provider links
// against the IAM gateway and manages a company's provider configuration.
//
// # Reconciliation
//
// A bulk upload declares the desired links per company user. The header of
// each upload fixes the column layout: four fixed columns followed by any
// number of (alias, user id, user name) triples. The reconciler streams the
// upload row by row, diffs every declared triple against the gateway's
// current view and writes back only the changes. Failures are isolated per
// row; the run always produces a ReconcileResult with
// Total == Updated + Unchanged + Error.
//
// Links for SHARED-category providers are centrally managed: an upload may
// update the display name but never reassign the external user id.
//
// # Registration
//
// Providers are registered per company. SAML registration parses the IdP
// metadata document for the entity id, SSO endpoint and signing
// certificates; no assertion or handshake logic lives here.
package identityproviders
