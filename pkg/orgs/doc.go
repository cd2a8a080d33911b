// Package orgs manages client organizations, their members and the invitation
// flow. Organizations are the tenancy root: every project, file and billing
// document hangs off an organization, and access is decided by the caller's
// membership role (owner, admin, member).
//
// Organizations are soft-deleted; a deleted organization disappears from every
// query but its rows remain for audit purposes.
package orgs
