// Package token reads and mints the bearer tokens exchanged with the statistics backend.
//
// Clients only ever inspect tokens: [Inspect] decodes the claims without verifying the
// signature, which is enough to show the subject, role, usage count and expiry of the
// current login. Verification belongs to the backend; [Signer] exists for the in-repo
// fake backend and for tests.
package token
