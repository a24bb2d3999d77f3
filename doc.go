// Package auth provides session and account orchestration on top of a hosted
// identity provider (email/password sign-in with mandatory email
// verification) plus the local profile store that mirrors provider
// identities.
//
// Session lifecycle:
//   - Manager owns the one active Session. It treats a session as usable only
//     while its expiry clears a safety buffer, deduplicates concurrent refresh
//     attempts into a single provider exchange, and keeps a timer armed so
//     tokens renew ahead of expiry without caller involvement.
//   - StateTracker folds Manager events into an AuthState snapshot (current
//     user, authenticated flag, loading flags) that UI layers can subscribe
//     to through a single callback.
//
// Accounts:
//   - Auther runs the signup, verification, sign-in, and sign-out flows.
//     Signup never creates a local profile; the profile is provisioned
//     transactionally when the verification token is redeemed, with sellers
//     held in a pending state until approved.
//   - Profiles is the Bun-backed repository for those rows, keyed by the
//     provider identity id.
//
// Providers:
//   - Provider abstracts the hosted auth API. The provider/agrobase
//     subpackage implements it over the REST endpoints and also ships a
//     TokenValidator for server-side access-token verification.
package auth
