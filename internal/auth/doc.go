// Package auth resolves request credentials into user identities.
//
// Two credential channels are supported. The bearer channel carries a
// signed JWT, issued at login and presented either as an Authorization
// header or as a cookie; TokenCodec creates and verifies these tokens.
// The state channel carries a signed client-side session map in a
// separate cookie, opaque to the client.
//
// The Resolver is the entry point: it decides whether login is
// required at all (ForceLogin, a password or header callback, or an
// enabled OAuth provider), decodes tokens, and reconciles the decoded
// identity against the UserStore. Store reconciliation is retried
// with bounded exponential backoff; if the store stays unreachable the
// ephemeral identity decoded from the token is used instead, so a
// storage outage degrades persistence rather than locking clients out.
package auth
