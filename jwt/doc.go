// Package jwt issues and verifies the bearer tokens that carry a user id, a
// role hint and a revocation version. Expiry is strict: a token whose exp is
// T is rejected at T and after, unless a leeway is configured.
package jwt
