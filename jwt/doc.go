// Package jwt signs and verifies the opaque session credential handed to
// clients after login. A credential binds a user id to one raw session token;
// the token is what the user's SessionEntry lists.
package jwt
