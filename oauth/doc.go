// Package oauth exchanges an authorization code issued by the external
// identity provider for a normalized [Profile].
//
// The flow is two sequential calls: a form-encoded code-for-token POST to
// the token endpoint (client id and secret travel in the body), then a
// bearer GET of the profile endpoint. Defaults target LinuxDo Connect.
//
// No retry is attempted. Provider error bodies are attached to the returned
// error as samber/oops context for diagnostics; the client secret and the
// access token never are.
package oauth
