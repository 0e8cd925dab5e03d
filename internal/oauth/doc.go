// Package oauth refreshes the Anthropic Claude OAuth token pair.
//
// Only refresh of an already-issued pair is implemented; initial token
// acquisition (login) is Claude Code's job. A successful refresh is merged
// into the stored credential record so that fields the token endpoint does
// not return (scopes, subscription tier, rate-limit tier) are carried
// forward rather than lost.
package oauth
