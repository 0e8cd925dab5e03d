// Package credstore reads and writes the Claude Code credential record in
// persistent secret storage.
//
// The record is owned by Claude Code itself; this agent only understands the
// claudeAiOauth field and must round-trip every other field unmodified.
// Two backends are provided:
//   - Keyring: OS-native credential storage (macOS Keychain, Windows
//     Credential Manager, Linux Secret Service)
//   - File: the ~/.claude/.credentials.json file Claude Code writes on
//     platforms without a usable keyring
package credstore
