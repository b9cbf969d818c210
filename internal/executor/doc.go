// Package executor talks to the per-manufacturer device executor
// services that actually switch hardware on and off.
//
// Commands are signed: an ECDSA P-256 signature over
// "{chat_id}:{timestamp}" travels with every request and executors
// reject signatures older than 300 seconds. Deployments without keys
// degrade to a no-op signer and a skip-mode verifier rather than
// failing. Endpoint base URLs come from a hot-reloaded JSON file.
package executor
