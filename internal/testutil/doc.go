// Package testutil provides shared fixtures for AgentCrew's test suites: a
// recording conversation store and small builders for conversations with
// realistic turn sequences. Internal only; not part of the public API.
package testutil
