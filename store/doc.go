// Package store provides conversation persistence backends implementing
// core.ConversationStore.
//
// The in-memory implementation in this package is safe for concurrent
// access and best suited for tests and ephemeral demo setups; durable
// deployments should use a subpackage backend such as store/sqlite. Every
// conversation is cloned on the way in and out so callers and the store
// never share mutable state.
package store
