// Package notifications delivers operator alerts via ntfy.
//
// The default implementation publishes to the topic URL configured in
// config.toml and degrades to a no-op when no topic is set. Alerts cover
// terminal job outcomes and daemon lifecycle; end users are told about their
// jobs through the chat, never through this package.
package notifications
