/*
Package workflow defines the workflow callback table and how workflows
are registered with the engine.

# Workflows

A workflow is business logic bound to one device interaction session.
The engine starts a session when the Relay server sends a start event
over a connection and stops it on the stop event or when the connection
goes away. Each session gets its own callback table built by the
workflow's [Builder], so per-session state can simply be captured by the
closures registered on it.

Callbacks are registered per event type with the typed OnX methods of
[Workflow]. Events with no registered callback are dropped. Callbacks of
one session never run concurrently and see events in arrival order; a
callback may block on a command reply (e.g. a device info query) through
the [relay.Relay] it is handed.

Workflows are identified by names. The name is the path a Relay server
connects to, e.g. a workflow named "hello" is served at "/hello".

A callback that returns an error, or panics, is logged by the engine.
It does not stop the session.
*/
package workflow
