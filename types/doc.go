// Package types defines the shared data model of the workflow execution
// engine: workflow definitions, execution records, the per-run execution
// context, and the error taxonomy. It has no dependencies on the engine,
// stores, or the event channel so every other package can import it.
package types
