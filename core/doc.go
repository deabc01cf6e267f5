// Package core defines the shared data model of PersonaMesh: conversation
// turns and histories, persona records and their template variables, the
// per-persona and per-batch status state machines, and the admission gate
// used to bound concurrent session execution.
//
// Types in this package are transport and storage agnostic. Conversations
// are owned exclusively by the engine instance producing them until they are
// returned to the caller; the status types are the only shared mutable
// structures and guard every write with a mutex.
package core
