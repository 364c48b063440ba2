// Package ethereal holds the execution-local bookkeeping that a replay
// rebuilds from scratch at every segment boundary: standard-stream markers,
// stdio buffers, the thread roster and the segment view of open descriptors.
//
// None of the types here are safe for concurrent use. Each replay session
// owns its own instances.
package ethereal
