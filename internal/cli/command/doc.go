// Package command defines the rewind command-line interface.
//
// Commands are built with urfave/cli/v2. The root Before hook loads the
// layered configuration and the logger once; every action reads them back
// through envFrom.
//
//   - replay: restore a process by replaying a journal
//   - inspect: list journal entries
//   - verify: replay a journal several times and compare the results
//   - store: move journals in and out of the badger store
//   - checkpoint: list, show and prune checkpoints
//   - config, version: diagnostics
package command
