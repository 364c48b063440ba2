// Package output renders command results for the rewind CLI.
//
//   - formatter.go: Formatter interface and format parsing
//   - table.go: aligned tables, built from Tabular values or struct slices
//   - json.go, yaml.go: machine-readable output
//   - progress.go: replay progress on a terminal line
//   - spinner.go: activity indicator for work without a measurable total
package output
