// Package confloader loads layered configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables (REWIND_<SECTION>_<KEY>)
//  3. YAML configuration file
//  4. Defaults already present in the target struct
//
// Watcher reports edits to the configuration file so long-running commands
// can apply settings that are safe to change live, such as the log level.
package confloader
