// Package config defines the format-agnostic configuration model for the
// application, along with the Loader interface for reading it from various
// sources and the Resolve step that merges file values, command-line
// overrides, and defaults into one immutable session snapshot.
//
// The `config.Config` is the single source of truth for the `watch`,
// `orchestrator`, and `app` packages. Concrete implementations of the
// Loader interface, such as for HCL, are provided in separate packages.
package config
