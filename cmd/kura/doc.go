// Package main hosts the kura CLI entrypoint and command graph.
//
// The Cobra-based command tree parses catalog exports, runs download
// sessions against the job scheduler, and exposes the tracking table,
// library folders, image metadata and user settings for inspection and
// maintenance. Configuration resolution, logger setup and store access are
// centralized in commandContext so subcommands stay declarative.
//
// Keep this package lean: new behavior belongs in the internal packages
// first and is surfaced here through dedicated commands or flags.
package main
