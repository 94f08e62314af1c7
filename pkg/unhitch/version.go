// Package unhitch carries build metadata for the unhitch module.
package unhitch

// Version is the release version reported by the CLI.
const Version = "0.1.0"
