// Package types defines the tracking context, entry, and navigation
// interfaces consumed by the detach core, the tracking state values, the
// configuration struct, and the standard error values for unhitch.
package types
