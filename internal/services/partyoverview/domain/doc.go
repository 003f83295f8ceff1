// Package domain computes the render-ready party overview state.
//
// The package is pure: it has no storage, transport, or rendering
// dependencies. Host collaborators (roster, settings, viewer, ruleset) reach
// it as plain values and the SystemAdapter capability.
package domain
