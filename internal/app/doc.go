// Package app provides the application service layer.
//
// Orchestrates the coordinated operations: account refresh, batch refresh and
// delete over the selection, account switching, and machine-ID reset. Every
// operation composes the flight/cooldown/timeout primitives around the agent
// client and reports back to the user through the modal coordinator. Sits
// between HTTP handlers and the agent adapter; depends on domain interfaces,
// not concrete implementations.
package app
