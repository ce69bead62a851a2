// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (domain.go, account.go, monitor.go) hold shared types
// and cross-cutting interfaces. No implementation code - just contracts.
// Keeping interfaces on the consumer side prevents circular imports.
package domain
