// Package aggregates defines domain-facing aggregate contracts.
//
// Contracts here carry no persistence or transport detail. Each one names a write
// boundary whose invariants must hold atomically, plus the error codes its callers
// can branch on.
package aggregates
