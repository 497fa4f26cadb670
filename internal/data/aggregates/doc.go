// Package aggregates implements the domain aggregate contracts on top of GORM.
//
// Aggregates compose the table repos in internal/data/repos and own the transaction
// boundary for every write that must keep an invariant, most importantly the
// one-fact-per-student-per-day rule of the attendance ledger.
package aggregates
