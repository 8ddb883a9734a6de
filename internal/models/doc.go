// Package models defines the core domain models for Split the Tab.
//
// # Models
//
//   - Bill: the full receipt state (items, aggregates, people)
//   - BillItem: one line item on the receipt, assignable to several people
//   - Person: someone taking part in the split
//   - Share: one person's computed responsibility, derived from a Bill
//   - Session: one run of the upload/assign/results wizard
//
// # Immutability
//
// A Bill is treated as a value. Every edit (adding a person, toggling an
// assignment, changing the tip) returns a new Bill and leaves the receiver
// untouched, so several readers can hold the same Bill without aliasing
// surprises. Share values are never stored; they are recomputed from the
// Bill whenever they are needed.
package models
