// Package aggregates implements the domain aggregate contracts on top of the table repos.
//
// Every write runs inside a transaction owned by the aggregate. Engagement writes are
// version-checked and replayed in a fresh transaction when another writer got there first.
package aggregates
