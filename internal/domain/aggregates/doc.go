// Package aggregates defines the write-boundary contracts of the incident domain.
//
// Contracts carry no persistence or transport detail. Implementations live in
// internal/data/aggregates and report failures as *Error values.
package aggregates
