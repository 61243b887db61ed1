// Package incidents holds the persisted incident model and its engagement rules.
//
// Row types double as domain values: an Incident loaded from storage is mutated only
// through Confirm and Deny, and callers persist the result under a version check.
package incidents
