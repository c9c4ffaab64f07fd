// Package sequence provides linearizable integer allocation for external
// client identifiers.
//
// The allocator is the one shared mutable resource in the provisioning core:
// two concurrent callers must never observe the same value, because the value
// becomes part of a client id registered with the IAM gateway. All backends
// rely on a single atomic increment primitive (Postgres nextval, Redis INCR,
// sync/atomic) rather than read-modify-write.
package sequence
