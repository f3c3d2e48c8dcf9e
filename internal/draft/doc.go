// Package draft models the in-memory document a synthesis run assembles:
// a project script holding named typed tracks of segments, exported as
// JSON. SafeScript layers keyed locking on top so concurrent workers can
// target the same script without duplicating tracks or losing segments.
package draft
