//go:build knotdebug

package infer

// debug makes violated invariants panic.
const debug = true
