//go:build !knotdebug

package infer

const debug = false
