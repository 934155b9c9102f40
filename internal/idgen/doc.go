// Package idgen produces opaque message identifiers. Tests replace NewFunc
// for deterministic ids.
package idgen
