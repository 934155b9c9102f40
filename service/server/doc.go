// Package server hosts the pager's request loop. One message is handled at a
// time; the registry, region sets and page caches are touched only from this
// loop, so they carry no locks.
package server
