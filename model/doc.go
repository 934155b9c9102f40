// Package model holds the data shared by the pager services: virtual memory
// primitives (vm), task control blocks (task), boot images (boot) and the
// IPC wire format (ipc).
package model
