// Package task holds task control blocks and the registry that owns them.
package task
