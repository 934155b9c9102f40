package exporter

import "github.com/viant/pager/model/task"

// Decision is the outcome of an authorization check.
type Decision int

const (
	// Deny drops the request without a reply.
	Deny Decision = iota
	// Allow serves the request.
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Policy decides whether requester may read the task table.
type Policy func(requester task.TaskID) Decision

// CoordinatorOnly admits exactly one task.
func CoordinatorOnly(id task.TaskID) Policy {
	return func(requester task.TaskID) Decision {
		if requester == id {
			return Allow
		}
		return Deny
	}
}
