// Package ipc defines the tagged request/reply messages exchanged with the
// pager and the task-data payload written into a peer's buffer page.
package ipc

import (
	"fmt"
	"time"

	"github.com/viant/pager/model/task"
)

// Tag identifies the request carried by a message.
type Tag uint32

const (
	// TagWait is the startup rendezvous: the sender blocks until the pager replies.
	TagWait Tag = iota + 1
	// TagTaskData asks the pager to write the task table into the sender's buffer.
	TagTaskData
	// TagOpen and the following tags belong to the filesystem protocol.
	TagOpen
	TagRead
	TagWrite
	TagLseek
)

func (t Tag) String() string {
	switch t {
	case TagWait:
		return "wait"
	case TagTaskData:
		return "taskdata"
	case TagOpen:
		return "open"
	case TagRead:
		return "read"
	case TagWrite:
		return "write"
	case TagLseek:
		return "lseek"
	}
	return fmt.Sprintf("tag(%d)", uint32(t))
}

// MRUnused is the number of message registers not consumed by the syscall library.
const MRUnused = 6

// BufferSize is the capacity of a task's message buffer in bytes.
const BufferSize = 512

// Message is one inbound request.
type Message struct {
	ID         string
	Tag        Tag
	Sender     task.TaskID
	MR         [MRUnused]uint64
	ReceivedAt time.Time
}

// NewMessage creates a message with the given registers.
func NewMessage(sender task.TaskID, tag Tag, registers ...uint64) *Message {
	msg := &Message{Tag: tag, Sender: sender}
	copy(msg.MR[:], registers)
	return msg
}
