package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/viant/pager/model/task"
	"github.com/viant/pager/model/vm"
)

const (
	wordSize = 8
	// HeaderSize is the size of the task count preceding the records.
	HeaderSize = wordSize
	// RecordSize is the size of one {task id, buffer address} record.
	RecordSize = 2 * wordSize
)

// ErrShortBuffer is returned when a payload cannot be decoded from a buffer.
var ErrShortBuffer = errors.New("ipc: short task data buffer")

// TaskData is one exported record.
type TaskData struct {
	TaskID        task.TaskID
	BufferAddress vm.Address
}

// TaskDataSize returns the payload size for n records.
func TaskDataSize(n int) int {
	return HeaderSize + n*RecordSize
}

// MaxTaskData returns how many records fit in capacity bytes.
func MaxTaskData(capacity int) int {
	if capacity < HeaderSize {
		return 0
	}
	return (capacity - HeaderSize) / RecordSize
}

// EncodeTaskData lays out the header and records.
func EncodeTaskData(records []TaskData) []byte {
	buf := make([]byte, TaskDataSize(len(records)))
	binary.LittleEndian.PutUint64(buf, uint64(len(records)))
	offset := HeaderSize
	for _, record := range records {
		binary.LittleEndian.PutUint64(buf[offset:], uint64(int64(record.TaskID)))
		binary.LittleEndian.PutUint64(buf[offset+wordSize:], uint64(record.BufferAddress))
		offset += RecordSize
	}
	return buf
}

// DecodeTaskData reads a payload written by EncodeTaskData.
func DecodeTaskData(buf []byte) ([]TaskData, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortBuffer, len(buf))
	}
	total := binary.LittleEndian.Uint64(buf)
	if total > uint64(MaxTaskData(len(buf))) {
		return nil, fmt.Errorf("%w: %d records in %d bytes", ErrShortBuffer, total, len(buf))
	}
	records := make([]TaskData, total)
	offset := HeaderSize
	for i := range records {
		records[i].TaskID = task.TaskID(int64(binary.LittleEndian.Uint64(buf[offset:])))
		records[i].BufferAddress = vm.Address(binary.LittleEndian.Uint64(buf[offset+wordSize:]))
		offset += RecordSize
	}
	return records, nil
}
