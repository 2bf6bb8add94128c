package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the descriptor limit below which watch mode on a
// large tree may run out of handles.
const MinFileDescriptors = 1024

// CheckFileDescriptors checks RLIMIT_NOFILE. It only fails when the
// Checker was built WithWatch; otherwise a low limit warns.
func (c *Checker) CheckFileDescriptors() Result {
	r := Result{Name: "file_descriptors", Required: c.watch}

	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		r.Status = StatusWarn
		r.Message = fmt.Sprintf("cannot read limit: %v", err)
		return r
	}

	r.Message = fmt.Sprintf("%d (minimum: %d)", limit.Cur, MinFileDescriptors)
	if limit.Cur < MinFileDescriptors {
		r.Status = StatusWarn
		if c.watch {
			r.Status = StatusFail
		}
		r.Details = "run 'ulimit -n 10240' before using --watch"
		return r
	}
	r.Status = StatusPass
	return r
}
