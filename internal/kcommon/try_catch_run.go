package kcommon

import (
	"context"

	"github.com/sugartom/nexus/internal/kerror"
	"github.com/sugartom/nexus/internal/klogging"
)

// TryCatchRun converts a panic raised by fn back into a *Kerror. A non-error
// panic is a programming error and crashes the process.
func TryCatchRun(ctx context.Context, fn func()) (ret *kerror.Kerror) {
	defer func() {
		r := recover()
		if r != nil {
			if ke, ok := r.(*kerror.Kerror); ok {
				ret = ke
			} else if err, ok := r.(error); ok {
				ret = kerror.Wrap(err, "UnknownError", "", true)
			} else {
				klogging.Fatal(ctx).WithPanic(r).Log("NonErrorPanic", "")
			}
		}
	}()
	fn()
	return
}
