package cmn

import "fmt"

// Assert/Assertf mirror aistore's cmn/debug package: cheap invariant checks
// that panic immediately rather than let corrupted RPC/pool state propagate.
// Unlike aistore we don't build-tag these out of release binaries (this repo
// has no "debug" build mode of its own), but the call sites document the
// invariant the same way.

func Assert(cond bool, args ...any) {
	if cond {
		return
	}
	panic(fmt.Sprint(append([]any{"assertion failed"}, args...)...))
}

func Assertf(cond bool, format string, args ...any) {
	if cond {
		return
	}
	panic(fmt.Sprintf("assertion failed: "+format, args...))
}
