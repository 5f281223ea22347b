package cmn

import "go.uber.org/atomic"

// Type aliases over go.uber.org/atomic, mirroring aistore's cmn/atomic
// (itself a thin re-export of its vendored 3rdparty/atomic, the same
// upstream package) so call sites read "cmn.Int32" the way aistore's read
// "atomic.Int32" without every package importing go.uber.org/atomic
// directly.
type (
	Int32  = atomic.Int32
	Int64  = atomic.Int64
	Uint64 = atomic.Uint64
	Bool   = atomic.Bool
)

func NewInt32(v int32) *Int32   { return atomic.NewInt32(v) }
func NewInt64(v int64) *Int64   { return atomic.NewInt64(v) }
func NewUint64(v uint64) *Uint64 { return atomic.NewUint64(v) }
func NewBool(v bool) *Bool      { return atomic.NewBool(v) }
