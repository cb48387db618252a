package x64

// callBlock is implemented in call_amd64.s.
func callBlock(fn, ctx uintptr) uint32
