//go:build tiercachedebug

package assert

// Enabled reports whether assertion failures panic.
const Enabled = true

// Fail panics with err so the offending call site shows up in the trace.
func Fail(err error) { panic(err) }
