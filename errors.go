package bytesio

import "github.com/pkg/errors"

// Sentinel errors identifying the three kinds in the error taxonomy. Test
// for a kind with errors.Is; pkg/errors-wrapped instances preserve the
// chain down to one of these.
var (
	// ErrEOF is returned/wrapped when a read, discard, preview entry, or a
	// bounded WritePacket runs out of source bytes before satisfying the
	// request. Prefetch and ReadAvailable report this via a bool/count
	// instead of an error.
	ErrEOF = errors.New("bytesio: end of input")

	// ErrArgument marks a negative size, negative index, or a range that
	// exceeds the target array.
	ErrArgument = errors.New("bytesio: invalid argument")

	// ErrState marks a lifecycle violation: closing an Input or Output a
	// second time, or using a Packet that was already consumed. Reads and
	// writes on a closed Input or Output are not checked and do not return
	// it, and Pool.Recycle of a chunk with outstanding references drops one
	// reference rather than failing.
	ErrState = errors.New("bytesio: invalid state")
)

func errEOF() error {
	return errors.WithStack(ErrEOF)
}

func errArgumentf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrArgument, format, args...)
}

func errStatef(format string, args ...interface{}) error {
	return errors.Wrapf(ErrState, format, args...)
}
