// Package errs defines the sentinel errors shared across bstream packages.
//
// Errors fall into four classes. All of them are fatal to the operation that
// raised them; none is retried internally:
//
//   - protocol errors: malformed input (out-of-range handle, invalid registry
//     id, corrupt skip target). The stream is not usable afterwards.
//   - capacity errors: a fixed-capacity structure was asked to grow
//     (non-growable memory backend, full register). These indicate a
//     configuration problem, not corrupt data.
//   - timeout errors: a blocking read exceeded its configured deadline.
//     Retrying is the caller's decision.
//   - backend I/O errors: wrapped errors from a Source or Sink; the stream
//     must be closed and is not reusable.
//
// Callers should match with errors.Is; lower layers wrap these sentinels with
// fmt.Errorf("...: %w", ...) to add context.
package errs

import "errors"

var (
	// ErrProtocol is the base class for malformed stream input.
	ErrProtocol = errors.New("protocol error")

	// ErrHandleOutOfBounds indicates a register handle read from the stream
	// that does not (yet) exist in the receiver's mirror.
	ErrHandleOutOfBounds = errors.New("protocol error: register handle out of bounds")

	// ErrInvalidRegistryID indicates a registry id outside [0, MaxPublishedRegisters).
	ErrInvalidRegistryID = errors.New("protocol error: invalid registry id")

	// ErrInvalidSkipTarget indicates a skip offset pointing behind the cursor.
	ErrInvalidSkipTarget = errors.New("protocol error: invalid skip target")

	// ErrBufferExhausted indicates a read past the end of a finite source.
	ErrBufferExhausted = errors.New("protocol error: attempt to read outside of buffer")

	// ErrCapacity is the base class for fixed-capacity overflows.
	ErrCapacity = errors.New("capacity exceeded")

	// ErrRegisterFull indicates that adding an entry would exceed a register's
	// fixed chunkCount x chunkSize capacity.
	ErrRegisterFull = errors.New("capacity exceeded: register is full")

	// ErrFixedCapacity indicates a write beyond a non-growable memory backend.
	ErrFixedCapacity = errors.New("capacity exceeded: buffer is not growable")

	// ErrReadTimeout indicates that a blocking read found no data within the
	// configured timeout.
	ErrReadTimeout = errors.New("read timeout")

	// ErrStreamClosed indicates use of a stream after Close.
	ErrStreamClosed = errors.New("stream is closed")

	// ErrPlaceholderPending indicates a second skip-offset placeholder was
	// requested while one is still outstanding, or the pending placeholder
	// was invalidated by a buffer change in the sink.
	ErrPlaceholderPending = errors.New("skip offset placeholder pending")

	// ErrNoDirectory indicates a register operation on a stream that was
	// built without a published-register directory.
	ErrNoDirectory = errors.New("no published-register directory configured")
)
