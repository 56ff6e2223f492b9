package render

import "github.com/cockroachdb/errors"

// Failure categories. Every error leaving this package is marked with
// one of these via errors.Mark, so callers can classify with errors.Is
// while the wrapped chain keeps the failing operation's context. None
// of them are retried: the loop drains the device and the process
// exits.
var (
	// ErrSetup covers configuration and construction failures detected
	// before the frame loop starts.
	ErrSetup = errors.New("graphics setup failed")

	// ErrShaderLoad reports a missing, empty, or truncated compiled
	// shader artifact.
	ErrShaderLoad = errors.New("shader artifact missing or unreadable")

	// ErrAcquire reports that the presentation engine could not hand
	// out the next image, typically because the surface was
	// invalidated.
	ErrAcquire = errors.New("presentable image acquire failed")

	// ErrPresent reports that a rendered image could not be queued for
	// display.
	ErrPresent = errors.New("presentation failed")

	// ErrRecord reports a command-recording failure.
	ErrRecord = errors.New("command recording failed")

	// ErrSubmit reports a queue-submission failure.
	ErrSubmit = errors.New("queue submission failed")

	// ErrDeviceLost reports a frame fence that stayed unsignaled past
	// the wait bound, which means the device has hung or been lost.
	ErrDeviceLost = errors.New("device did not signal a frame fence in time")
)
