package rti

import "fmt"

// Kind classifies the ways a build can fail. All kinds are raised locally,
// carry a human-readable message, and unwind to the caller -- there is no
// silent recovery anywhere in the pipeline.
type Kind int

const (
	// InvalidConfig marks a disallowed (type, colorspace) combination or
	// other malformed Config.
	InvalidConfig Kind = iota
	// ImageSetFailure marks an I/O or geometry error surfaced by the
	// caller's ImageSet implementation.
	ImageSetFailure
	// SolverFailure marks a linear-algebra failure inside a basis builder
	// or the resampling-map refinement.
	SolverFailure
	// OutOfMemory marks a failed sample allocation.
	OutOfMemory
	// OutputFailure marks a failure to create the output directory or
	// write an output file.
	OutputFailure
	// Cancelled marks a user-requested stop via the progress callback.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case InvalidConfig:
		return "InvalidConfig"
	case ImageSetFailure:
		return "ImageSetFailure"
	case SolverFailure:
		return "SolverFailure"
	case OutOfMemory:
		return "OutOfMemory"
	case OutputFailure:
		return "OutputFailure"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by Build and its collaborators.
type Error struct {
	Kind    Kind
	Message string
	Err     error // optional wrapped cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsCancelled reports whether err is (or wraps) a Cancelled Error.
func IsCancelled(err error) bool {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind == Cancelled
	}
	return false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
