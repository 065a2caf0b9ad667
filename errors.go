package pfpbuilder

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientCombinationSpace is fatal: the catalog cannot produce
	// the requested number of distinct assignments.
	ErrInsufficientCombinationSpace = errors.New("insufficient combination space")
	// ErrLayerLoadFailure is per token: the layer is left out.
	ErrLayerLoadFailure = errors.New("layer load failure")
	// ErrArchiveWrite is fatal: an archive write or finalize failed.
	ErrArchiveWrite = errors.New("archive write failure")
	// ErrDegenerateSilhouette is a per-token warning for a silhouette
	// without a single black pixel.
	ErrDegenerateSilhouette = errors.New("degenerate silhouette")
	// ErrCancelled reports a clean stop; the partial archive is discarded.
	ErrCancelled = errors.New("cancellation requested")
	ErrInvalidCatalog = errors.New("invalid trait catalog")
	ErrInvalidConfig  = errors.New("invalid config")
	// ErrEncode is per token: the rendered image could not be encoded and
	// the token is skipped.
	ErrEncode = errors.New("image encode failure")
)

// Error carries the kind of a failure together with the token and layer
// it relates to. TokenID is 0 when the failure is collection-level.
type Error struct {
	Kind     error
	TokenID  int
	Category string
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	s := e.Kind.Error()
	if e.TokenID > 0 {
		s = fmt.Sprintf("%s: token %d", s, e.TokenID)
	}
	if e.Category != "" {
		s = fmt.Sprintf("%s: layer %q", s, e.Category)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// TokenOf returns the token id attached to err, or 0.
func TokenOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.TokenID
	}
	return 0
}

func invalidf(format string, args ...any) error {
	return &Error{Kind: ErrInvalidConfig, Msg: fmt.Sprintf(format, args...)}
}

func catalogf(format string, args ...any) error {
	return &Error{Kind: ErrInvalidCatalog, Msg: fmt.Sprintf(format, args...)}
}
