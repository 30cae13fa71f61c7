package diag

import (
	"errors"
	"fmt"
	"log/slog"
)

// detailer is implemented by taxonomy errors that carry structured log fields.
type detailer interface {
	attrs() []slog.Attr
}

// ConfigurationError reports an invalid call ordering or an invalid setting,
// for example declaring an attachment on a target that is already initialized.
type ConfigurationError struct {
	Op  string
	Msg string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *ConfigurationError) attrs() []slog.Attr {
	return []slog.Attr{slog.String("op", e.Op)}
}

// NewConfigurationError builds a ConfigurationError with a formatted message.
func NewConfigurationError(op, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// GPUResourceError reports a failed GPU allocation. It is recoverable: the
// caller may retry at a lower resolution or skip the optional pass.
type GPUResourceError struct {
	Resource string
	Width    int
	Height   int
	Err      error
}

func (e *GPUResourceError) Error() string {
	if e.Width > 0 || e.Height > 0 {
		return fmt.Sprintf("allocate %s (%dx%d): %v", e.Resource, e.Width, e.Height, e.Err)
	}
	return fmt.Sprintf("allocate %s: %v", e.Resource, e.Err)
}

func (e *GPUResourceError) Unwrap() error { return e.Err }

func (e *GPUResourceError) attrs() []slog.Attr {
	return []slog.Attr{slog.String("resource", e.Resource), slog.Int("width", e.Width), slog.Int("height", e.Height)}
}

// ShaderCompileError reports a stage that failed to compile. Log holds the
// compiler output.
type ShaderCompileError struct {
	Program string
	Stage   string
	Path    string
	Log     string
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("compile %s stage of %q (%s): %s", e.Stage, e.Program, e.Path, e.Log)
}

func (e *ShaderCompileError) attrs() []slog.Attr {
	return []slog.Attr{slog.String("program", e.Program), slog.String("stage", e.Stage), slog.String("path", e.Path)}
}

// ShaderLinkError reports a program whose compiled stages could not be linked.
type ShaderLinkError struct {
	Program string
	Log     string
}

func (e *ShaderLinkError) Error() string {
	return fmt.Sprintf("link %q: %s", e.Program, e.Log)
}

func (e *ShaderLinkError) attrs() []slog.Attr {
	return []slog.Attr{slog.String("program", e.Program)}
}

// MissingUniformWarning reports a uniform setter called with a name the
// program does not declare. The call is a no-op.
type MissingUniformWarning struct {
	Program string
	Name    string
}

func (e *MissingUniformWarning) Error() string {
	return fmt.Sprintf("program %q has no uniform %q", e.Program, e.Name)
}

func (e *MissingUniformWarning) attrs() []slog.Attr {
	return []slog.Attr{slog.String("program", e.Program), slog.String("name", e.Name)}
}

// MissingUniformBlockWarning reports a buffer bound to a block name the
// program does not declare. The call is a no-op.
type MissingUniformBlockWarning struct {
	Program string
	Name    string
}

func (e *MissingUniformBlockWarning) Error() string {
	return fmt.Sprintf("program %q has no uniform block %q", e.Program, e.Name)
}

func (e *MissingUniformBlockWarning) attrs() []slog.Attr {
	return []slog.Attr{slog.String("program", e.Program), slog.String("name", e.Name)}
}

// PixelReadbackError reports a failed texel readback. Callers receive a zero
// value alongside it.
type PixelReadbackError struct {
	Target string
	X, Y   int
	Err    error
}

func (e *PixelReadbackError) Error() string {
	return fmt.Sprintf("read pixel (%d,%d) of %s: %v", e.X, e.Y, e.Target, e.Err)
}

func (e *PixelReadbackError) Unwrap() error { return e.Err }

func (e *PixelReadbackError) attrs() []slog.Attr {
	return []slog.Attr{slog.String("target", e.Target), slog.Int("x", e.X), slog.Int("y", e.Y)}
}

// IsWarning reports whether err is one of the non-fatal warning kinds.
func IsWarning(err error) bool {
	var u *MissingUniformWarning
	var b *MissingUniformBlockWarning
	return errors.As(err, &u) || errors.As(err, &b)
}

// Kind returns the taxonomy name of err, or "Error" for foreign errors.
func Kind(err error) string {
	var (
		cfg  *ConfigurationError
		res  *GPUResourceError
		comp *ShaderCompileError
		link *ShaderLinkError
		uni  *MissingUniformWarning
		blk  *MissingUniformBlockWarning
		px   *PixelReadbackError
	)
	switch {
	case errors.As(err, &comp):
		return "ShaderCompileError"
	case errors.As(err, &link):
		return "ShaderLinkError"
	case errors.As(err, &uni):
		return "MissingUniformWarning"
	case errors.As(err, &blk):
		return "MissingUniformBlockWarning"
	case errors.As(err, &px):
		return "PixelReadbackError"
	case errors.As(err, &res):
		return "GPUResourceError"
	case errors.As(err, &cfg):
		return "ConfigurationError"
	default:
		return "Error"
	}
}
