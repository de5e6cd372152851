// Package errs defines the error taxonomy shared across forge's
// orchestration pipeline. Every error that crosses a package boundary is one
// of these concrete kinds; ones that carry an underlying cause format it
// with golang.org/x/xerrors's %w verb (grounded on distr1-distri's
// cmd/autobuilder, e.g. xerrors.Errorf("%v: %w", args, err)) so the cause
// survives both the rendered message and, via the matching Unwrap method,
// errors.As/errors.Is chains to the top-level reporter.
package errs

import (
	"fmt"

	"golang.org/x/xerrors"
)

// ConfigError reports a malformed or invalid project/module descriptor.
// Fatal: aborts before any compile.
type ConfigError struct {
	Path   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %s", e.Reason)
	}
	return fmt.Sprintf("config: %s: %s", e.Path, e.Reason)
}

// GraphError reports a missing dependency or a cycle in the module DAG.
// Fatal: reports the full chain.
type GraphError struct {
	Reason string
	Chain  []string // e.g. ["A", "B", "C", "A"] for a cycle
}

func (e *GraphError) Error() string {
	if len(e.Chain) == 0 {
		return fmt.Sprintf("dependency graph: %s", e.Reason)
	}
	return fmt.Sprintf("dependency graph: %s: %s", e.Reason, joinArrow(e.Chain))
}

func joinArrow(chain []string) string {
	s := ""
	for i, c := range chain {
		if i > 0 {
			s += " → "
		}
		s += c
	}
	return s
}

// ToolchainError reports that no working backend was found for a language.
// Fatal per affected module; other modules may still succeed.
type ToolchainError struct {
	Module     string
	Language   string
	Candidates []string
}

func (e *ToolchainError) Error() string {
	return fmt.Sprintf("module %s: no toolchain found for language %q (tried %v)", e.Module, e.Language, e.Candidates)
}

// CompileError reports that an external compile tool failed.
// Fatal for that module; triggers orchestrator abort with partial cache save.
type CompileError struct {
	Module  string
	Command []string
	Stderr  string
	Err     error
}

func (e *CompileError) Error() string {
	return xerrors.Errorf("module %s: command %v failed: %w", e.Module, e.Command, e.Err).Error()
}

func (e *CompileError) Unwrap() error { return e.Err }

// ExtractionError reports a failure to extract an interface description.
// Non-fatal: logged with a warning, linking proceeds without that module's
// interface.
type ExtractionError struct {
	Module string
	Err    error
}

func (e *ExtractionError) Error() string {
	return xerrors.Errorf("module %s: interface extraction failed: %w", e.Module, e.Err).Error()
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// GlueError reports a failure to generate glue code for a producer/consumer
// edge. Non-fatal: logged with a warning, linking proceeds without that
// edge's glue.
type GlueError struct {
	Producer, Consumer string
	Err                error
}

func (e *GlueError) Error() string {
	return xerrors.Errorf("glue %s -> %s: %w", e.Producer, e.Consumer, e.Err).Error()
}

func (e *GlueError) Unwrap() error { return e.Err }

// LinkError reports that the linker failed or no linker was available.
// Fatal to the final artifact; preceding cache state is preserved.
type LinkError struct {
	Reason string
	Err    error
}

func (e *LinkError) Error() string {
	if e.Err != nil {
		return xerrors.Errorf("link: %s: %w", e.Reason, e.Err).Error()
	}
	return fmt.Sprintf("link: %s", e.Reason)
}

func (e *LinkError) Unwrap() error { return e.Err }

// IoError bubbles up a filesystem error together with the path involved.
type IoError struct {
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return xerrors.Errorf("io: %s: %w", e.Path, e.Err).Error()
}

func (e *IoError) Unwrap() error { return e.Err }

// CancelledError reports a user-requested abort.
type CancelledError struct {
	Reason string
}

func (e *CancelledError) Error() string {
	if e.Reason == "" {
		return "cancelled"
	}
	return fmt.Sprintf("cancelled: %s", e.Reason)
}
