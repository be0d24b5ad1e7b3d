package engine

import "github.com/pkg/errors"

// Error kinds surfaced at the reply layer (spec.md §7). None are retried
// internally; each is wrapped with github.com/pkg/errors at its point of
// failure so a host logging layer can recover a stack frame without the
// SQL front-end ever inspecting more than the sentinel via errors.Is.
var (
	// ErrSyntax: argv shape wrong.
	ErrSyntax = errors.New("engine: syntax error")
	// ErrCatalogMiss: table or column unknown.
	ErrCatalogMiss = errors.New("engine: unknown table or column")
	// ErrDomain: value outside column type range (e.g. UInt >= 2^32).
	ErrDomain = errors.New("engine: value out of domain for column type")
	// ErrConflict: PK collision on INSERT, PK-overwrite on UPDATE, REPLACE+UPDATE.
	ErrConflict = errors.New("engine: conflicting write")
	// ErrConstraintViolation: ordering invariant.
	ErrConstraintViolation = errors.New("engine: ordering constraint violation")
	// ErrPlan: range operation requested but no index exists to satisfy it.
	ErrPlan = errors.New("engine: no index satisfies this predicate")
	// ErrInternal: failed allocation building a row or encoded key.
	ErrInternal = errors.New("engine: internal error")
)
