package asmerr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pattyshack/gt/parseutil"
)

// Kind classifies a fatal assembly error.  A Kind is itself an error so that
// callers can test for it with errors.Is.
type Kind string

const (
	DuplicateDefinition    = Kind("duplicate definition")
	UndefinedSymbol        = Kind("undefined symbol")
	OptimizationDivergence = Kind("optimization divergence")
	ValueOverflow          = Kind("value overflow")
	UnsupportedRelocation  = Kind("unsupported relocation")

	// Invalid operator/operand combinations and other malformed constructs.
	Semantic = Kind("semantic error")

	// Failures reported by architecture / object format modules that don't
	// fall into any of the above.
	Module = Kind("module error")
)

func (kind Kind) Error() string {
	return string(kind)
}

type Error struct {
	Kind Kind

	Loc parseutil.Location // zero if unknown

	// Additional locations relevant to the error, e.g., the previous
	// definition site of a duplicated symbol.
	Related []parseutil.Location

	Message string

	Err error // optional cause
}

func New(
	kind Kind,
	loc parseutil.Location,
	format string,
	args ...interface{},
) *Error {
	return &Error{
		Kind:    kind,
		Loc:     loc,
		Message: fmt.Sprintf(format, args...),
	}
}

func (err *Error) Error() string {
	builder := strings.Builder{}
	if err.Loc != (parseutil.Location{}) {
		builder.WriteString(fmt.Sprintf("%v: ", err.Loc))
	}

	builder.WriteString(string(err.Kind))
	if err.Message != "" {
		builder.WriteString(": ")
		builder.WriteString(err.Message)
	}

	for _, loc := range err.Related {
		builder.WriteString(fmt.Sprintf(" (see %v)", loc))
	}

	if err.Err != nil {
		builder.WriteString(": ")
		builder.WriteString(err.Err.Error())
	}

	return builder.String()
}

func (err *Error) Unwrap() error {
	return err.Err
}

func (err *Error) Is(target error) bool {
	kind, ok := target.(Kind)
	return ok && kind == err.Kind
}

// Wrap attaches context (typically a section / bytecode description) to an
// error returned by a module callback.  Errors that are not already
// classified are classified as Module errors.
func Wrap(err error, context string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	ctx := fmt.Sprintf(context, args...)

	var asmErr *Error
	if errors.As(err, &asmErr) {
		return fmt.Errorf("%s: %w", ctx, err)
	}

	return &Error{
		Kind:    Module,
		Message: ctx,
		Err:     err,
	}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) (Kind, bool) {
	var asmErr *Error
	if errors.As(err, &asmErr) {
		return asmErr.Kind, true
	}

	var kind Kind
	if errors.As(err, &kind) {
		return kind, true
	}

	return "", false
}

// First returns the first collected error, or nil.
func First(emitter *parseutil.Emitter) error {
	errs := emitter.Errors()
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}

// Join combines all collected errors into a single error, or nil.
func Join(emitter *parseutil.Emitter) error {
	return errors.Join(emitter.Errors()...)
}
