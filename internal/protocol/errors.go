package protocol

import "errors"

// Kind classifies a domain error for envelope-code mapping at the dispatch
// boundary, replacing exception-as-control-flow with a small typed hierarchy.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnknownType
	KindAuth
	KindNotFound
	KindConflict
	KindTimeout
)

// Error is the typed error every handler and subsystem returns for
// domain-level failures. Wrap lower-level errors with fmt.Errorf's %w so
// errors.As still finds the *Error at the dispatch boundary.
type Error struct {
	Kind Kind
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.Msg + ": " + e.err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.err }

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, err: cause}
}

func NewValidation(msg string) *Error             { return newErr(KindValidation, msg, nil) }
func NewValidationf(msg string, err error) *Error { return newErr(KindValidation, msg, err) }
func NewUnknownType(msg string) *Error            { return newErr(KindUnknownType, msg, nil) }
func NewAuth(msg string) *Error                   { return newErr(KindAuth, msg, nil) }
func NewNotFound(msg string) *Error               { return newErr(KindNotFound, msg, nil) }
func NewConflict(msg string) *Error               { return newErr(KindConflict, msg, nil) }
func NewTimeout(msg string) *Error                { return newErr(KindTimeout, msg, nil) }
func NewInternal(msg string, err error) *Error     { return newErr(KindInternal, msg, err) }

// CodeFor maps any error to an envelope code and a user-facing message,
// redacting internal error detail. Unrecognized errors map to CodeInternal.
func CodeFor(err error) (code int, message string) {
	var de *Error
	if errors.As(err, &de) {
		switch de.Kind {
		case KindValidation:
			return CodeAuth, de.Msg // validation shares code 101 with auth per the wire taxonomy
		case KindUnknownType:
			return CodeUnknownType, de.Msg
		case KindAuth:
			return CodeAuth, de.Msg
		case KindNotFound:
			return CodeNotFound, de.Msg
		case KindConflict:
			return CodeConflict, de.Msg
		case KindTimeout:
			return CodeTimeout, de.Msg
		default:
			return CodeInternal, "internal error"
		}
	}
	return CodeInternal, "internal error"
}
