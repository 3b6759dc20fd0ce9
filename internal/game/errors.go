package game

import "errors"

// Code is a machine-readable failure code. Callers translate codes into
// user-facing text; the engine never returns display strings it expects to
// be shown verbatim.
type Code string

const (
	// Validation: the caller's input is malformed.
	CodeOutOfBounds        Code = "OUT_OF_BOUNDS"
	CodeOverlap            Code = "OVERLAP"
	CodeDuplicateAttack    Code = "DUPLICATE_ATTACK"
	CodeIncompleteFleet    Code = "INCOMPLETE_FLEET"
	CodeUnknownShip        Code = "UNKNOWN_SHIP"
	CodeShipSizeMismatch   Code = "SHIP_SIZE_MISMATCH"
	CodeDuplicateShip      Code = "DUPLICATE_SHIP"
	CodeInvalidOrientation Code = "INVALID_ORIENTATION"
	CodeInvalidFootprint   Code = "INVALID_FOOTPRINT"
	CodeInvalidPlayer      Code = "INVALID_PLAYER"

	// State: the input is well formed but not allowed right now.
	CodeNotYourTurn Code = "NOT_YOUR_TURN"
	CodeIllegalMove Code = "ILLEGAL_MOVE"
	CodeNotWaiting  Code = "NOT_WAITING"
	CodeNotFound    Code = "NOT_FOUND"
)

// Kind groups codes by who is at fault.
type Kind int

const (
	KindInfrastructure Kind = iota
	KindValidation
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	default:
		return "infrastructure"
	}
}

// Kind reports the taxonomy bucket of the code.
func (c Code) Kind() Kind {
	switch c {
	case CodeNotYourTurn, CodeIllegalMove, CodeNotWaiting, CodeNotFound:
		return KindState
	case "":
		return KindInfrastructure
	default:
		return KindValidation
	}
}

// Error is a rejected operation. Two errors are equal under errors.Is when
// their codes match, so the package-level sentinels can be compared against
// errors that carry extra metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

var (
	ErrOutOfBounds        = &Error{Code: CodeOutOfBounds, Message: "position is outside the board"}
	ErrOverlap            = &Error{Code: CodeOverlap, Message: "ships cannot overlap"}
	ErrDuplicateAttack    = &Error{Code: CodeDuplicateAttack, Message: "position already attacked"}
	ErrIncompleteFleet    = &Error{Code: CodeIncompleteFleet, Message: "every ship must be placed"}
	ErrUnknownShip        = &Error{Code: CodeUnknownShip, Message: "unknown ship"}
	ErrShipSizeMismatch   = &Error{Code: CodeShipSizeMismatch, Message: "ship size does not match the fleet configuration"}
	ErrDuplicateShip      = &Error{Code: CodeDuplicateShip, Message: "ship listed more than once"}
	ErrInvalidOrientation = &Error{Code: CodeInvalidOrientation, Message: "orientation must be horizontal or vertical"}
	ErrInvalidFootprint   = &Error{Code: CodeInvalidFootprint, Message: "ship cells must form a straight contiguous line"}
	ErrInvalidPlayer      = &Error{Code: CodeInvalidPlayer, Message: "invalid player"}
	ErrNotYourTurn        = &Error{Code: CodeNotYourTurn, Message: "not your turn"}
	ErrIllegalMove        = &Error{Code: CodeIllegalMove, Message: "game not in playing state"}
	ErrNotWaiting         = &Error{Code: CodeNotWaiting, Message: "game is not waiting for players"}
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "game not found"}
)

// withMeta copies a sentinel and attaches metadata describing the offending input.
func withMeta(base *Error, kv ...string) *Error {
	e := &Error{Code: base.Code, Message: base.Message}
	if len(kv) > 1 {
		e.Metadata = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Metadata[kv[i]] = kv[i+1]
		}
	}
	return e
}

// CodeOf extracts the failure code from err, or "" for non-engine errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// KindOf classifies err. Anything that is not an engine error belongs to
// the infrastructure bucket.
func KindOf(err error) Kind {
	return CodeOf(err).Kind()
}
