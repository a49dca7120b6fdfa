package mem

import "fmt"

// FaultCode identifies the kind of access failure.
type FaultCode int

// Stable fault codes - do not change values.
const (
	FaultNilAccess     FaultCode = 2001 // RT2001: access through the nil cell
	FaultTypeMismatch  FaultCode = 2002 // RT2002: stored element type differs from requested
	FaultArityMismatch FaultCode = 2003 // RT2003: single-element request against length != 1
	FaultOutOfBounds   FaultCode = 2004 // RT2004: index or bound past the end of the slice
	FaultBadRange      FaultCode = 2005 // RT2005: range start greater than range end
	FaultReadOnly      FaultCode = 2006 // RT2006: write access to a slice without the write capability
	FaultWriteOnly     FaultCode = 2007 // RT2007: read access to a slice without the read capability
	FaultConflict      FaultCode = 2008 // RT2008: grant refused due to an outstanding incompatible grant
	FaultNoDup         FaultCode = 2009 // RT2009: duplication required but no operator registered
	FaultBadText       FaultCode = 2010 // RT2010: text decoding failed on non-text data
	FaultMapper        FaultCode = 2011 // RT2011: caller-supplied projection function reported an error
)

// String returns the code as "RT2001" format.
func (c FaultCode) String() string {
	return fmt.Sprintf("RT%d", c)
}

// Fault is a typed access failure. Every public operation of the value core
// reports failure through a *Fault; the zero fields are omitted from the
// rendered message.
type Fault struct {
	Code    FaultCode
	Message string

	// Origin is the provenance tag of the slice the access targeted.
	Origin string
	// Stored is the name of the stored element type, when known.
	Stored string
	// Expected is the name of the type the caller asked for, when relevant.
	Expected string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	msg := fmt.Sprintf("fault %s: %s", f.Code, f.Message)
	if f.Origin != "" {
		msg += fmt.Sprintf(" (origin %s)", f.Origin)
	}
	return msg
}

// ViolationCode identifies an internal-consistency violation.
type ViolationCode int

// Violations are bugs in the value core or its callers' unsafe contracts,
// never ordinary user errors. Stable codes - do not change values.
const (
	ViolationDoubleRelease ViolationCode = 9001 // RT9001: grant released twice
	ViolationUseAfterFree  ViolationCode = 9002 // RT9002: slice accessed after its storage was taken
	ViolationLiveGrants    ViolationCode = 9003 // RT9003: slice dropped with grants outstanding
	ViolationTextCorrupt   ViolationCode = 9004 // RT9004: text-flagged slice holds invalid UTF-8
)

// String returns the code as "RT9001" format.
func (c ViolationCode) String() string {
	return fmt.Sprintf("RT%d", c)
}

// Violation represents an internal-consistency violation. It is raised via
// panic: the state it reports cannot be produced by well-behaved callers.
type Violation struct {
	Code    ViolationCode
	Message string
}

// Error implements the error interface.
func (v *Violation) Error() string {
	return fmt.Sprintf("violation %s: %s", v.Code, v.Message)
}

func violate(code ViolationCode, format string, args ...any) {
	panic(&Violation{Code: code, Message: fmt.Sprintf(format, args...)})
}
