package simerr

import (
	"errors"
	"fmt"
)

// Class groups failures by how the clock must react to them.
type Class int

const (
	ClassUnknown Class = iota
	ClassValidation
	ClassInsufficientBalance
	ClassInsufficientLiquidity
	ClassOverflow
	ClassPriceOutOfBounds
	ClassInvariantViolation
	ClassSource
	ClassCanceled
)

var classNames = map[Class]string{
	ClassUnknown:               "unknown",
	ClassValidation:            "validation",
	ClassInsufficientBalance:   "insufficient_balance",
	ClassInsufficientLiquidity: "insufficient_liquidity",
	ClassOverflow:              "overflow",
	ClassPriceOutOfBounds:      "price_out_of_bounds",
	ClassInvariantViolation:    "invariant_violation",
	ClassSource:                "source",
	ClassCanceled:              "canceled",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Fatal reports whether a failure of this class must abort the run.
// Unknown errors are treated as fatal: they did not come through the
// typed paths and the state they leave behind cannot be trusted.
func (c Class) Fatal() bool {
	switch c {
	case ClassValidation, ClassInsufficientBalance, ClassInsufficientLiquidity:
		return false
	default:
		return true
	}
}

// Sentinel conditions. They are always wrapped in an *Error carrying the class.
var (
	ErrInvalidRange          = errors.New("invalid tick range")
	ErrZeroLiquidity         = errors.New("zero liquidity")
	ErrPositionNotFound      = errors.New("position not found")
	ErrUnknownPool           = errors.New("unknown pool")
	ErrUnknownToken          = errors.New("unknown token")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrOverflow              = errors.New("arithmetic overflow")
	ErrPriceOutOfBounds      = errors.New("price out of bounds")
	ErrInvariant             = errors.New("invariant violation")
)

// Error is a classified simulation failure.
type Error struct {
	Class Class
	Op    string
	Err   error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a class and operation name.
func New(class Class, op string, err error) error {
	return &Error{Class: class, Op: op, Err: err}
}

// Newf builds a classified error from a format string. Use %w to keep a sentinel.
func Newf(class Class, op string, format string, args ...interface{}) error {
	return &Error{Class: class, Op: op, Err: fmt.Errorf(format, args...)}
}

func Validation(op string, format string, args ...interface{}) error {
	return Newf(ClassValidation, op, format, args...)
}

func Overflow(op string) error {
	return &Error{Class: ClassOverflow, Op: op, Err: ErrOverflow}
}

func Invariant(op string, format string, args ...interface{}) error {
	return Newf(ClassInvariantViolation, op, "%w: "+format, append([]interface{}{ErrInvariant}, args...)...)
}

// ClassOf returns the class of the outermost classified error in the chain.
func ClassOf(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ClassUnknown
}

// IsFatal reports whether err must abort the simulation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return ClassOf(err).Fatal()
}
