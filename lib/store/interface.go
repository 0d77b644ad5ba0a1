package store

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/tensor"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new table used by the store.
// This is used to abstract the creation of the table from the store implementation.
type DBFactory func() db.Table

// Updater merges an incoming value into the stored value.
// It must modify stored in place and must not retain either argument.
// Returning an error aborts the merge, the error is reported to the pusher.
type Updater func(incoming, stored tensor.Value) error

// IStore is the interface of the aggregation engine for a single table of tensors.
// All methods return a *Error (nil on success).
type IStore interface {
	// Init creates the entry for key with a copy of value.
	// Fails with RetCDuplicateKey if the key was initialized before.
	Init(key db.Key, value tensor.Value) (err error)
	// Push merges value into the entry of key using the registered updater
	// (element-wise sum if none is set). The merge is complete when Push returns.
	// Fails with RetCUnknownKey or RetCShapeMismatch.
	Push(key db.Key, value tensor.Value) (err error)
	// Pull copies the current value of key into out and returns the generation of the copied snapshot.
	// Fails with RetCUnknownKey or RetCShapeMismatch.
	Pull(key db.Key, out tensor.Value) (generation uint64, err error)
	// SetUpdater replaces the store wide updater. nil restores the element-wise sum.
	// Already merged values are not re-aggregated.
	SetUpdater(fn Updater) (err error)
	// GetDBInfo returns metadata about the table underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
	// Close releases the store. Every call after Close fails with RetCStopped.
	Close() (err error)
}

// IValidator is implemented by stores that can check a request without executing it.
// Callers use it to reject a whole batch before any pair of it is applied.
type IValidator interface {
	// Validate checks that key exists and that value matches its shape.
	// If mustExist is false the key must not exist instead (for Init).
	Validate(key db.Key, value tensor.Value, mustExist bool) (err error)
}

// ISnapshotter is implemented by stores that can hand out a copy of a value
// without knowing its shape in advance. The coordinator uses it to answer pulls.
type ISnapshotter interface {
	// Snapshot returns a copy of the value of key and its generation
	Snapshot(key db.Key) (value tensor.Value, generation uint64, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("KVStoreError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is a store error with the same code,
// so errors.Is(err, store.ErrUnknownKey) matches any unknown key error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new KVStoreError with a formatted message.
func Errorf(code RetCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// AsError converts err into a *Error. Errors that are not store errors become RetCInternalError.
// nil stays nil.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(RetCInternalError, err.Error())
}

// CodeOf returns the return code of err (RetCSuccess for nil).
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	return AsError(err).Code
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the store.
	RetCInvalidOperation                    // 3: Invalid operation (e.g. used before the devices were initialized).
	RetCUnknownKey                          // 4: The key was never initialized.
	RetCDuplicateKey                        // 5: The key was already initialized.
	RetCShapeMismatch                       // 6: The value shape differs from the stored shape.
	RetCArityMismatch                       // 7: Keys and values can not be paired.
	RetCAlreadyInitialized                  // 8: The devices were already initialized.
	RetCStopped                             // 9: The store was stopped.
	RetCTransportError                      // 10: The coordinator could not be reached or answered garbage.
	RetCInvalidDevice                       // 11: A value is located on a device that was not registered.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCUnknownKey:
		return "UnknownKey"
	case RetCDuplicateKey:
		return "DuplicateKey"
	case RetCShapeMismatch:
		return "ShapeMismatch"
	case RetCArityMismatch:
		return "ArityMismatch"
	case RetCAlreadyInitialized:
		return "AlreadyInitialized"
	case RetCStopped:
		return "Stopped"
	case RetCTransportError:
		return "TransportError"
	case RetCInvalidDevice:
		return "InvalidDevice"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is, one per return code
var (
	ErrInternal             = NewError(RetCInternalError, "internal error")
	ErrUnsupportedOperation = NewError(RetCUnsupportedOperation, "unsupported operation")
	ErrInvalidOperation     = NewError(RetCInvalidOperation, "invalid operation")
	ErrUnknownKey           = NewError(RetCUnknownKey, "unknown key")
	ErrDuplicateKey         = NewError(RetCDuplicateKey, "duplicate key")
	ErrShapeMismatch        = NewError(RetCShapeMismatch, "shape mismatch")
	ErrArityMismatch        = NewError(RetCArityMismatch, "arity mismatch")
	ErrAlreadyInitialized   = NewError(RetCAlreadyInitialized, "already initialized")
	ErrStopped              = NewError(RetCStopped, "stopped")
	ErrTransport            = NewError(RetCTransportError, "transport error")
	ErrInvalidDevice        = NewError(RetCInvalidDevice, "invalid device")
)
