package library

import (
	"errors"
	"fmt"
)

// Error kinds. Callers test with errors.Is. Failures the library
// classifies itself wrap one of these; errors from plain database reads
// (listings, hydration) are returned as the driver reports them.
var (
	// ErrSchemaViolation: a write violated a schema invariant. The
	// enclosing transaction is rolled back; a scan continues with the
	// next file.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrIo: a file read, thumbnail write or directory listing failed.
	ErrIo = errors.New("io")

	// ErrTagParse: a reader returned false or produced no usable tags.
	ErrTagParse = errors.New("tag parse")

	// ErrInterrupted: the interrupt latch was observed; the in-flight
	// transaction was rolled back.
	ErrInterrupted = errors.New("interrupted")

	// ErrNotFound: a lookup by id or external id matched no rows.
	// Distinct from an empty result set.
	ErrNotFound = errors.New("not found")

	// ErrConflict: an insert violated a UNIQUE constraint.
	ErrConflict = errors.New("conflict")
)

func opErr(op string, kind error, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, kind)
	}
	return fmt.Errorf("%s: %w: %v", op, kind, err)
}
