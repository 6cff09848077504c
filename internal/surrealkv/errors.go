package surrealkv

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/splunkgo/internal/models"
)

// Sentinel errors for registry operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAlreadyExists indicates a collection or record with the same name
	// or key already exists.
	ErrAlreadyExists = fmt.Errorf("%w: already exists", models.ErrOperation)

	// ErrTransactionConflict indicates concurrent writes to the same records.
	// Callers should typically retry.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrNotFound indicates the collection or record does not exist.
	ErrNotFound = fmt.Errorf("%w: not found", models.ErrOperation)
)

// wrapQueryError maps known SurrealDB query errors onto sentinel errors.
// Other errors are returned unchanged.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		if strings.Contains(msg, "already exists") {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, msg)
		}
		if strings.Contains(msg, "Transaction conflict") {
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		}
	}

	return err
}
