package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mmynk/lifeboard/internal/apperr"
)

// mapError maps PostgreSQL errors onto the application error kinds.
// Anything unrecognised is wrapped with msg and the PostgreSQL details.
func mapError(msg string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
			return &apperr.Error{Kind: apperr.KindTransientNetwork, Message: "database unavailable", Err: err}
		}
		return fmt.Errorf("%s: %w", msg, err)
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return &apperr.Error{Kind: apperr.KindValidation, Message: "a row with the same key already exists", Err: err}

	case pgerrcode.ForeignKeyViolation:
		return &apperr.Error{Kind: apperr.KindNotFound, Message: "referenced row does not exist", Err: err}

	case pgerrcode.NotNullViolation, pgerrcode.CheckViolation, pgerrcode.InvalidTextRepresentation,
		pgerrcode.NumericValueOutOfRange, pgerrcode.InvalidDatetimeFormat:
		return &apperr.Error{Kind: apperr.KindValidation, Message: pgErr.Message, Err: err}

	case pgerrcode.InsufficientPrivilege:
		return &apperr.Error{Kind: apperr.KindAccess, Message: pgErr.Message, Err: err}

	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected,
		pgerrcode.ConnectionException, pgerrcode.ConnectionDoesNotExist, pgerrcode.ConnectionFailure,
		pgerrcode.CannotConnectNow, pgerrcode.AdminShutdown, pgerrcode.CrashShutdown,
		pgerrcode.TooManyConnections, pgerrcode.QueryCanceled:
		return &apperr.Error{Kind: apperr.KindTransientNetwork, Message: "database unavailable", Err: err}

	default:
		return fmt.Errorf("%s: postgres error [%s]: %s (detail: %s, hint: %s): %w",
			msg, pgErr.Code, pgErr.Message, pgErr.Detail, pgErr.Hint, err)
	}
}
