package ledger

import (
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

var (
	// ErrOpenFailed indicates the history database could not be opened.
	ErrOpenFailed = errors.StorageError("could not open history database").Build()

	// ErrRecordFailed indicates a run could not be written.
	ErrRecordFailed = errors.StorageError("failed to record run").Build()

	// ErrQueryFailed indicates reading history failed.
	ErrQueryFailed = errors.StorageError("failed to query run history").Build()
)

func wrap(sentinel *errors.ClassifiedError, cause error) error {
	return errors.WrapError(cause, sentinel.Category(), sentinel.Message()).Build()
}
