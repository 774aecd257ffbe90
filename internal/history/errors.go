package history

import (
	"git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
)

// Sentinel errors for history store operations. Wrapped errors are classified
// as store failures, which never change a build's outcome.
var (
	ErrDatabaseOpenFailed     = errors.StoreError("could not open history database").Build()
	ErrInitializeSchemaFailed = errors.StoreError("failed to initialize history schema").Build()
	ErrRecordFailed           = errors.StoreError("failed to record build").Build()
	ErrQueryFailed            = errors.StoreError("failed to query build history").Build()
)
