package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // access denied

	// Sync errors
	CodeConfigNotFound  = "E_CONFIG_NOT_FOUND"   // no sync config exists for the requested table.
	CodeNoData          = "E_NO_DATA"            // the source sheet produced no data rows.
	CodeSourceFetch     = "E_SOURCE_FETCH"       // reading from the spreadsheet source failed.
	CodeStoreWrite      = "E_STORE_WRITE"        // writing to the target database failed.
	CodeConfigInvalid   = "E_CONFIG_INVALID"     // the supplied sync config is malformed.
	CodeSyncLogNotFound = "E_SYNC_LOG_NOT_FOUND" // the requested sync log entry could not be found.

	// Job errors
	CodeJobNotFound = "E_JOB_NOT_FOUND" // the named cron job does not exist.
	CodeJobRunning  = "E_JOB_RUNNING"   // the job is already running.
	CodeJobInvalid  = "E_JOB_INVALID"   // the supplied job definition is malformed.
	CodeJobConflict = "E_JOB_CONFLICT"  // a job with the same name already exists.
)
