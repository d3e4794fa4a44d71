package call

// CallErrorCode is the synchronous return code of start_batch and similar
// operations (§6 "Error code enum").
type CallErrorCode int

const (
	CallErrorOK CallErrorCode = iota
	CallErrorGeneric
	CallErrorNotOnClient
	CallErrorNotOnServer
	CallErrorAlreadyAccepted
	CallErrorAlreadyInvoked
	CallErrorAlreadyFinished
	CallErrorTooManyOperations
	CallErrorInvalidFlags
	CallErrorInvalidMetadata
	CallErrorInvalidMessage
	CallErrorNotServerCompletionQueue
	CallErrorBatchTooBig
	CallErrorPayloadTypeMismatch
	CallErrorCompletionQueueShutdown
	CallErrorNotInvoked
)

// names is the code→name table used for diagnostics (§6).
var names = map[CallErrorCode]string{
	CallErrorOK:                       "OK",
	CallErrorGeneric:                  "ERROR",
	CallErrorNotOnClient:              "NOT_ON_CLIENT",
	CallErrorNotOnServer:              "NOT_ON_SERVER",
	CallErrorAlreadyAccepted:          "ALREADY_ACCEPTED",
	CallErrorAlreadyInvoked:           "ALREADY_INVOKED",
	CallErrorAlreadyFinished:          "ALREADY_FINISHED",
	CallErrorTooManyOperations:        "TOO_MANY_OPERATIONS",
	CallErrorInvalidFlags:             "INVALID_FLAGS",
	CallErrorInvalidMetadata:          "INVALID_METADATA",
	CallErrorInvalidMessage:           "INVALID_MESSAGE",
	CallErrorNotServerCompletionQueue: "NOT_SERVER_COMPLETION_QUEUE",
	CallErrorBatchTooBig:              "BATCH_TOO_BIG",
	CallErrorPayloadTypeMismatch:      "PAYLOAD_TYPE_MISMATCH",
	CallErrorCompletionQueueShutdown:  "COMPLETION_QUEUE_SHUTDOWN",
	CallErrorNotInvoked:               "NOT_INVOKED",
}

// Name returns the diagnostic name for code, or "UNKNOWN" if unrecognized.
func (code CallErrorCode) Name() string {
	if n, ok := names[code]; ok {
		return n
	}
	return "UNKNOWN"
}

// CallError is the error type returned for API-level misuse detected
// synchronously at batch-start (§7 "API-level" taxonomy entry): slot
// reuse, bad flags, wrong role, and so on.
type CallError struct {
	code CallErrorCode
	msg  string
}

func newCallError(code CallErrorCode, msg string) *CallError {
	return &CallError{code: code, msg: msg}
}

func (e *CallError) Error() string {
	if e.msg != "" {
		return e.code.Name() + ": " + e.msg
	}
	return e.code.Name()
}

// Code returns the CallErrorCode this error carries.
func (e *CallError) Code() CallErrorCode { return e.code }
