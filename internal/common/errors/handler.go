package errors

import (
	"context"
	stderrors "errors"
	"time"
)

// ErrorHandler turns stage failures into logged StandardErrors and user text.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleStageError logs a failed pipeline stage and returns the normalized error.
// Context cancellation is reported at warn level since the caller went away.
func (h *ErrorHandler) HandleStageError(ctx context.Context, stage string, err error) *StandardError {
	stdErr := Normalize(err)

	fields := map[string]interface{}{
		"stage":         stage,
		"errorCode":     string(stdErr.Code),
		"errorKind":     string(GetKind(stdErr.Code)),
		"errorCategory": GetErrorCategory(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
	}
	if stdErr.Metadata != nil {
		fields["metadata"] = stdErr.Metadata
	}

	if ctx != nil && ctx.Err() != nil {
		fields["contextError"] = ctx.Err().Error()
		h.logger.Warn("Stage aborted", fields)
		return stdErr
	}
	h.logger.Error("Stage failed", fields)
	return stdErr
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return &StandardError{
			Code:      ErrCodeOrchestrationFault,
			Message:   "Deadline exceeded",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}
	return &StandardError{
		Code:      ErrCodeOrchestrationFault,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
