package genai

import (
	"errors"

	apperrors "dialogue-engine/internal/common/errors"
)

// ErrorCode maps a provider error onto the shared error taxonomy.
func ErrorCode(err error) apperrors.ErrorCode {
	switch {
	case errors.Is(err, ErrRateLimited):
		return apperrors.ErrCodeGenAIRateLimited
	case errors.Is(err, ErrUnauthorized):
		return apperrors.ErrCodeGenAIUnauthorized
	case errors.Is(err, ErrTimeout):
		return apperrors.ErrCodeGenAITimeout
	case errors.Is(err, ErrEmptyResponse):
		return apperrors.ErrCodeGenAIEmptyResponse
	default:
		return apperrors.ErrCodeGenAIFailed
	}
}
