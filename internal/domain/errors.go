package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrCredentialUnavailable = errors.New("credential unavailable")
	ErrNoImageGenerated      = errors.New("no image generated")
	ErrBatchActive           = errors.New("batch already running")
	ErrNothingToGenerate     = errors.New("no eligible items")
	ErrUnsupportedMedia      = errors.New("unsupported media type")
	ErrProviderFailure       = errors.New("provider failure")
)

// FallbackErrorMessage is recorded on an item when a generation failure
// carries no text of its own.
const FallbackErrorMessage = "failed to generate image"

// ErrorMessage renders err as the text stored on a failed item.
func ErrorMessage(err error) string {
	if err == nil {
		return FallbackErrorMessage
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return FallbackErrorMessage
}
