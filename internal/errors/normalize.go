package errors

import (
	stderrors "errors"
	"strings"
)

// Normalize collapses an arbitrary failure value into a single user-facing
// message string. Agent responses fail in unstructured ways: a transport
// error, a Result with Success=false and a message, a Result with an empty
// message, or nothing usable at all. The fallback is used only when no
// message can be extracted.
func Normalize(err error, fallback string) string {
	if err == nil {
		return fallback
	}

	var structured *Error
	if stderrors.As(err, &structured) && structured.Message != "" {
		return structured.Message
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fallback
}

// NormalizeMessage is the Result-side counterpart of Normalize: it picks the
// agent-supplied message when present and falls back otherwise.
func NormalizeMessage(message, fallback string) string {
	if msg := strings.TrimSpace(message); msg != "" {
		return msg
	}
	return fallback
}
