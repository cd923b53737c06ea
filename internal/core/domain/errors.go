package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrConversationNotFound indicates an explicit conversation ID did not resolve
	ErrConversationNotFound = errors.New("Conversation not found")

	// ErrNullText indicates a missing embedding input
	ErrNullText = errors.New("text cannot be null or undefined")

	// ErrEmptyText indicates an embedding input that is blank after trimming
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrEmptyContent indicates a buffer or document with no content
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrUnsupportedKind indicates a source kind with no registered parser
	ErrUnsupportedKind = errors.New("unsupported source kind")

	// ErrInvalidResponseFormat indicates a provider returned a malformed payload
	ErrInvalidResponseFormat = errors.New("invalid response format")

	// ErrProvider indicates an upstream embedding or generation call failed
	ErrProvider = errors.New("provider error")

	// ErrInvalidTransition indicates a source status change that is not allowed
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrSourceDeleted indicates a mutation was attempted on a deleted source
	ErrSourceDeleted = errors.New("source is deleted")

	// ErrUnsupportedDimension indicates an embedding size outside the allow-list
	ErrUnsupportedDimension = errors.New("unsupported embedding dimensionality")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates the AI service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)
