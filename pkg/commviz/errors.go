package commviz

import (
	"context"
	"errors"
	"strings"

	"github.com/dan-solli/commviz/pkg/cache"
	"github.com/dan-solli/commviz/pkg/diagram"
	"github.com/dan-solli/commviz/pkg/ingest"
	"github.com/dan-solli/commviz/pkg/settings"
	"github.com/dan-solli/commviz/pkg/store"
	"github.com/go-playground/validator/v10"
)

// Error type constants for classification
const (
	ErrTypeFormat     = "format"
	ErrTypeStorage    = "storage"
	ErrTypeTimeout    = "timeout"
	ErrTypeValidation = "validation"
	ErrTypeUnknown    = "unknown"
)

// ClassifyError inspects an error and returns its type classification.
// This enables grouping errors by category in metrics and traces.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	var formatErr *ingest.FormatError
	if errors.As(err, &formatErr) {
		return ErrTypeFormat
	}

	// Check timeouts before storage: a timed-out store call is both
	if errors.Is(err, context.DeadlineExceeded) || store.IsTimeout(err) {
		return ErrTypeTimeout
	}

	var storageErr *store.StorageError
	if errors.As(err, &storageErr) || errors.Is(err, store.ErrClosed) {
		return ErrTypeStorage
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) ||
		errors.Is(err, settings.ErrInvalidSettings) ||
		errors.Is(err, diagram.ErrUnknownKind) ||
		errors.Is(err, cache.ErrEmptyID) {
		return ErrTypeValidation
	}

	errStrLower := strings.ToLower(err.Error())
	if strings.Contains(errStrLower, "deadline exceeded") || strings.Contains(errStrLower, "timeout") {
		return ErrTypeTimeout
	}
	if strings.Contains(errStrLower, "sql") || strings.Contains(errStrLower, "database") || strings.Contains(errStrLower, "badger") {
		return ErrTypeStorage
	}

	// Default to unknown
	return ErrTypeUnknown
}
