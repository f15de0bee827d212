package validation

import (
	"strings"

	"github.com/dmitrijs2005/harvesthub/internal/common"
)

// FieldError describes one failing field. Field is the JSON name.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// Errors lists every failing field of a payload. It matches
// common.ErrValidation with errors.Is.
type Errors struct {
	Fields []FieldError
}

func (e *Errors) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "validation error: " + strings.Join(msgs, "; ")
}

func (e *Errors) Unwrap() error {
	return common.ErrValidation
}

// Has reports whether field failed with tag.
func (e *Errors) Has(field, tag string) bool {
	for _, f := range e.Fields {
		if f.Field == field && f.Tag == tag {
			return true
		}
	}
	return false
}
