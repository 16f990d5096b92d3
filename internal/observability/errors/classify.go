// Package errors turns errors into stable, low-cardinality metric tags.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"
)

var known = []struct {
	target error
	class  string
}{
	{context.Canceled, "context_canceled"},
	{context.DeadlineExceeded, "context_deadline_exceeded"},
}

// Classify returns a snake_case class for err, or "" for nil.
// Context errors map to fixed names anywhere in the chain. Otherwise the
// innermost concrete type is used, e.g. "pgconn_pgerror".
func Classify(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range known {
		if goerrors.Is(err, k.target) {
			return k.class
		}
	}

	for inner := goerrors.Unwrap(err); inner != nil; inner = goerrors.Unwrap(err) {
		err = inner
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ToLower(strings.NewReplacer("*", "", ".", "_").Replace(t.String()))
	if name == "" {
		return "unknown"
	}
	return name
}
