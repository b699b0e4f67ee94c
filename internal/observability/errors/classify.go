package errors

import (
	goerrors "errors"
	"reflect"
	"strings"
)

// Classifier is implemented by errors that know their own metric class,
// such as upstream API errors ("upstream_404") or application errors.
type Classifier interface {
	ErrorClass() string
}

// Classify returns a normalized error type name suitable for tagging metrics/logs.
// The outermost error in the chain implementing Classifier wins; otherwise the
// innermost concrete type is converted to snake_case-ish.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var c Classifier
	if goerrors.As(err, &c) {
		if class := strings.TrimSpace(c.ErrorClass()); class != "" {
			return class
		}
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
