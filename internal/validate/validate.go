// Package validate checks enum and shape tags on service inputs.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New()
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return v
}

// Struct validates s and wraps any failure in sentinel, listing the
// offending fields as field=tag pairs.
func Struct(sentinel error, s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return fmt.Errorf("%w: %v", sentinel, err)
	}
	fields := Fields(ves)
	parts := make([]string, 0, len(fields))
	for f, tag := range fields {
		parts = append(parts, f+"="+tag)
	}
	sort.Strings(parts)
	return fmt.Errorf("%w: %s", sentinel, strings.Join(parts, ", "))
}

// Fields maps each failing field to the tag it failed.
func Fields(ves validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(ves))
	for _, ve := range ves {
		out[ve.Field()] = ve.Tag()
	}
	return out
}

// Var validates a single value against tag, wrapping failures in sentinel.
func Var(sentinel error, field string, value any, tag string) error {
	if err := instance().Var(value, tag); err != nil {
		return fmt.Errorf("%w: %s=%v", sentinel, field, value)
	}
	return nil
}
