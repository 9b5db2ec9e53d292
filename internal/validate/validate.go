// Package validate checks input structs with go-playground/validator using
// the same `binding` tags gin reads, so services enforce the rules even when
// called without a request.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"studenttracker/internal/apperr"
)

var (
	once sync.Once
	v    *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		v = validator.New()
		v.SetTagName("binding")
		v.RegisterTagNameFunc(JSONName)
	})
	return v
}

// Struct validates s and returns an Invalid error naming every failed field.
func Struct(s any) error {
	err := engine().Struct(s)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		return apperr.Invalid(Message(errs))
	}
	return apperr.Wrap(apperr.KindInvalid, "Invalid input", err)
}

// JSONName reports a struct field by its json tag.
func JSONName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

// Message joins validator failures into one readable sentence.
func Message(errs validator.ValidationErrors) string {
	var msgs []string
	for _, e := range errs {
		field := e.Field()
		switch e.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is required", field))
		case "email":
			msgs = append(msgs, fmt.Sprintf("field %s must be a valid email address", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("field %s must be one of: %s", field, e.Param()))
		case "min", "gte":
			msgs = append(msgs, fmt.Sprintf("field %s must be at least %s", field, e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is invalid", field))
		}
	}
	return strings.Join(msgs, ", ")
}
