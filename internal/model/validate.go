package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names so errors match the wire shape.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks a record's field constraints. Failures wrap ErrInvalidInput.
func Validate(record any) error {
	err := validate.Struct(record)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fieldRule(fe)))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

func fieldRule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// ValidateProfile checks the agent record and every authored entry in a profile.
func ValidateProfile(p AgentProfile) error {
	if err := Validate(p.Agent); err != nil {
		return err
	}
	for _, k := range p.Knowledge {
		if err := Validate(k); err != nil {
			return fmt.Errorf("knowledge %d: %w", k.ID, err)
		}
	}
	return nil
}
