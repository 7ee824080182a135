package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/agentstation/assetsync/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// validatorInstance returns the shared validator. Field names in its errors
// are the env tag of the field so messages name the variable to set.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			if env := f.Tag.Get("env"); env != "" {
				return env
			}
			return f.Name
		})
	})
	return validate
}

// Validate checks every field and returns one *errors.ConfigError listing
// all problems. checkFiles also requires the service-account file to exist.
func (c *Config) Validate(checkFiles bool) error {
	var problems []string

	if err := validatorInstance().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return errors.NewConfigError("validation", "validator failed", err)
		}
		for _, fe := range fieldErrs {
			problems = append(problems, describe(fe))
		}
	}

	if checkFiles && c.ServiceAccountFile != "" {
		if _, err := os.Stat(c.ServiceAccountFile); err != nil {
			problems = append(problems, fmt.Sprintf("GOOGLE_SERVICE_ACCOUNT_FILE %s does not exist", c.ServiceAccountFile))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &errors.ConfigError{
		Component: "config",
		Message:   fmt.Sprintf("%d problem(s)", len(problems)),
		Problems:  problems,
	}
}

func describe(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " environment variable is required"
	case "url":
		return fmt.Sprintf("%s must be an absolute URL, got %q", name, fe.Value())
	case "email":
		return fmt.Sprintf("%s must be an email address, got %q", name, fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", name, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
}
