package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is shared; validator.Validate caches struct metadata and is safe
// for concurrent use.
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("duration", validateDuration)
}

// validateDuration accepts strings understood by time.ParseDuration with a
// non-negative value.
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d >= 0
}

// Validate checks field ranges. All violations are reported in one error.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
