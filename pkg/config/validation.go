package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the configuration against its struct tags plus the
// cross-field rules the tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			return fmt.Errorf("invalid configuration: %s", formatValidationErrors(errs))
		}
		return err
	}

	if cfg.Processor.Executor == "pool" && cfg.Processor.Workers < 1 {
		return fmt.Errorf("invalid configuration: processor.workers must be at least 1 with the pool executor")
	}
	if cfg.Processor.Staging == "disk" && cfg.Processor.StagingDir == "" {
		return fmt.Errorf("invalid configuration: processor.staging_dir is required with disk staging")
	}

	return nil
}

func formatValidationErrors(errs validator.ValidationErrors) string {
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("field %q failed rule %q", e.Namespace(), e.Tag())
	}
	return msg
}
