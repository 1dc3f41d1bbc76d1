package config

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/masjid-network/masjidctl/internal/guard"
)

// RegisterCustomValidators registers masjidctl-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("register duration validator: %w", err)
	}
	return nil
}

// validateDuration accepts anything time.ParseDuration accepts.
func validateDuration(fl validator.FieldLevel) bool {
	_, err := time.ParseDuration(fl.Field().String())
	return err == nil
}

// Validate validates the Config using struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their config keys, not Go struct names, so an error
	// points at the line the user actually wrote.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateDashboardLoopback(); err != nil {
		return err
	}
	return c.validateRoleConditions()
}

// validateDashboardLoopback rejects dashboard addresses that would listen on
// a public interface. The dashboard carries a signed-in session and is only
// ever meant for the local machine.
func (c *Config) validateDashboardLoopback() error {
	host, _, err := net.SplitHostPort(c.Dashboard.Addr)
	if err != nil {
		return fmt.Errorf("dashboard.addr: %w", err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("dashboard.addr: %q is not a loopback address", host)
	}
	return nil
}

// validateRoleConditions compiles every configured CEL condition so typos
// fail at startup with the offending rule named.
func (c *Config) validateRoleConditions() error {
	for _, rule := range c.Dashboard.RoleRules {
		if _, err := guard.CompileRule(guard.RoleRule{
			Roles:     rule.Roles,
			Condition: rule.Condition,
		}); err != nil {
			return fmt.Errorf("dashboard.role_rules[%s]: %w", rule.Prefix, err)
		}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to messages a
// user can act on.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := strings.TrimPrefix(e.Namespace(), "Config.")
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL (got %q)", field, e.Value())
	case "duration":
		return fmt.Sprintf("%s must be a duration like \"30s\" or \"1h\" (got %q)", field, e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s (got %q)", field, e.Param(), e.Value())
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port (got %q)", field, e.Value())
	case "startswith":
		return fmt.Sprintf("%s must start with %q (got %q)", field, e.Param(), e.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}
