// Package validation checks configuration structs against `validate` struct
// tags using go-playground/validator and reports failures as a single
// errors.AppError keyed by config path.
//
//	type Config struct {
//	    Port int `mapstructure:"port" validate:"min=1,max=65535"`
//	}
//	err := validation.Validate(cfg) // INVALID_INPUT: port: must be at least 1
package validation
