package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"fleetgeo/internal/types"
)

// ValidationError describes one failed field constraint.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validator wraps go-playground/validator with the engine's custom tags:
//
//	tile_zoom      int in [0, types.MaxTileZoom]
//	traffic_level  one of types.TrafficLevels
//	geofence_event enter, exit or dwell
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers the custom tags. Field
// names in errors use the json tag.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// Registration only fails on empty tags or nil funcs.
	_ = v.RegisterValidation("tile_zoom", func(fl validator.FieldLevel) bool {
		z := fl.Field().Int()
		return z >= 0 && z <= types.MaxTileZoom
	})
	_ = v.RegisterValidation("traffic_level", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		for _, l := range types.TrafficLevels {
			if string(l) == s {
				return true
			}
		}
		return false
	})
	_ = v.RegisterValidation("geofence_event", func(fl validator.FieldLevel) bool {
		return types.GeofenceEvent(fl.Field().String()).Valid()
	})

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates s and returns an AppError whose code is that of
// the first failing field. All failures are listed under the
// "validation_errors" detail.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.logger.Error("validator misuse", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	errs := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, ValidationError{
			Field:   fe.Namespace(),
			Code:    tagToErrorCode(fe.Tag()),
			Message: fieldMessage(fe),
		})
	}
	return types.NewAppErrorWithDetails(types.ErrorCode(errs[0].Code), errs[0].Message, err,
		map[string]any{"validation_errors": errs})
}

// tagToErrorCode maps a validator tag to the error code reported to clients.
func tagToErrorCode(tag string) string {
	switch tag {
	case "required":
		return string(types.ErrCodeValidationMissingField)
	case "latitude":
		return string(types.ErrCodeValidationInvalidLat)
	case "longitude":
		return string(types.ErrCodeValidationInvalidLng)
	case "tile_zoom":
		return string(types.ErrCodeValidationInvalidZoom)
	case "geofence_event":
		return string(types.ErrCodeValidationInvalidEvent)
	default:
		return string(types.ErrCodeValidationInvalidRequest)
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "latitude", "longitude":
		return fmt.Sprintf("%s must be a valid %s", fe.Field(), fe.Tag())
	case "tile_zoom":
		return fmt.Sprintf("%s must be between 0 and %d", fe.Field(), types.MaxTileZoom)
	case "oneof", "traffic_level", "geofence_event":
		return fmt.Sprintf("%s has an unsupported value", fe.Field())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
