package generation

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// youtubeHosts are the hosts accepted for platform youtube
var youtubeHosts = map[string]bool{
	"www.youtube.com": true,
	"youtube.com":     true,
	"youtu.be":        true,
	"m.youtube.com":   true,
}

// ValidationError reports the first violated request constraint
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validator checks generation requests
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator reporting fields by their JSON names
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("failed to register validation tag %q: %v", tag, err))
		}
	}
	mustRegister("notblank", validators.NotBlank)
	mustRegister("platform_host", validatePlatformHost)

	return &Validator{validate: v}
}

// NormalizeVideoRequest trims the request and applies the default dialect
func NormalizeVideoRequest(req VideoRequest) VideoRequest {
	req.Platform = Platform(strings.ToLower(strings.TrimSpace(string(req.Platform))))
	req.Dialect = Dialect(strings.ToLower(strings.TrimSpace(string(req.Dialect))))
	if req.Dialect == "" {
		req.Dialect = DialectStandard
	}
	req.VideoURL = strings.TrimSpace(req.VideoURL)
	return req
}

// ValidateVideo validates a normalized video request
func (v *Validator) ValidateVideo(req VideoRequest) error {
	return v.first(req)
}

// ValidateText validates a plain-text request
func (v *Validator) ValidateText(req TextRequest) error {
	return v.first(req)
}

// first returns the first violation in struct field order
func (v *Validator) first(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return err
	}

	fe := validationErrors[0]
	return &ValidationError{Field: fe.Field(), Message: errorMessage(fe)}
}

func errorMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "http_url":
		return fmt.Sprintf("%s must be a valid http or https URL", field)
	case "platform_host":
		return fmt.Sprintf("%s must be a YouTube URL (youtube.com or youtu.be)", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// validatePlatformHost restricts the URL host for platforms with a fixed set
// of domains. Other platforms accept any http(s) URL.
func validatePlatformHost(fl validator.FieldLevel) bool {
	parent := fl.Parent()
	if parent.Kind() == reflect.Ptr {
		parent = parent.Elem()
	}
	platform := parent.FieldByName("Platform")
	if !platform.IsValid() || Platform(platform.String()) != PlatformYouTube {
		return true
	}

	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return youtubeHosts[strings.ToLower(u.Hostname())]
}
