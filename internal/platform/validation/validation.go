// Package validation turns struct-tag rules into ordered, human readable
// field errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// FieldError names one violated rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is the ordered list of violations of one value, in the order the
// fields are declared.
type Errors []FieldError

func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Message
}

// Messages maps "<path>.<tag>" to a message. Indices in the path are
// written as "*", e.g. "medications.*.productName.required".
type Messages map[string]string

// Validator validates command structs. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate

	mu       sync.RWMutex
	messages map[reflect.Type]Messages
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("rfc3339", isRFC3339)
	return &Validator{
		validate: v,
		messages: make(map[reflect.Type]Messages),
	}
}

// RegisterMessages attaches a message table to the type of sample.
func (v *Validator) RegisterMessages(sample interface{}, msgs Messages) {
	t := indirectType(reflect.TypeOf(sample))
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messages[t] = msgs
}

// Struct validates s and returns nil or Errors. s is never modified.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Errors{{Field: "unknown", Message: "Validation failed"}}
	}

	v.mu.RLock()
	msgs := v.messages[indirectType(reflect.TypeOf(s))]
	v.mu.RUnlock()

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		path := fieldPath(fe.Namespace())
		out = append(out, FieldError{
			Field:   path,
			Message: message(msgs, path, fe),
		})
	}
	return out
}

func indirectType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

var indexPattern = regexp.MustCompile(`\[(\d+)\]`)

// fieldPath converts "Command.medications[0].productName" into
// "medications.0.productName".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		namespace = namespace[i+1:]
	}
	return indexPattern.ReplaceAllString(namespace, ".$1")
}

var segmentIndex = regexp.MustCompile(`(^|\.)\d+(\.|$)`)

func messageKey(path, tag string) string {
	for segmentIndex.MatchString(path) {
		path = segmentIndex.ReplaceAllString(path, "$1*$2")
	}
	return path + "." + tag
}

func message(msgs Messages, path string, fe validator.FieldError) string {
	if m, ok := msgs[messageKey(path, fe.Tag())]; ok {
		return m
	}
	return defaultMessage(label(fe.Field()), fe)
}

func label(field string) string {
	if field == "" {
		return "Value"
	}
	return strings.ToUpper(field[:1]) + field[1:]
}

func defaultMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Invalid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(strings.Fields(fe.Param()), ", "))
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "rfc3339":
		return fmt.Sprintf("%s must be an RFC 3339 timestamp", field)
	case "required_without":
		return fmt.Sprintf("%s is required", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func isRFC3339(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}
