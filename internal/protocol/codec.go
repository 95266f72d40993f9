package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrUnknownType is returned for messages with an unrecognised type.
var ErrUnknownType = errors.New("unknown message type")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields []FieldError
}

// FieldError is one failed constraint.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " failed " + f.Rule
	}
	return "invalid message: " + strings.Join(parts, ", ")
}

// Validate checks m against its schema.
func Validate(m any) error {
	err := validate.Struct(m)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out.Fields = append(out.Fields, FieldError{Field: trimRoot(fe.Namespace()), Rule: rule})
	}
	return out
}

func trimRoot(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// Decode parses and validates a raw picker message.
func Decode(raw []byte) (Message, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	var msg Message
	switch envelope.Type {
	case TypeElementSelected:
		msg = &ElementSelected{}
	case TypeProxyReady:
		msg = &ProxyReady{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, envelope.Type)
	}

	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
	}
	if err := Validate(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// DecodeElementSelected decodes raw and requires an ELEMENT_SELECTED message.
func DecodeElementSelected(raw []byte) (*ElementSelected, error) {
	msg, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	sel, ok := msg.(*ElementSelected)
	if !ok {
		return nil, fmt.Errorf("%w: want %s, got %s", ErrUnknownType, TypeElementSelected, msg.MessageType())
	}
	return sel, nil
}

// Encode marshals m after validating it.
func Encode(m Message) ([]byte, error) {
	if err := Validate(m); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}
