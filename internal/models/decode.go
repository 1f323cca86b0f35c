package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// DecodeError is returned when a stored or received document does not have
// the shape of the record it is decoded into.
type DecodeError struct {
	Kind   string   // record type, e.g. "property"
	Fields []string // offending fields, json names
	Err    error
}

func (e *DecodeError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("decode %s: invalid fields %s", e.Kind, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("decode %s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks the validate tags of v and converts failures to a
// DecodeError of the given kind.
func Validate(kind string, v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return &DecodeError{Kind: kind, Fields: fields, Err: err}
	}
	return &DecodeError{Kind: kind, Err: err}
}

// Decode unmarshals data into T and validates it.
func Decode[T any](kind string, data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, &DecodeError{Kind: kind, Err: err}
	}
	if err := Validate(kind, &v); err != nil {
		return v, err
	}
	return v, nil
}

// DecodeList unmarshals a JSON array and validates every element.
func DecodeList[T any](kind string, data []byte) ([]T, error) {
	var list []T
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, &DecodeError{Kind: kind, Err: err}
	}
	for i := range list {
		if err := Validate(kind, &list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// DecodeProperty decodes a property document
func DecodeProperty(data []byte) (*Property, error) {
	p, err := Decode[Property]("property", data)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodePropertyDetails decodes a property details document
func DecodePropertyDetails(data []byte) (*PropertyDetails, error) {
	d, err := Decode[PropertyDetails]("property_details", data)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
