package platform

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/clarity/internal/connection/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	_ = v.RegisterValidation("myshopify", func(fl validator.FieldLevel) bool {
		_, ok := canonicalShopURL(fl.Field().String())
		return ok
	})
	return v
}

// decode fills the typed config of a platform from the raw document. Keys
// and string values are trimmed, empty values count as absent and any key
// the type does not declare is rejected.
func decode(config map[string]any, out any) error {
	cleaned := make(map[string]any, len(config))
	for rawKey, rawValue := range config {
		key := strings.TrimSpace(rawKey)
		switch value := rawValue.(type) {
		case nil:
			continue
		case string:
			if value = strings.TrimSpace(value); value != "" {
				cleaned[key] = value
			}
		default:
			cleaned[key] = value
		}
	}

	// Marshalled map keys are sorted, so the reported field is stable.
	raw, err := json.Marshal(cleaned)
	if err != nil {
		return domain.ErrInvalidConfig
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return decodeError(err)
	}
	return nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return domain.NewConfigFieldError(typeErr.Field, "must_be_string")
	}
	if quoted, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		if name, unquoteErr := strconv.Unquote(quoted); unquoteErr == nil {
			return domain.NewConfigFieldError(name, "unknown")
		}
	}
	return domain.ErrInvalidConfig
}

// check runs the validate tags of a typed config and reports the first
// failing field in declaration order.
func check(cfg any) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.ErrInvalidConfig
	}
	first := fieldErrs[0]
	code := "invalid"
	if first.Tag() == "required" {
		code = "required"
	}
	return domain.NewConfigFieldError(first.Field(), code)
}

// document turns a validated config back into the opaque stored form.
func document(cfg any) (map[string]any, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
