package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	"github.com/angelmondragon/storefront-backoffice/pkg/types"
)

// MaxBodyBytes caps every JSON request body.
const MaxBodyBytes = 64 << 10

// Size quantity tags. restock_quantities accepts only non-negative, not-all-zero counts;
// stock_delta accepts any sign but not all zero. Both bound each size by types.MaxQuantity.
const (
	tagRestockQuantities = "restock_quantities"
	tagStockDelta        = "stock_delta"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	mustRegister(v, tagRestockQuantities, func(q types.SizeQuantities) bool {
		return !q.IsZero() && !q.HasNegative() && len(q.OutOfRangeSizes()) == 0
	})
	mustRegister(v, tagStockDelta, func(q types.SizeQuantities) bool {
		return !q.IsZero() && len(q.OutOfRangeSizes()) == 0
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, ok func(types.SizeQuantities) bool) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		q, isQuantities := fl.Field().Interface().(types.SizeQuantities)
		return isQuantities && ok(q)
	})
	if err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// DecodeJSONBody reads at most MaxBodyBytes of JSON into dest, rejecting unknown fields,
// then runs its validate tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
	}
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return decodeError(err)
	}
	if decoder.More() {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body must contain a single JSON object")
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
	case errors.As(err, &tooLarge):
		return pkgerrors.New(pkgerrors.CodeValidation, "request body too large").
			WithDetails(map[string]any{"max_bytes": tooLarge.Limit})
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
			WithDetails(map[string]any{field: "must be " + typeErr.Type.String()})
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
		WithDetails(map[string]any{"error": err.Error()})
}

func formatValidationErrors(err error) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email"
	case "uuid":
		return "must be a UUID"
	case tagRestockQuantities:
		return fmt.Sprintf("must be non-negative with at least one size, each at most %d", types.MaxQuantity)
	case tagStockDelta:
		return fmt.Sprintf("must change at least one size by at most %d", types.MaxQuantity)
	}
	return "is invalid"
}
