package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/stockroom-hq/stockroom/internal/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode unmarshals the request body into dst and runs struct validation.
// Failures surface as validation errors so RespondError maps them to 400.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("httpx: malformed body: %v: %w", err, shared.ErrValidation)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("httpx: %v: %w", err, shared.ErrValidation)
	}
	return nil
}
