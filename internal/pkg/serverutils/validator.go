package serverutils

import (
	"fmt"
	"strings"

	"codeassist-be/internal/apperr"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateRequest checks struct validate tags and converts violations
// into a typed validation error.
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, ve := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", ve.Field(), ve.Tag()))
			}
			return apperr.Validation("invalid request: " + strings.Join(fields, ", "))
		}
		return apperr.Validation(err.Error())
	}
	return nil
}
