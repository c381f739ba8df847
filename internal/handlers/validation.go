package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Muthahireen/clairvoyant/internal/usecase"
)

var registerOnce sync.Once

// registerValidators adds the custom rules used by request bodies.
func registerValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(func(f reflect.StructField) string {
				name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
				if name == "-" {
					return ""
				}
				return name
			})
			_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
				return usecase.UsernamePattern.MatchString(fl.Field().String())
			})
		}
	})
}

// bindingMessage turns binding failures into a short client-facing message.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, field+" must be a valid email address")
		case "username":
			parts = append(parts, field+" must be 3-32 letters, digits, '.', '_' or '-'")
		case "min", "max", "gt", "gte", "lte":
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
