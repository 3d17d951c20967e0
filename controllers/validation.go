package controllers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/charitychain/charitychain-api/models"
)

// RegisterValidators installs the custom binding tags on gin's validator.
// It must run before the first request is bound.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	validators := map[string]validator.Func{
		"objectid": func(fl validator.FieldLevel) bool {
			return primitive.IsValidObjectID(fl.Field().String())
		},
		"category": func(fl validator.FieldLevel) bool {
			return models.Category(fl.Field().String()).Valid()
		},
		"paymentmethod": func(fl validator.FieldLevel) bool {
			return models.PaymentMethod(fl.Field().String()).Valid()
		},
	}
	for tag, fn := range validators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s validator: %w", tag, err)
		}
	}
	return nil
}

// bindingMessage turns a bind error into one readable sentence. A missing
// required field reports requiredMsg so each endpoint keeps its own wording.
func bindingMessage(err error, requiredMsg string) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return requiredMsg
	case "email":
		return "Please provide a valid email"
	case "min":
		if fe.Field() == "password" || fe.Field() == "newPassword" {
			return fmt.Sprintf("Password must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "category":
		return "Invalid category"
	case "paymentmethod":
		return "Invalid payment method"
	default:
		return fmt.Sprintf("Invalid %s", fe.Field())
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// parseDate accepts RFC3339 or a plain calendar date as sent by HTML date
// inputs.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
