package product

import (
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/shopspring/decimal"
)

// Request holds the client-supplied fields for creating or replacing a
// product. Optional fields are pointers so that absence can be told apart
// from zero values.
type Request struct {
	Name        string           `json:"name" validate:"notblank,min=2,max=100"`
	Description string           `json:"description" validate:"notblank,min=10,max=1000"`
	Price       *decimal.Decimal `json:"price" validate:"required,gt=0"`
	Category    *string          `json:"category" validate:"omitempty,max=100"`
	ImageURL    *string          `json:"imageUrl"`
	Available   *bool            `json:"available"`
}

// applyTo copies the request onto p, substituting defaults for absent
// optional fields.
func (r Request) applyTo(p *Product) {
	p.Name = r.Name
	p.Description = r.Description
	p.Price = *r.Price
	p.Category = DefaultCategory
	if r.Category != nil {
		p.Category = *r.Category
	}
	p.ImageURL = ""
	if r.ImageURL != nil {
		p.ImageURL = *r.ImageURL
	}
	p.Available = true
	if r.Available != nil {
		p.Available = *r.Available
	}
}

// Prices are stored as NUMERIC(12, 2).
const priceScale = 2

// MaxPrice is the smallest price too large to be stored.
var MaxPrice = decimal.New(1, 10)

var validate = newValidator()

// validatePrice rejects positive prices the price column cannot hold
// exactly. Non-positive prices are already reported by the gt tag.
func validatePrice(sl validator.StructLevel) {
	r := sl.Current().Interface().(Request)
	if r.Price == nil || !r.Price.IsPositive() {
		return
	}
	switch {
	case !r.Price.Equal(r.Price.Round(priceScale)):
		sl.ReportError(r.Price, "price", "Price", "scale", "")
	case r.Price.GreaterThanOrEqual(MaxPrice):
		sl.ReportError(r.Price, "price", "Price", "lt", MaxPrice.String())
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	v.RegisterStructValidation(validatePrice, Request{})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// fieldMessages maps field and failed tag to the message reported to clients.
var fieldMessages = map[string]map[string]string{
	"name": {
		"notblank": "Product name is required",
		"min":      "Product name must be between 2 and 100 characters",
		"max":      "Product name must be between 2 and 100 characters",
	},
	"description": {
		"notblank": "Product description is required",
		"min":      "Product description must be between 10 and 1000 characters",
		"max":      "Product description must be between 10 and 1000 characters",
	},
	"price": {
		"required": "Product price is required",
		"gt":       "Product price must be positive",
		"scale":    "Product price must have at most 2 decimal places",
		"lt":       "Product price must be less than 10000000000",
	},
	"category": {
		"max": "Product category must be at most 100 characters",
	},
}

// Validate checks the request against the product field constraints and
// returns a *ValidationError listing every offending field.
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate request")
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()][fe.Tag()]
		if !ok {
			msg = fe.Field() + " is invalid"
		}
		fields[fe.Field()] = msg
	}
	return &ValidationError{Fields: fields}
}
