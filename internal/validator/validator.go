package validator

import (
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
)

var (
	slugRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

	validCategories = func() []interface{} {
		out := make([]interface{}, len(domain.Categories))
		for i, c := range domain.Categories {
			out[i] = c
		}
		return out
	}()
	validRoles = []interface{}{domain.RoleAdmin, domain.RoleUser}
)

const minPasswordLength = 6

// Validator checks catalog payloads before they reach the store.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateProductInput validates a product creation payload.
func (v *Validator) ValidateProductInput(in *domain.ProductInput) error {
	err := validation.ValidateStruct(in,
		validation.Field(&in.Title, validation.Required, validation.RuneLength(2, 100)),
		validation.Field(&in.Description, validation.Required, validation.RuneLength(10, 500)),
		validation.Field(&in.Image, validation.Required, is.URL),
		validation.Field(&in.Category, validation.Required, validation.In(validCategories...)),
		validation.Field(&in.Price, validation.NotNil, validation.Min(0.0)),
		validation.Field(&in.Availability, validation.NotNil),
		validation.Field(&in.Slug, validation.Match(slugRegex)),
	)
	return convert(err)
}

// ValidateProductPatch validates only the fields present in a partial update.
func (v *Validator) ValidateProductPatch(p *domain.ProductPatch) error {
	err := validation.ValidateStruct(p,
		validation.Field(&p.Title, validation.NilOrNotEmpty, validation.RuneLength(2, 100)),
		validation.Field(&p.Description, validation.NilOrNotEmpty, validation.RuneLength(10, 500)),
		validation.Field(&p.Image, validation.NilOrNotEmpty, is.URL),
		validation.Field(&p.Category, validation.NilOrNotEmpty, validation.In(validCategories...)),
		validation.Field(&p.Price, validation.Min(0.0)),
		validation.Field(&p.Slug, validation.NilOrNotEmpty, validation.Match(slugRegex)),
	)
	return convert(err)
}

// ValidateUserInput validates a user creation payload.
func (v *Validator) ValidateUserInput(in *domain.UserInput) error {
	err := validation.ValidateStruct(in,
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Name, validation.Required),
		validation.Field(&in.Password, validation.Required, validation.RuneLength(minPasswordLength, 0)),
		validation.Field(&in.Role, validation.In(validRoles...)),
	)
	return convert(err)
}

// ValidateUserUpdate validates only the fields present in a partial user update.
func (v *Validator) ValidateUserUpdate(u *domain.UserUpdate) error {
	err := validation.ValidateStruct(u,
		validation.Field(&u.Email, validation.NilOrNotEmpty, is.EmailFormat),
		validation.Field(&u.Name, validation.NilOrNotEmpty),
		validation.Field(&u.Password, validation.NilOrNotEmpty, validation.RuneLength(minPasswordLength, 0)),
		validation.Field(&u.Role, validation.NilOrNotEmpty, validation.In(validRoles...)),
	)
	return convert(err)
}

// convert maps ozzo field errors onto a domain validation error. Internal
// rule failures are returned unchanged.
func convert(err error) error {
	if err == nil {
		return nil
	}

	var ve validation.Errors
	if !errors.As(err, &ve) {
		return err
	}

	fields := make(map[string]string, len(ve))
	for field, fieldErr := range ve {
		fields[field] = fieldErr.Error()
	}
	return domain.Validation("validation failed", fields)
}
