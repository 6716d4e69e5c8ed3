package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func validProduct() *domain.ProductInput {
	return &domain.ProductInput{
		Title:        "Wireless Earbuds",
		Description:  "Noise cancelling earbuds with case",
		Image:        "https://cdn.example.com/earbuds.jpg",
		Category:     domain.CategoryElectronics,
		Price:        ptr(79.99),
		Availability: ptr(true),
	}
}

func TestValidateProductInput(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name   string
		mutate func(*domain.ProductInput)
		field  string
	}{
		{"valid product", func(*domain.ProductInput) {}, ""},
		{"zero price", func(p *domain.ProductInput) { p.Price = ptr(0.0) }, ""},
		{"missing title", func(p *domain.ProductInput) { p.Title = "" }, "title"},
		{"short title", func(p *domain.ProductInput) { p.Title = "A" }, "title"},
		{"long title", func(p *domain.ProductInput) { p.Title = strings.Repeat("x", 101) }, "title"},
		{"short description", func(p *domain.ProductInput) { p.Description = "too short" }, "description"},
		{"bad image", func(p *domain.ProductInput) { p.Image = "not a url" }, "image"},
		{"unknown category", func(p *domain.ProductInput) { p.Category = "Food" }, "category"},
		{"missing price", func(p *domain.ProductInput) { p.Price = nil }, "price"},
		{"negative price", func(p *domain.ProductInput) { p.Price = ptr(-1.0) }, "price"},
		{"missing availability", func(p *domain.ProductInput) { p.Availability = nil }, "availability"},
		{"bad slug", func(p *domain.ProductInput) { p.Slug = "Not A Slug" }, "slug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validProduct()
			tt.mutate(in)

			err := v.ValidateProductInput(in)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := domain.FieldsOf(err)[tt.field]; !ok {
				t.Fatalf("expected error on %q, got %v", tt.field, domain.FieldsOf(err))
			}
		})
	}
}

func TestValidateProductPatchOnlyChecksSuppliedFields(t *testing.T) {
	v := NewValidator()

	if err := v.ValidateProductPatch(&domain.ProductPatch{}); err != nil {
		t.Fatalf("empty patch should be valid: %v", err)
	}
	if err := v.ValidateProductPatch(&domain.ProductPatch{Price: ptr(12.5)}); err != nil {
		t.Fatalf("price-only patch should be valid: %v", err)
	}

	err := v.ValidateProductPatch(&domain.ProductPatch{Title: ptr("")})
	if _, ok := domain.FieldsOf(err)["title"]; !ok {
		t.Fatalf("expected title error, got %v", err)
	}

	cat := domain.Category("Food")
	err = v.ValidateProductPatch(&domain.ProductPatch{Category: &cat})
	if _, ok := domain.FieldsOf(err)["category"]; !ok {
		t.Fatalf("expected category error, got %v", err)
	}
}

func TestValidateUserInput(t *testing.T) {
	v := NewValidator()

	ok := &domain.UserInput{Email: "jane@example.com", Name: "Jane", Password: "secret1"}
	if err := v.ValidateUserInput(ok); err != nil {
		t.Fatalf("expected valid user, got %v", err)
	}

	tests := []struct {
		name  string
		in    domain.UserInput
		field string
	}{
		{"bad email", domain.UserInput{Email: "jane", Name: "Jane", Password: "secret1"}, "email"},
		{"missing name", domain.UserInput{Email: "jane@example.com", Password: "secret1"}, "name"},
		{"short password", domain.UserInput{Email: "jane@example.com", Name: "Jane", Password: "abc"}, "password"},
		{"unknown role", domain.UserInput{Email: "jane@example.com", Name: "Jane", Password: "secret1", Role: "root"}, "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			err := v.ValidateUserInput(&in)
			if _, ok := domain.FieldsOf(err)[tt.field]; !ok {
				t.Fatalf("expected error on %q, got %v", tt.field, err)
			}
		})
	}
}

func TestValidateUserUpdate(t *testing.T) {
	v := NewValidator()

	if err := v.ValidateUserUpdate(&domain.UserUpdate{Password: ptr("newpass123")}); err != nil {
		t.Fatalf("expected valid update, got %v", err)
	}
	err := v.ValidateUserUpdate(&domain.UserUpdate{Password: ptr("123")})
	if _, ok := domain.FieldsOf(err)["password"]; !ok {
		t.Fatalf("expected password error, got %v", err)
	}
}
