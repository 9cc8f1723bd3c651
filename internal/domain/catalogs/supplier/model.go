// Package supplier provides the Supplier catalog.
// Suppliers give purchase movements their provenance; nothing in the
// valuation math depends on them.
package supplier

import (
	"context"
	"regexp"

	"stockbook/internal/core/apperror"
	"stockbook/internal/core/entity"
)

// Pre-compiled regex patterns for validation
var (
	emailRE = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	vatRE   = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9+*]{2,13}$`)
)

// Supplier represents a drinks wholesaler or brewery account.
type Supplier struct {
	entity.Catalog

	// VATNumber is the EU VAT registration number
	VATNumber *string `db:"vat_number" json:"vatNumber,omitempty"`

	// ContactPerson is the rep handling the account
	ContactPerson *string `db:"contact_person" json:"contactPerson,omitempty"`

	// Phone is the order line phone
	Phone *string `db:"phone" json:"phone,omitempty"`

	// Email for orders and credits
	Email *string `db:"email" json:"email,omitempty"`

	// Comment is a free-form note
	Comment *string `db:"comment" json:"comment,omitempty"`
}

// NewSupplier creates a new Supplier with required fields.
func NewSupplier(code, name string) *Supplier {
	return &Supplier{
		Catalog: entity.NewCatalog(code, name),
	}
}

// Validate implements entity.Validatable interface.
func (s *Supplier) Validate(ctx context.Context) error {
	if err := s.Catalog.Validate(ctx); err != nil {
		return err
	}

	if s.Email != nil && *s.Email != "" && !emailRE.MatchString(*s.Email) {
		return apperror.NewValidation("invalid email format").
			WithDetail("field", "email").
			WithDetail("value", *s.Email)
	}

	if s.VATNumber != nil && *s.VATNumber != "" && !vatRE.MatchString(*s.VATNumber) {
		return apperror.NewValidation("invalid VAT number format").
			WithDetail("field", "vatNumber").
			WithDetail("value", *s.VATNumber)
	}

	return nil
}
