package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/pauljones0/dealfeed-bot/internal/models"
)

// DraftValidator checks scraped deal drafts against the models.Deal tags.
// Collectors use it to drop structurally incomplete drafts before the
// pipeline ever sees them.
type DraftValidator struct {
	validate *validator.Validate
}

func New() *DraftValidator {
	return &DraftValidator{validate: validator.New()}
}

// ValidateDraft returns a descriptive error when a draft is missing a
// required field (title, price, link) or carries a malformed link.
func (v *DraftValidator) ValidateDraft(d models.Deal) error {
	if err := v.validate.Struct(d); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			return fmt.Errorf("invalid deal draft: field %s failed %q", fieldErrs[0].Field(), fieldErrs[0].Tag())
		}
		return fmt.Errorf("invalid deal draft: %w", err)
	}
	return nil
}
