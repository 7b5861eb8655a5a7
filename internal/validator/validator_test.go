package validator

import (
	"testing"

	"github.com/pauljones0/dealfeed-bot/internal/models"
)

func TestValidateDraft(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		deal    models.Deal
		wantErr bool
	}{
		{
			name: "complete draft",
			deal: models.Deal{
				Title: "Widget",
				Price: "$9.99",
				Link:  "https://example.com/widget",
			},
		},
		{
			name:    "missing title",
			deal:    models.Deal{Price: "$9.99", Link: "https://example.com/widget"},
			wantErr: true,
		},
		{
			name:    "missing price",
			deal:    models.Deal{Title: "Widget", Link: "https://example.com/widget"},
			wantErr: true,
		},
		{
			name:    "missing link",
			deal:    models.Deal{Title: "Widget", Price: "$9.99"},
			wantErr: true,
		},
		{
			name:    "malformed link",
			deal:    models.Deal{Title: "Widget", Price: "$9.99", Link: "not a url"},
			wantErr: true,
		},
		{
			name: "optional fields may be empty",
			deal: models.Deal{
				Title: "Widget",
				Price: "Free",
				Link:  "https://example.com/widget",
				Image: models.ImageUnavailable,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateDraft(tt.deal)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDraft() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
