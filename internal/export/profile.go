package export

import (
	"context"
	"fmt"
	"os"

	"github.com/lehigh-university-libraries/drafter/internal/models"
	"gopkg.in/yaml.v3"
)

// Profile holds the listing constants written into every row, plus the
// static lookup lists offered in the edit form when no spreadsheet is used.
type Profile struct {
	Action         string `yaml:"action"`
	Category       string `yaml:"category"`
	ConditionID    string `yaml:"condition_id"`
	Format         string `yaml:"format"`
	Duration       string `yaml:"duration"`
	Quantity       string `yaml:"quantity"`
	Location       string `yaml:"location"`
	ReturnProfile  string `yaml:"return_profile"`
	PaymentProfile string `yaml:"payment_profile"`
	Language       string `yaml:"language"`
	DefaultType    string `yaml:"default_type"`

	StoreCategories []models.Category `yaml:"store_categories"`
	Shipping        []string          `yaml:"shipping_tiers"`
}

// DefaultProfile returns the CD listing profile.
func DefaultProfile() Profile {
	return Profile{
		Action:         "Add",
		Category:       "14970",
		ConditionID:    "1000",
		Format:         "FixedPrice",
		Duration:       "GTC",
		Quantity:       "1",
		Location:       "Japan",
		ReturnProfile:  "Seller 60days",
		PaymentProfile: "buy it now",
		Language:       "Japanese",
		DefaultType:    "Album",
		StoreCategories: []models.Category{
			{Name: "CD", ID: "4233877819"},
			{Name: "DVD", ID: "4234611919"},
		},
		Shipping: []string{"15", "25", "32"},
	}
}

// LoadProfile reads a YAML profile on top of the defaults. An empty path
// returns the defaults.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return p, nil
}

// Categories returns the static store category list.
func (p Profile) Categories(ctx context.Context) ([]models.Category, error) {
	return p.StoreCategories, nil
}

// ShippingTiers returns the static shipping profile list.
func (p Profile) ShippingTiers(ctx context.Context) ([]string, error) {
	return p.Shipping, nil
}
