package drive

import (
	"context"
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/drafter/internal/models"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	DefaultCategoryRange = "Category-CD!A2:B"
	DefaultShippingRange = "送料管理!B2:B"
)

// Lookups reads the store category and shipping lists from a spreadsheet.
type Lookups struct {
	sheets        *sheets.Service
	spreadsheetID string
	CategoryRange string
	ShippingRange string
}

func NewLookups(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Lookups, error) {
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return &Lookups{
		sheets:        srv,
		spreadsheetID: spreadsheetID,
		CategoryRange: DefaultCategoryRange,
		ShippingRange: DefaultShippingRange,
	}, nil
}

// NewLookupsFromCredentials authenticates with a read-only service account scope.
func NewLookupsFromCredentials(ctx context.Context, spreadsheetID, credentialsFile string) (*Lookups, error) {
	return NewLookups(ctx, spreadsheetID,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope),
	)
}

// Categories returns rows where both the name and ID columns are filled.
func (l *Lookups) Categories(ctx context.Context) ([]models.Category, error) {
	rows, err := l.values(ctx, l.CategoryRange)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve categories: %w", err)
	}

	out := []models.Category{}
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		name, id := cell(row[0]), cell(row[1])
		if name == "" || id == "" {
			continue
		}
		out = append(out, models.Category{Name: name, ID: id})
	}
	return out, nil
}

// ShippingTiers returns the non-empty cells of the shipping range.
func (l *Lookups) ShippingTiers(ctx context.Context) ([]string, error) {
	rows, err := l.values(ctx, l.ShippingRange)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve shipping costs: %w", err)
	}

	out := []string{}
	for _, row := range rows {
		for _, v := range row {
			if s := cell(v); s != "" {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (l *Lookups) values(ctx context.Context, rng string) ([][]interface{}, error) {
	res, err := l.sheets.Spreadsheets.Values.Get(l.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return res.Values, nil
}

func cell(v interface{}) string {
	return strings.TrimSpace(fmt.Sprint(v))
}
