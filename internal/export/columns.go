package export

import (
	"sort"
	"strings"

	"github.com/lehigh-university-libraries/drafter/internal/images"
	"github.com/lehigh-university-libraries/drafter/internal/models"
)

// SchemaVersion identifies the column layout below. Bump it when columns change.
const SchemaVersion = "cd-v1"

// Row is one saved item being serialized.
type Row struct {
	Item     *models.Item
	Analysis *models.Analysis
	Edits    *models.UserEdits
	Profile  *Profile
}

// Column is one field of the feed.
type Column struct {
	Name  string
	Value func(Row) string
}

func constant(v string) func(Row) string {
	return func(Row) string { return v }
}

// Columns is the feed layout, in output order.
var Columns = []Column{
	{"Action(CC=Cp1252)", func(r Row) string { return r.Profile.Action }},
	{"CustomLabel", func(r Row) string { return r.Item.Label }},
	{"Category", func(r Row) string { return r.Profile.Category }},
	{"StoreCategory", func(r Row) string { return r.Edits.Category }},
	{"Title", title},
	{"ConditionID", func(r Row) string { return firstNonEmpty(r.Edits.Condition, r.Profile.ConditionID) }},
	{"PicURL", func(r Row) string { return PicURL(r.Item) }},
	{"Description", func(r Row) string { return Description(r.Analysis, r.Edits) }},
	{"Format", func(r Row) string { return r.Profile.Format }},
	{"Duration", func(r Row) string { return r.Profile.Duration }},
	{"StartPrice", func(r Row) string { return r.Edits.Price }},
	{"Quantity", func(r Row) string { return r.Profile.Quantity }},
	{"Location", func(r Row) string { return r.Profile.Location }},
	{"ShippingProfileName", func(r Row) string { return r.Edits.Shipping }},
	{"ReturnProfileName", func(r Row) string { return r.Profile.ReturnProfile }},
	{"PaymentProfileName", func(r Row) string { return r.Profile.PaymentProfile }},
	{"C:Artist", func(r Row) string { return r.Analysis.Artist }},
	{"C:Type", func(r Row) string { return firstNonEmpty(r.Analysis.Type, r.Profile.DefaultType) }},
	{"C:Release Title", title},
	{"C:Genre", func(r Row) string { return r.Analysis.Genre }},
	{"C:Case Type", constant("")},
	{"C:Inlay Condition", constant("")},
	{"C:Edition", func(r Row) string { return Edition(r.Analysis) }},
	{"C:Language", func(r Row) string { return r.Profile.Language }},
	{"UPC", constant("")},
}

// Header returns the column names in order.
func Header() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = c.Name
	}
	return out
}

func title(r Row) string {
	return firstNonEmpty(r.Edits.Title, r.Analysis.Title)
}

// Edition summarizes the edition flags, e.g. "First Edition, Bonus Items".
func Edition(a *models.Analysis) string {
	var parts []string
	if a.IsFirstEdition {
		parts = append(parts, "First Edition")
	}
	if a.HasBonus {
		parts = append(parts, "Bonus Items")
	}
	return strings.Join(parts, ", ")
}

// PicURL joins the published URLs with "|" in image publish order.
func PicURL(item *models.Item) string {
	if len(item.PublishedURLs) != len(item.Images) {
		return strings.Join(item.PublishedURLs, "|")
	}

	type pic struct {
		name, url string
	}
	pics := make([]pic, len(item.Images))
	for i, ref := range item.Images {
		pics[i] = pic{ref.Name, item.PublishedURLs[i]}
	}
	sort.SliceStable(pics, func(i, j int) bool {
		return images.Less(pics[i].name, pics[j].name)
	})

	urls := make([]string, len(pics))
	for i, p := range pics {
		urls[i] = p.url
	}
	return strings.Join(urls, "|")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
