package export

import (
	"bytes"
	"html/template"
	"log/slog"
	"regexp"
	"strings"

	"github.com/lehigh-university-libraries/drafter/internal/models"
)

var descriptionTemplate = template.Must(template.New("description").Funcs(template.FuncMap{
	"yesNo": yesNo,
}).Parse(`
<div style="font-family: Arial, sans-serif; max-width: 900px; margin: auto;">
  <h1 style="font-size: 24px; border-bottom: 2px solid #ccc; padding-bottom: 10px;">
    {{.Title}}
  </h1>
  <p style="margin: 16px 0;">
    Our CDs are brand new items. Please check the details below.
  </p>
  {{if .Comment}}<p style="margin: 16px 0;">{{.Comment}}</p>{{end}}
  <table style="width: 100%; border-collapse: collapse; margin-top: 20px;">
    <tbody>
      <tr>
        <td style="vertical-align: top; padding-right: 20px;">
          <h2 style="font-size: 20px;">Key Features</h2>
          <ul style="list-style: none; padding: 0; line-height: 1.8;">
            <li>- <strong>Artist:</strong> {{.Artist}}</li>
            <li>- <strong>Format:</strong> {{.Format}}</li><br>
            <li>- <strong>Condition:</strong></li>
            <li>&nbsp;&nbsp;• Disc Condition: new</li>
            <li>&nbsp;&nbsp;• Case Condition: new</li>
            <li>&nbsp;&nbsp;• Booklet/Insert: new</li>
            <li>&nbsp;&nbsp;• OBI Strip: new</li>
          </ul>
        </td>
        <td style="width: 300px; vertical-align: top;">
          <h2 style="font-size: 20px;">Edition Details</h2>
          <ul style="list-style: none; padding: 0; line-height: 1.8;">
            <li>- <strong>First Edition:</strong> {{yesNo .FirstEdition}}</li>
            <li>- <strong>Bonus Items:</strong> {{yesNo .Bonus}}</li>
            {{if .Notes}}<li>- <strong>Notes:</strong> {{.Notes}}</li>{{end}}
          </ul>
        </td>
      </tr>
    </tbody>
  </table>
  <h2 style="font-size: 20px; border-bottom: 2px solid #ccc; padding-bottom: 10px; margin-top: 40px;">Tracklist</h2>
  <div style="column-count: 2; column-gap: 40px;">
    <ol style="padding-left: 20px; margin: 0;">
      {{range .Tracklist}}<li style="line-height: 1.8;">{{.}}</li>{{else}}No tracklist available.{{end}}
    </ol>
  </div>
  <h2 style="font-size: 20px; border-bottom: 2px solid #ccc; padding-bottom: 10px; margin-top: 40px;">Shipping</h2>
  <p>Shipping by FedEx, DHL, or Japan Post.</p>
  <h2 style="font-size: 20px; border-bottom: 2px solid #ccc; padding-bottom: 10px; margin-top: 40px;">International Buyers - Please Note:</h2>
  <p>Import duties, taxes and charges are not included in the item price or shipping charges and are the buyer’s responsibility.</p>
</div>`))

var whitespaceRun = regexp.MustCompile(`\s\s+`)

type descriptionData struct {
	Title        string
	Comment      string
	Artist       string
	Format       string
	FirstEdition bool
	Bonus        bool
	Notes        string
	Tracklist    []string
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// Description renders the listing body as a single line of HTML.
func Description(a *models.Analysis, e *models.UserEdits) string {
	data := descriptionData{
		Title:        firstNonEmpty(e.Title, a.Title),
		Comment:      strings.TrimSpace(e.Comment),
		Artist:       firstNonEmpty(a.Artist, "Not specified"),
		Format:       firstNonEmpty(a.Format, "CD"),
		FirstEdition: a.IsFirstEdition,
		Bonus:        a.HasBonus,
		Notes:        a.EditionNotes,
		Tracklist:    a.Tracklist,
	}

	var buf bytes.Buffer
	if err := descriptionTemplate.Execute(&buf, data); err != nil {
		slog.Error("Unable to render description", "title", data.Title, "err", err)
		return ""
	}
	return collapse(buf.String())
}

func collapse(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(s)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
