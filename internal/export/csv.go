package export

import (
	"bytes"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/drafter/internal/models"
)

// bom marks the feed as UTF-8 for spreadsheet tools.
const bom = "\uFEFF"

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// SavedRows returns one Row per saved item, in session order.
func SavedRows(session *models.Session, profile Profile) []Row {
	var rows []Row
	for _, item := range session.Items {
		if item.Status != models.ItemSaved || item.Analysis == nil || item.Edits == nil {
			continue
		}
		rows = append(rows, Row{
			Item:     item,
			Analysis: item.Analysis,
			Edits:    item.Edits,
			Profile:  &profile,
		})
	}
	return rows
}

// CSV renders the saved items of a session as the listing feed. Every field
// is quoted and rows are separated by a bare "\n".
func CSV(session *models.Session, profile Profile) []byte {
	var buf bytes.Buffer
	buf.WriteString(bom)
	writeRecord(&buf, Header())

	for _, row := range SavedRows(session, profile) {
		record := make([]string, len(Columns))
		for i, c := range Columns {
			record[i] = c.Value(row)
		}
		buf.WriteByte('\n')
		writeRecord(&buf, record)
	}
	return buf.Bytes()
}

func writeRecord(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(quote(f))
	}
}

func quote(v string) string {
	v = lineBreaks.Replace(v)
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// FileName is the download name of the feed for a given day.
func FileName(date time.Time) string {
	return "CD_" + date.Format("20060102") + ".csv"
}
