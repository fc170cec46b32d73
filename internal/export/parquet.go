package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/lehigh-university-libraries/drafter/internal/models"
	"github.com/parquet-go/parquet-go"
)

// ArchiveRow is the bookkeeping record kept for every saved item.
type ArchiveRow struct {
	SchemaVersion string   `parquet:"schema_version"`
	SessionID     string   `parquet:"session_id"`
	Label         string   `parquet:"label"`
	Title         string   `parquet:"title"`
	Artist        string   `parquet:"artist"`
	CatalogNumber string   `parquet:"catalog_number"`
	Price         string   `parquet:"price"`
	Shipping      string   `parquet:"shipping"`
	PicURLs       []string `parquet:"pic_urls,list"`
	Folder        string   `parquet:"folder"`
}

// Archive converts the saved items of a session to archive rows.
func Archive(session *models.Session) []ArchiveRow {
	var out []ArchiveRow
	for _, row := range SavedRows(session, DefaultProfile()) {
		pics := PicURL(row.Item)
		var urls []string
		if pics != "" {
			urls = strings.Split(pics, "|")
		}
		out = append(out, ArchiveRow{
			SchemaVersion: SchemaVersion,
			SessionID:     session.ID,
			Label:         row.Item.Label,
			Title:         title(row),
			Artist:        row.Analysis.Artist,
			CatalogNumber: row.Analysis.CatalogNumber,
			Price:         row.Edits.Price,
			Shipping:      row.Edits.Shipping,
			PicURLs:       urls,
			Folder:        row.Item.FolderName,
		})
	}
	return out
}

// WriteParquet writes the archive rows of a session to w.
func WriteParquet(w io.Writer, session *models.Session) error {
	rows := Archive(session)

	writer := parquet.NewGenericWriter[ArchiveRow](w)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return fmt.Errorf("failed to write archive rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	return nil
}
