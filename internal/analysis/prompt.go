package analysis

import (
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/drafter/internal/models"
)

const basePrompt = `You are a professional CD appraiser.
From the provided images of the CD jacket, obi, and disc, identify exactly one specific release by referencing the Discogs database.
Then output every field in English using the JSON format below. If the original data is in another language, you MUST translate it to English.

- Title: The official title of the album or single, translated into English.
- Artist: The artist's name in Roman characters.
- Type: "Album" or "Single".
- Genre: The music genre.
- Style: A more detailed music style.
- RecordLabel: The name of the record label.
- CatalogNumber: The catalog number.
- Format: Detailed format such as "CD, Album, Reissue".
- Country: The country where it was released.
- Released: The release year (A.D.).
- Tracklist: An array of track names in order, translated into English.
- isFirstEdition: true if this is a first press limited edition, otherwise false.
- hasBonus: true if it comes with bonuses (bonus tracks, stickers, etc.), otherwise false.
- editionNotes: Supplementary information about the first edition or bonuses.
- DiscogsUrl: The exact Discogs URL referenced during identification.
- MPN: The same value as CatalogNumber.

OUTPUT FORMAT:
Respond with ONLY a JSON object:

{
  "Title": "...",
  "Artist": "...",
  "Type": "...",
  "Genre": "...",
  "Style": "...",
  "RecordLabel": "...",
  "CatalogNumber": "...",
  "Format": "...",
  "Country": "...",
  "Released": "...",
  "Tracklist": ["..."],
  "isFirstEdition": false,
  "hasBonus": false,
  "editionNotes": "...",
  "DiscogsUrl": "...",
  "MPN": "..."
}

Do not include any other text.`

func buildPrompt(exclude *models.Analysis) string {
	if exclude == nil {
		return basePrompt
	}

	var ref []string
	if exclude.DiscogsURL != "" {
		ref = append(ref, "Discogs URL "+exclude.DiscogsURL)
	}
	if exclude.CatalogNumber != "" {
		ref = append(ref, "catalog number "+exclude.CatalogNumber)
	}
	if exclude.Title != "" || exclude.Artist != "" {
		ref = append(ref, fmt.Sprintf("%q by %q", exclude.Title, exclude.Artist))
	}
	if len(ref) == 0 {
		return basePrompt
	}

	return basePrompt + `

A previous identification of these images was rejected by the operator: ` + strings.Join(ref, ", ") + `.
Do not return that release again. Look closely at the obi, matrix and catalog number to find the correct pressing.`
}
