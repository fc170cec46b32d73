package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/drafter/internal/models"
)

// ErrMalformedResponse is returned when the oracle answer cannot be used.
var ErrMalformedResponse = errors.New("malformed analysis response")

// wireAnalysis accepts the loosely typed JSON the models return.
type wireAnalysis struct {
	Title          flexString `json:"Title"`
	Artist         flexString `json:"Artist"`
	Type           flexString `json:"Type"`
	Genre          flexString `json:"Genre"`
	Style          flexString `json:"Style"`
	RecordLabel    flexString `json:"RecordLabel"`
	CatalogNumber  flexString `json:"CatalogNumber"`
	Format         flexString `json:"Format"`
	Country        flexString `json:"Country"`
	Released       flexString `json:"Released"`
	Tracklist      flexList   `json:"Tracklist"`
	IsFirstEdition flexBool   `json:"isFirstEdition"`
	HasBonus       flexBool   `json:"hasBonus"`
	EditionNotes   flexString `json:"editionNotes"`
	DiscogsURL     flexString `json:"DiscogsUrl"`
	MPN            flexString `json:"MPN"`
}

// ParseResponse converts a raw model answer into an Analysis.
func ParseResponse(response string) (*models.Analysis, error) {
	body := extractJSONObject(response)
	if body == "" {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}

	var w wireAnalysis
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	a := &models.Analysis{
		Title:          string(w.Title),
		Artist:         string(w.Artist),
		Type:           string(w.Type),
		Genre:          string(w.Genre),
		Style:          string(w.Style),
		RecordLabel:    string(w.RecordLabel),
		CatalogNumber:  string(w.CatalogNumber),
		Format:         string(w.Format),
		Country:        string(w.Country),
		Released:       string(w.Released),
		Tracklist:      []string(w.Tracklist),
		IsFirstEdition: bool(w.IsFirstEdition),
		HasBonus:       bool(w.HasBonus),
		EditionNotes:   string(w.EditionNotes),
		DiscogsURL:     string(w.DiscogsURL),
		MPN:            string(w.MPN),
	}
	if a.MPN == "" {
		a.MPN = a.CatalogNumber
	}
	if a.Title == "" && a.Artist == "" {
		return nil, fmt.Errorf("%w: neither title nor artist identified", ErrMalformedResponse)
	}
	return a, nil
}

// extractJSONObject strips markdown fences and any prose around the outermost object.
func extractJSONObject(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end < start {
		return ""
	}
	return response[start : end+1]
}

type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*f = ""
	case string:
		*f = flexString(strings.TrimSpace(t))
	case float64:
		*f = flexString(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		*f = flexString(strconv.FormatBool(t))
	default:
		return fmt.Errorf("unexpected value %s", string(data))
	}
	return nil
}

type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*f = flexBool(t)
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1":
			*f = true
		default:
			*f = false
		}
	case float64:
		*f = t != 0
	default:
		*f = false
	}
	return nil
}

type flexList []string

var (
	trackSplit  = regexp.MustCompile(`\r?\n|,\s*`)
	trackNumber = regexp.MustCompile(`^\d+[.)]\s*`)
)

// UnmarshalJSON accepts an array of tracks or a "1. A, 2. B" string.
func (f *flexList) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	var raw []string
	switch t := v.(type) {
	case nil:
	case []interface{}:
		for _, e := range t {
			if s, ok := e.(string); ok {
				raw = append(raw, s)
			} else if e != nil {
				raw = append(raw, fmt.Sprint(e))
			}
		}
	case string:
		raw = splitTracks(t)
	default:
		return fmt.Errorf("unexpected tracklist %s", string(data))
	}

	out := make([]string, 0, len(raw))
	for _, track := range raw {
		track = strings.TrimSpace(trackNumber.ReplaceAllString(strings.TrimSpace(track), ""))
		if track != "" {
			out = append(out, track)
		}
	}
	*f = out
	return nil
}

// splitTracks splits a delimited tracklist, keeping commas that belong to a title.
func splitTracks(s string) []string {
	parts := trackSplit.Split(s, -1)
	numbered := false
	for _, p := range parts {
		if trackNumber.MatchString(strings.TrimSpace(p)) {
			numbered = true
			break
		}
	}
	if !numbered {
		return parts
	}

	var out []string
	for _, p := range parts {
		if len(out) > 0 && !trackNumber.MatchString(strings.TrimSpace(p)) {
			out[len(out)-1] += ", " + strings.TrimSpace(p)
			continue
		}
		out = append(out, p)
	}
	return out
}
