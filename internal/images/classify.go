// Package images decides which photos of an item are sent for analysis and
// in which order the full set is published.
package images

import (
	"errors"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/lehigh-university-libraries/drafter/internal/models"
)

// Reserved name prefixes for the analysis subset.
const (
	FrontJacketPrefix = "J1_"
	BackJacketPrefix  = "J2_"
	DiscPrefix        = "D1_"
)

// ErrNoAnalyzableImages is returned when a folder has no jacket photo.
var ErrNoAnalyzableImages = errors.New("no analyzable images (J1_/J2_) found")

var groupPattern = regexp.MustCompile(`^([MJD])(\d*)_`)

const trailingGroup = 99

var groupRank = map[string]int{
	"M": 1,
	"J": 2,
	"D": 3,
}

// Group returns the publish priority group of a filename.
func Group(name string) int {
	m := groupPattern.FindStringSubmatch(strings.ToUpper(name))
	if m == nil {
		return trailingGroup
	}
	return groupRank[m[1]]
}

// Less orders two filenames by group, then natural order, then raw bytes.
func Less(a, b string) bool {
	ga, gb := Group(a), Group(b)
	if ga != gb {
		return ga < gb
	}
	if c := naturalCompare(strings.ToUpper(a), strings.ToUpper(b)); c != 0 {
		return c < 0
	}
	return a < b
}

// Sort returns a sorted copy of refs in publish order.
func Sort(refs []models.ImageRef) []models.ImageRef {
	out := append([]models.ImageRef(nil), refs...)
	sort.SliceStable(out, func(i, j int) bool {
		return Less(out[i].Name, out[j].Name)
	})
	return out
}

// SelectForAnalysis picks the jacket and disc photos used for recognition.
// Without a disc photo only the jackets are used; without a jacket photo the
// item cannot be analyzed.
func SelectForAnalysis(refs []models.ImageRef) ([]models.ImageRef, error) {
	var jackets, discs []models.ImageRef
	for _, ref := range refs {
		name := strings.ToUpper(ref.Name)
		switch {
		case strings.HasPrefix(name, FrontJacketPrefix), strings.HasPrefix(name, BackJacketPrefix):
			jackets = append(jackets, ref)
		case strings.HasPrefix(name, DiscPrefix):
			discs = append(discs, ref)
		}
	}
	if len(jackets) == 0 {
		return nil, ErrNoAnalyzableImages
	}
	return Sort(append(jackets, discs...)), nil
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".heic": true,
}

// IsImageName reports whether a filename looks like a photo.
func IsImageName(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}
