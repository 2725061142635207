package convert

import (
	"archive/zip"
	"path"
	"strings"

	"github.com/arbovm/levenshtein"
)

// zipIndex maps a case-folded base filename (directory and extension
// stripped) to the archive entry carrying it. On collision an entry under
// "images/" wins over one that is not.
type zipIndex map[string]string

func buildZipIndex(r *zip.Reader) zipIndex {
	index := make(zipIndex)
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		key := baseKey(f.Name)
		existing, ok := index[key]
		if !ok {
			index[key] = f.Name
			continue
		}
		if underImages(f.Name) && !underImages(existing) {
			index[key] = f.Name
		}
	}
	return index
}

// resolve finds the archive entry for an annotation-declared image name.
func (idx zipIndex) resolve(annotatedName string) (string, bool) {
	member, ok := idx[baseKey(annotatedName)]
	return member, ok
}

// nearest returns the entry whose base name is closest to the annotated
// name, for the skip warning when resolution fails. Empty when the index
// is empty.
func (idx zipIndex) nearest(annotatedName string) string {
	target := baseKey(annotatedName)
	best := ""
	bestDist := -1
	for key, member := range idx {
		d := levenshtein.Distance(target, key)
		if bestDist < 0 || d < bestDist || (d == bestDist && member < best) {
			best = member
			bestDist = d
		}
	}
	return best
}

func baseKey(name string) string {
	base := path.Base(name)
	return strings.ToLower(strings.TrimSuffix(base, path.Ext(base)))
}

func underImages(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "images/")
}
