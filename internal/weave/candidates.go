package weave

import (
	"path"
	"strings"
)

// Candidate is one note under consideration for a connection.
type Candidate struct {
	Path string
}

// Title returns the candidate's title form: the basename without extension.
func (c Candidate) Title() string {
	return strings.TrimSuffix(path.Base(c.Path), ".md")
}

// BuildCandidateSet returns every vault note except the source note and any
// note under an excluded folder, preserving the input order.
func BuildCandidateSet(paths []string, sourcePath string, excludedFolders []string) []Candidate {
	out := make([]Candidate, 0, len(paths))
	for _, p := range paths {
		if p == sourcePath {
			continue
		}
		if pathExcluded(p, excludedFolders) {
			continue
		}
		out = append(out, Candidate{Path: p})
	}
	return out
}

// pathExcluded reports whether p sits under (prefix match) or exactly at one
// of the excluded folders.
func pathExcluded(p string, excludedFolders []string) bool {
	for _, folder := range excludedFolders {
		if folder == "" {
			continue
		}
		prefix := strings.TrimSuffix(folder, "/") + "/"
		if strings.HasPrefix(p, prefix) || p == folder {
			return true
		}
	}
	return false
}
