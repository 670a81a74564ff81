package ingestion

import "github.com/poiesic/versed/core"

// PropagateMetadata gives every section without a chapter the nearest
// preceding explicit chapter, and stamps documentID as its source.
// Sections before the first chapter are left untouched. The input is not
// modified, and applying the function to its own output changes nothing.
func PropagateMetadata(sections []core.Section, documentID string) []core.Section {
	out := make([]core.Section, len(sections))
	copy(out, sections)

	last := ""
	for i := range out {
		switch {
		case out[i].Metadata.Chapter != "":
			last = out[i].Metadata.Chapter
		case last != "":
			out[i].Metadata.Chapter = last
			out[i].Metadata.Source = documentID
		}
	}
	return out
}
