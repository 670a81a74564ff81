package ingestion

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/poiesic/versed/core"
)

// DefaultDocumentID is the source recorded on chunks of the bundled book.
const DefaultDocumentID = "./God TalkswithArjuna.epub"

// Loader parses a source document into ordered raw sections.
type Loader interface {
	Load(ctx context.Context, path string) ([]core.Section, error)
}

// LoaderFor picks a loader by file extension. documentID becomes the Source
// of every section; an empty documentID uses the path.
func LoaderFor(path, documentID string) (Loader, error) {
	if documentID == "" {
		documentID = path
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".epub":
		return NewEPUBLoader(documentID), nil
	case ".txt", ".md", ".markdown":
		return NewTextLoader(documentID), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

var (
	markdownHeading = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*\s*$`)
	chapterHeading  = regexp.MustCompile(`^(?i:chapter)\s+\S+.*$`)
)

// TextLoader reads plain text or markdown. Heading lines ("# Title" or
// "Chapter N ...") start a new section named after the heading.
type TextLoader struct {
	documentID string
}

// NewTextLoader creates a loader that stamps documentID on every section.
func NewTextLoader(documentID string) *TextLoader {
	return &TextLoader{documentID: documentID}
}

// Load splits the file at heading lines. Text before the first heading
// becomes a section without a chapter.
func (l *TextLoader) Load(ctx context.Context, path string) ([]core.Section, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		sections []core.Section
		chapter  string
		body     strings.Builder
		started  bool
	)
	flush := func() {
		text := strings.TrimSpace(body.String())
		if started || text != "" {
			sections = append(sections, core.Section{
				PageContent: text,
				Defined:     text != "",
				Metadata:    core.Metadata{Source: l.documentID, Chapter: chapter},
			})
		}
		body.Reset()
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if title, ok := headingTitle(trimmed); ok {
			flush()
			chapter = title
			started = true
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return sections, nil
}

func headingTitle(line string) (string, bool) {
	if m := markdownHeading.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	if chapterHeading.MatchString(line) {
		return line, true
	}
	return "", false
}
