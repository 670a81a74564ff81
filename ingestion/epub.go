package ingestion

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/poiesic/versed/core"
)

// EPUBLoader emits one section per spine document, in reading order.
// A section gets a chapter title only when its document is listed in the
// table of contents; documents without text are returned undefined.
type EPUBLoader struct {
	documentID string
	logger     *slog.Logger
}

// NewEPUBLoader creates a loader that stamps documentID on every section.
func NewEPUBLoader(documentID string) *EPUBLoader {
	return &EPUBLoader{
		documentID: documentID,
		logger:     slog.Default().With("component", "epub-loader"),
	}
}

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Manifest []epubItem `xml:"manifest>item"`
	Spine    struct {
		Toc      string `xml:"toc,attr"`
		Itemrefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type epubItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type ncxPoint struct {
	Label   string `xml:"navLabel>text"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Points []ncxPoint `xml:"navPoint"`
}

type ncxDoc struct {
	Points []ncxPoint `xml:"navMap>navPoint"`
}

// Load reads the archive at filePath.
func (l *EPUBLoader) Load(ctx context.Context, filePath string) ([]core.Section, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEPUB, err)
	}
	defer zr.Close()
	return l.read(ctx, &zr.Reader)
}

func (l *EPUBLoader) read(ctx context.Context, zr *zip.Reader) ([]core.Section, error) {
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var container epubContainer
	if err := decodeXML(files, "META-INF/container.xml", &container); err != nil {
		return nil, err
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return nil, fmt.Errorf("%w: container has no rootfile", ErrInvalidEPUB)
	}
	opfPath := container.Rootfiles[0].FullPath

	var pkg epubPackage
	if err := decodeXML(files, opfPath, &pkg); err != nil {
		return nil, err
	}
	opfDir := path.Dir(opfPath)

	items := make(map[string]epubItem, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		items[item.ID] = item
	}

	titles := l.tableOfContents(files, pkg, items, opfDir)

	sections := make([]core.Section, 0, len(pkg.Spine.Itemrefs))
	for _, ref := range pkg.Spine.Itemrefs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item, ok := items[ref.IDRef]
		if !ok {
			l.logger.Warn("spine item missing from manifest", "idref", ref.IDRef)
			continue
		}
		docPath := resolveHref(opfDir, item.Href)
		section := core.Section{
			Metadata: core.Metadata{Source: l.documentID, Chapter: titles[docPath]},
		}

		text, err := extractText(files, docPath)
		if err != nil {
			l.logger.Warn("unreadable spine document", "path", docPath, "err", err)
		}
		if text != "" {
			section.PageContent = text
			section.Defined = true
		}
		sections = append(sections, section)
	}
	return sections, nil
}

// tableOfContents maps archive paths to titles, preferring the EPUB 2 NCX and
// falling back to the EPUB 3 nav document. The first title for a path wins.
func (l *EPUBLoader) tableOfContents(files map[string]*zip.File, pkg epubPackage, items map[string]epubItem, opfDir string) map[string]string {
	titles := make(map[string]string)

	ncxID := pkg.Spine.Toc
	if ncxID == "" {
		for _, item := range pkg.Manifest {
			if item.MediaType == "application/x-dtbncx+xml" {
				ncxID = item.ID
				break
			}
		}
	}
	if item, ok := items[ncxID]; ok {
		ncxPath := resolveHref(opfDir, item.Href)
		var ncx ncxDoc
		if err := decodeXML(files, ncxPath, &ncx); err != nil {
			l.logger.Warn("unreadable ncx", "path", ncxPath, "err", err)
		} else {
			addNCXTitles(titles, ncx.Points, path.Dir(ncxPath))
		}
	}
	if len(titles) > 0 {
		return titles
	}

	for _, item := range pkg.Manifest {
		if !strings.Contains(item.Properties, "nav") {
			continue
		}
		navPath := resolveHref(opfDir, item.Href)
		doc, err := openHTML(files, navPath)
		if err != nil {
			l.logger.Warn("unreadable nav document", "path", navPath, "err", err)
			break
		}
		navDir := path.Dir(navPath)
		doc.Find("nav").EachWithBreak(func(_ int, nav *goquery.Selection) bool {
			if kind, _ := nav.Attr("epub:type"); kind != "toc" {
				return true
			}
			nav.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				href, _ := a.Attr("href")
				addTitle(titles, resolveHref(navDir, href), a.Text())
			})
			return false
		})
		break
	}
	return titles
}

func addNCXTitles(titles map[string]string, points []ncxPoint, dir string) {
	for _, p := range points {
		addTitle(titles, resolveHref(dir, p.Content.Src), p.Label)
		addNCXTitles(titles, p.Points, dir)
	}
}

func addTitle(titles map[string]string, docPath, title string) {
	title = collapseSpaces(title)
	if title == "" {
		return
	}
	if _, exists := titles[docPath]; !exists {
		titles[docPath] = title
	}
}

// resolveHref joins a relative href onto dir and drops any fragment.
func resolveHref(dir, href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	if dir == "." || dir == "" {
		return path.Clean(href)
	}
	return path.Join(dir, href)
}

func openEntry(files map[string]*zip.File, name string) (io.ReadCloser, error) {
	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidEPUB, name)
	}
	return f.Open()
}

func decodeXML(files map[string]*zip.File, name string, v any) error {
	rc, err := openEntry(files, name)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := xml.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidEPUB, name, err)
	}
	return nil
}

func openHTML(files map[string]*zip.File, name string) (*goquery.Document, error) {
	rc, err := openEntry(files, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return goquery.NewDocumentFromReader(rc)
}

var (
	blockElements = map[string]bool{
		"p": true, "div": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"li": true, "tr": true, "blockquote": true, "section": true, "article": true, "pre": true,
	}
	spaceRun = regexp.MustCompile(`[ \t\r\f\v\x{00a0}]+`)
)

// extractText renders an XHTML document as plain text with one line per block.
func extractText(files map[string]*zip.File, name string) (string, error) {
	doc, err := openHTML(files, name)
	if err != nil {
		return "", err
	}
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var sb strings.Builder
	writeBlocks(root, &sb)

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		if line = collapseSpaces(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func writeBlocks(sel *goquery.Selection, sb *strings.Builder) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		switch name := goquery.NodeName(s); name {
		case "#text":
			sb.WriteString(s.Text())
		case "script", "style", "head", "#comment":
		case "br":
			sb.WriteString("\n")
		default:
			if blockElements[name] {
				sb.WriteString("\n")
			}
			writeBlocks(s, sb)
			if blockElements[name] {
				sb.WriteString("\n")
			}
		}
	})
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(strings.ReplaceAll(s, "\n", " "), " "))
}
