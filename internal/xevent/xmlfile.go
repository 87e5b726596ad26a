package xevent

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// FileSource reads exported XML event traces matching a glob.
type FileSource struct {
	Pattern PatternProvider
}

func NewFileSource(pattern PatternProvider) *FileSource {
	return &FileSource{Pattern: pattern}
}

type rawEvent struct {
	Name      string `xml:"name,attr"`
	Timestamp string `xml:"timestamp,attr"`
	Inner     []byte `xml:",innerxml"`
}

func (s *FileSource) Read(ctx context.Context, fn func(Event) error) error {
	pattern, err := s.Pattern.TracePattern(ctx)
	if err != nil {
		return err
	}

	files, err := filepath.Glob(pattern)
	if err != nil {
		return &SourceReadError{Pattern: pattern, Err: err}
	}
	if len(files) == 0 {
		return &SourceReadError{Pattern: pattern, Err: errors.New("нет файлов, соответствующих шаблону")}
	}
	sort.Strings(files)

	for _, file := range files {
		if err := s.readFile(ctx, file, fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileSource) readFile(ctx context.Context, fileName string, fn func(Event) error) error {
	file, err := os.Open(fileName)
	if err != nil {
		return &SourceReadError{File: fileName, Err: err}
	}
	defer file.Close()

	decoder := newDecoder(file)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		token, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &SourceReadError{File: fileName, Err: errors.Wrap(err, "разбор XML")}
		}

		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "event" {
			continue
		}

		var raw rawEvent
		if err := decoder.DecodeElement(&raw, &start); err != nil {
			return &SourceReadError{File: fileName, Err: errors.Wrap(err, "разбор события")}
		}

		if err := fn(Event{
			Name:      raw.Name,
			Timestamp: parseTimestamp(raw.Timestamp),
			Payload:   raw.payload(),
		}); err != nil {
			return err
		}
	}
}

// newDecoder transcodes UTF-16 by its BOM before the XML declaration is read.
// Other declared charsets (windows-1251 and the like) go through the label.
func newDecoder(r io.Reader) *xml.Decoder {
	decoder := xml.NewDecoder(transform.NewReader(r, unicode.BOMOverride(transform.Nop)))
	decoder.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		if strings.HasPrefix(strings.ToLower(label), "utf-16") {
			return input, nil
		}
		return charset.NewReaderLabel(label, input)
	}
	return decoder
}

func (r *rawEvent) payload() []byte {
	var buf bytes.Buffer
	buf.WriteString(`<event name="`)
	xml.EscapeText(&buf, []byte(r.Name))
	buf.WriteString(`" timestamp="`)
	xml.EscapeText(&buf, []byte(r.Timestamp))
	buf.WriteString(`">`)
	buf.Write(r.Inner)
	buf.WriteString(`</event>`)
	return buf.Bytes()
}
