package jats

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const articleTag = "article"

// ParseError reports a payload that is not well-formed XML. Line is zero when
// the position is unknown.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed XML at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("malformed XML: %v", e.Err)
}

func (e *ParseError) Cause() error  { return e.Err }
func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(err error) *ParseError {
	pe := &ParseError{Err: err}
	var se *xml.SyntaxError
	if errors.As(err, &se) {
		pe.Line = se.Line
	}
	return pe
}

// Parse extracts the first article of an XML payload. The encoding declared
// by the document, or signalled by a byte order mark, is honoured.
//
// It returns a nil record and a nil error when the payload holds no article
// element, and a *ParseError when the payload is not well-formed.
func Parse(payload []byte, pt Passthrough) (*Record, error) {
	text, err := toUTF8(payload)
	if err != nil {
		return nil, err
	}
	return parseUTF8(text, pt)
}

// ParseString is Parse for input that is already decoded. Any encoding
// declaration in the prolog is ignored.
func ParseString(payload string, pt Passthrough) (*Record, error) {
	return parseUTF8([]byte(payload), pt)
}

// ParseValue dispatches on the dynamic type of payload. Values that are
// neither bytes nor strings are converted with their string form.
func ParseValue(payload interface{}, pt Passthrough) (*Record, error) {
	switch v := payload.(type) {
	case []byte:
		return Parse(v, pt)
	case string:
		return ParseString(v, pt)
	case fmt.Stringer:
		return ParseString(v.String(), pt)
	default:
		return ParseString(fmt.Sprint(v), pt)
	}
}

// Extract runs every resolver against an article element.
func Extract(article *etree.Element) Article {
	return Article{
		ArticleIdentity: ResolveIdentity(article),
		ArticleDates:    ResolveDates(article),
		ArticleContent:  ResolveContent(article),
		Keywords:        ResolveKeywords(article),
		Authors:         ResolveAuthors(article),
		Funding:         ResolveFunding(article),
	}
}

var (
	entityDecl = regexp.MustCompile(`<!ENTITY\s+([\pL_:][\pL\pN._:-]*)\s+(?:"([^"]*)"|'([^']*)')\s*>`)
	charRef    = regexp.MustCompile(`&#(x[0-9A-Fa-f]+|[0-9]+);`)
)

// internalEntities returns the general entities declared in the internal
// subset of a DOCTYPE. External and parameter entities are ignored.
func internalEntities(doctype []byte) map[string]string {
	var entities map[string]string
	for _, m := range entityDecl.FindAllSubmatch(doctype, -1) {
		if entities == nil {
			entities = map[string]string{}
		}
		name := string(m[1])
		if _, ok := entities[name]; ok {
			// The first declaration is binding.
			continue
		}
		value := m[2]
		if value == nil {
			value = m[3]
		}
		entities[name] = charRef.ReplaceAllStringFunc(string(value), expandCharRef)
	}
	return entities
}

func expandCharRef(ref string) string {
	digits, base := ref[2:len(ref)-1], 10
	if digits[0] == 'x' {
		digits, base = digits[1:], 16
	}
	n, err := strconv.ParseInt(digits, base, 32)
	if err != nil || !utf8.ValidRune(rune(n)) {
		return ref
	}
	return string(rune(n))
}

// parseUTF8 tokenizes the whole document but only materializes the subtree
// of the first article element. Everything else is discarded as soon as it
// has been checked for well-formedness.
func parseUTF8(payload []byte, pt Passthrough) (*Record, error) {
	dec := xml.NewDecoder(bytes.NewReader(payload))
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }

	var (
		fragment []byte
		entities map[string]string
		depth    int
		roots    int
	)
	for {
		start := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, newParseError(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					return nil, newParseError(errors.New("extra content after the document element"))
				}
			}
			if fragment == nil && t.Name.Local == articleTag {
				if err := dec.Skip(); err != nil {
					return nil, newParseError(err)
				}
				fragment = payload[start:dec.InputOffset()]
				continue
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.Directive:
			if roots == 0 && bytes.HasPrefix(bytes.TrimSpace(t), []byte("DOCTYPE")) {
				entities = internalEntities(t)
				dec.Entity = entities
			}
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return nil, newParseError(errors.New("text outside the document element"))
			}
		}
	}
	if roots == 0 {
		return nil, newParseError(errors.New("document is empty"))
	}
	if fragment == nil {
		return nil, nil
	}

	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true
	doc.ReadSettings.Entity = entities
	if err := doc.ReadFromBytes(fragment); err != nil {
		return nil, newParseError(err)
	}
	root := doc.Root()
	if root == nil {
		return nil, newParseError(errors.New("article element could not be read back"))
	}

	return &Record{
		Article:           Extract(root),
		IsRetracted:       cast.ToBool(pt.Manifest["is_retracted"]),
		ManifestMetadata:  pt.Manifest,
		IngestionMetadata: pt.Ingestion,
	}, nil
}

var encodingDecl = regexp.MustCompile(`^<\?xml[^>]*?\sencoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)

// toUTF8 transcodes payload to UTF-8. A byte order mark takes precedence
// over the encoding declared in the prolog.
func toUTF8(payload []byte) ([]byte, error) {
	if hasBOM(payload) {
		out, _, err := transform.Bytes(unicode.BOMOverride(encoding.Nop.NewDecoder()), payload)
		if err != nil {
			return nil, newParseError(errors.Wrap(err, "decoding byte order mark"))
		}
		return out, nil
	}

	m := encodingDecl.FindSubmatch(payload)
	if m == nil {
		return payload, nil
	}
	label := strings.ToLower(string(m[1]))
	switch label {
	case "utf-8", "utf8", "us-ascii", "ascii":
		return payload, nil
	}

	enc, err := lookupEncoding(label)
	if err != nil {
		return nil, newParseError(err)
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), payload)
	if err != nil {
		return nil, newParseError(errors.Wrapf(err, "decoding %s", label))
	}
	return out, nil
}

func lookupEncoding(label string) (encoding.Encoding, error) {
	if enc, err := ianaindex.IANA.Encoding(label); err == nil && enc != nil {
		return enc, nil
	}
	if enc, err := htmlindex.Get(label); err == nil && enc != nil {
		return enc, nil
	}
	return nil, errors.Errorf("unsupported encoding %q", label)
}

func hasBOM(b []byte) bool {
	return bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(b, []byte{0xFE, 0xFF}) ||
		bytes.HasPrefix(b, []byte{0xFF, 0xFE})
}
