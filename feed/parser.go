package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

var (
	utf8BOM        = []byte{0xEF, 0xBB, 0xBF}
	utf32BEBOM     = []byte{0x00, 0x00, 0xFE, 0xFF}
	utf32LEBOM     = []byte{0xFF, 0xFE, 0x00, 0x00}
	utf16BEBOM     = []byte{0xFE, 0xFF}
	utf16LEBOM     = []byte{0xFF, 0xFE}
	prologEncoding = regexp.MustCompile(`^(\s*<\?xml\b[^>]*?\bencoding\s*=\s*["'])([^"']*)(["'])`)
)

// Parser turns raw feed bytes into a classified Result. It is safe for concurrent use;
// a fresh gofeed.Parser is built per call because gofeed keeps per-parse state.
type Parser struct{}

// NewParser creates a new feed parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes body, checks it is well-formed XML and hands it to gofeed.
// contentType is the HTTP Content-Type header; pass "" when unknown.
func (p *Parser) Parse(body []byte, contentType string) *Result {
	var deviations []*ParseError

	mediaType, httpCharset := splitContentType(contentType)
	if contentType != "" && !isXMLMediaType(mediaType) {
		deviations = append(deviations, &ParseError{
			Category: CategoryNonXMLContentType,
			Message:  fmt.Sprintf("%s is not an XML media type", mediaType),
		})
	}

	decoded, encodingDeviations, ok := toUTF8(bytes.TrimPrefix(body, utf8BOM), httpCharset)
	deviations = append(deviations, encodingDeviations...)
	if !ok {
		return classify(nil, deviations)
	}

	if dev := checkWellFormed(decoded); dev != nil {
		return classify(nil, append(deviations, dev))
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(decoded))
	if err != nil {
		return classify(nil, append(deviations, feedParseError(err)))
	}

	return classify(newDocument(parsed), deviations)
}

func splitContentType(contentType string) (string, string) {
	if strings.TrimSpace(contentType) == "" {
		return "", ""
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])), ""
	}
	return mediaType, params["charset"]
}

func isXMLMediaType(mediaType string) bool {
	switch mediaType {
	case "application/xml", "text/xml", "application/xml-dtd",
		"application/xml-external-parsed-entity", "text/xml-external-parsed-entity":
		return true
	}
	return strings.HasSuffix(mediaType, "+xml")
}

// toUTF8 transcodes body to UTF-8 and rewrites the prolog to say so. The HTTP
// charset wins over the prolog. ok is false when the body could not be decoded.
func toUTF8(body []byte, httpCharset string) (decoded []byte, deviations []*ParseError, ok bool) {
	if enc, name := bomEncoding(body); enc != nil {
		return fromBOM(body, enc, name, httpCharset)
	}

	xmlEncoding := ""
	if m := prologEncoding.FindSubmatch(body); m != nil {
		xmlEncoding = string(m[2])
	}

	declared := xmlEncoding
	if httpCharset != "" {
		if xmlEncoding != "" && !sameEncoding(httpCharset, xmlEncoding) {
			deviations = append(deviations, &ParseError{
				Category: CategoryCharacterEncodingOverride,
				Message:  fmt.Sprintf("document declared as %s, but parsed as %s", xmlEncoding, httpCharset),
			})
		}
		declared = httpCharset
	}
	if declared == "" {
		return body, deviations, true
	}

	enc, name := charset.Lookup(declared)
	if enc == nil {
		deviations = append(deviations, &ParseError{
			Category: CategoryCharacterEncodingUnknown,
			Message:  fmt.Sprintf("document encoding %s is unknown, parsed as utf-8", declared),
		})
		return rewriteProlog(body), deviations, true
	}

	if name != "utf-8" {
		out, err := enc.NewDecoder().Bytes(body)
		if err != nil {
			deviations = append(deviations, &ParseError{
				Category: CategoryUndecodableContent,
				Message:  fmt.Sprintf("document could not be decoded as %s: %v", name, err),
			})
			return nil, deviations, false
		}
		body = out
	}

	return rewriteProlog(body), deviations, true
}

// bomEncoding reports the UTF-16 or UTF-32 encoding announced by a byte order mark.
// UTF-32 is checked first since its little-endian mark starts with the UTF-16 one.
func bomEncoding(body []byte) (encoding.Encoding, string) {
	switch {
	case bytes.HasPrefix(body, utf32BEBOM):
		return utf32.UTF32(utf32.BigEndian, utf32.ExpectBOM), "utf-32be"
	case bytes.HasPrefix(body, utf32LEBOM):
		return utf32.UTF32(utf32.LittleEndian, utf32.ExpectBOM), "utf-32le"
	case bytes.HasPrefix(body, utf16BEBOM):
		return unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), "utf-16be"
	case bytes.HasPrefix(body, utf16LEBOM):
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), "utf-16le"
	}
	return nil, ""
}

// fromBOM decodes a body whose byte order mark decides the encoding. The mark
// wins over both the HTTP charset and the prolog.
func fromBOM(body []byte, enc encoding.Encoding, name, httpCharset string) ([]byte, []*ParseError, bool) {
	var deviations []*ParseError
	if httpCharset != "" && !sameEncoding(httpCharset, name) {
		deviations = append(deviations, &ParseError{
			Category: CategoryCharacterEncodingOverride,
			Message:  fmt.Sprintf("document declared as %s, but parsed as %s", httpCharset, name),
		})
	}

	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		deviations = append(deviations, &ParseError{
			Category: CategoryUndecodableContent,
			Message:  fmt.Sprintf("document could not be decoded as %s: %v", name, err),
		})
		return nil, deviations, false
	}
	return rewriteProlog(out), deviations, true
}

func sameEncoding(a, b string) bool {
	if strings.EqualFold(a, b) {
		return true
	}
	_, nameA := charset.Lookup(a)
	_, nameB := charset.Lookup(b)
	return nameA != "" && nameA == nameB
}

func rewriteProlog(body []byte) []byte {
	return prologEncoding.ReplaceAll(body, []byte("${1}UTF-8${3}"))
}

// checkWellFormed runs a strict XML pass so syntax errors carry the decoder's
// message and line number.
func checkWellFormed(body []byte) *ParseError {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.Strict = true
	decoder.CharsetReader = charset.NewReaderLabel

	sawRoot := false
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			if !sawRoot {
				line, _ := decoder.InputPos()
				return &ParseError{Category: CategoryXMLSyntax, Message: "no element found", Line: line}
			}
			return nil
		}
		if err != nil {
			var syntaxErr *xml.SyntaxError
			if errors.As(err, &syntaxErr) {
				return &ParseError{Category: CategoryXMLSyntax, Message: syntaxErr.Msg, Line: syntaxErr.Line}
			}
			return &ParseError{Category: CategoryUndecodableContent, Message: err.Error()}
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawRoot = true
		}
	}
}

func feedParseError(err error) *ParseError {
	var syntaxErr *xml.SyntaxError
	switch {
	case errors.Is(err, gofeed.ErrFeedTypeNotDetected):
		return &ParseError{Category: CategoryUndetectedFeedType, Message: err.Error()}
	case errors.As(err, &syntaxErr):
		return &ParseError{Category: CategoryXMLSyntax, Message: syntaxErr.Msg, Line: syntaxErr.Line}
	default:
		return &ParseError{Category: CategoryMalformedFeed, Message: err.Error()}
	}
}
