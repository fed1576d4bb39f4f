package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const genericContentType = "application/octet-stream"

// SelectedFile is the resume chosen for submission
type SelectedFile struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ContentType  string `json:"contentType"` // declared MIME type, sent as the part's Content-Type
	// DetectedType is the sniffed MIME type, used for display when the
	// declared type is the generic application/octet-stream.
	DetectedType string `json:"detectedType,omitempty"`
	Content      []byte `json:"-"`
}

// Reader returns a fresh reader over the file content
func (f SelectedFile) Reader() io.Reader {
	return bytes.NewReader(f.Content)
}

// Summary renders "<KB> KB - <SUBTYPE>", e.g. "12.50 KB - PDF"
func (f SelectedFile) Summary() string {
	return fmt.Sprintf("%.2f KB - %s", float64(f.Size)/1024, f.Subtype())
}

// Subtype returns the upper-cased MIME subtype, or UNKNOWN when the type has none
func (f SelectedFile) Subtype() string {
	contentType := f.ContentType
	if f.DetectedType != "" && (contentType == "" || contentType == genericContentType) {
		contentType = f.DetectedType
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	_, subtype, ok := strings.Cut(strings.TrimSpace(mediaType), "/")
	if !ok || subtype == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(subtype)
}

// AnalysisResult is the decoded body of a successful analysis response
type AnalysisResult struct {
	ATSScore *ATSScore `json:"atsScore"`
}

// ATSScore holds the overall score and its per-category breakdown
type ATSScore struct {
	Score     float64   `json:"atsScore"`
	Breakdown Breakdown `json:"breakdown"`
}

// DisplayScore renders the top-level score the way the service sent it
func (r *AnalysisResult) DisplayScore() string {
	if r == nil || r.ATSScore == nil {
		return ""
	}
	return FormatNumber(r.ATSScore.Score)
}

// Entries returns the breakdown in the order the service sent it
func (r *AnalysisResult) Entries() []BreakdownEntry {
	if r == nil || r.ATSScore == nil {
		return nil
	}
	return r.ATSScore.Breakdown
}

// wireResult mirrors AnalysisResult with pointers so absent fields can be told apart from zero values.
type wireResult struct {
	ATSScore *struct {
		Score     *float64   `json:"atsScore"`
		Breakdown *Breakdown `json:"breakdown"`
	} `json:"atsScore"`
}

// DecodeAnalysisResult decodes a response body and requires the
// {atsScore: {atsScore: number, breakdown: object}} shape.
func DecodeAnalysisResult(data []byte) (*AnalysisResult, error) {
	var wire wireResult
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode analysis response: %w", err)
	}
	if wire.ATSScore == nil {
		return nil, fmt.Errorf("analysis response is missing the atsScore object")
	}
	if wire.ATSScore.Score == nil {
		return nil, fmt.Errorf("analysis response is missing atsScore.atsScore")
	}
	if wire.ATSScore.Breakdown == nil {
		return nil, fmt.Errorf("analysis response is missing atsScore.breakdown")
	}

	return &AnalysisResult{
		ATSScore: &ATSScore{
			Score:     *wire.ATSScore.Score,
			Breakdown: *wire.ATSScore.Breakdown,
		},
	}, nil
}

// BreakdownEntry is one category of the breakdown
type BreakdownEntry struct {
	Key   string
	Value Value
}

// Label is the humanized key shown to users
func (e BreakdownEntry) Label() string {
	return HumanizeKey(e.Key)
}

// Breakdown is a JSON object decoded with its key order preserved
type Breakdown []BreakdownEntry

// Get returns the value stored under key
func (b Breakdown) Get(key string) (Value, bool) {
	for _, entry := range b {
		if entry.Key == key {
			return entry.Value, true
		}
	}
	return Value{}, false
}

func (b *Breakdown) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*b = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("breakdown must be a JSON object")
	}

	entries := Breakdown{}
	index := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("breakdown key must be a string, got %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("breakdown value for %q: %w", key, err)
		}
		value := parseValue(raw)

		// A repeated key keeps its first position and its last value.
		if i, seen := index[key]; seen {
			entries[i].Value = value
			continue
		}
		index[key] = len(entries)
		entries = append(entries, BreakdownEntry{Key: key, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*b = entries
	return nil
}

func (b Breakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		value, err := entry.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type valueKind int

const (
	kindRaw valueKind = iota
	kindNumber
	kindString
)

// Value is a breakdown value: a number, a string, or any other JSON kept verbatim
type Value struct {
	kind   valueKind
	number float64
	text   string
	raw    json.RawMessage
}

// NumberValue builds a numeric Value
func NumberValue(n float64) Value {
	return Value{kind: kindNumber, number: n}
}

// StringValue builds a string Value
func StringValue(s string) Value {
	return Value{kind: kindString, text: s}
}

func parseValue(raw json.RawMessage) Value {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Value{kind: kindRaw, raw: json.RawMessage("null")}
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return StringValue(s)
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if n, err := strconv.ParseFloat(string(trimmed), 64); err == nil {
			return NumberValue(n)
		}
	}
	return Value{kind: kindRaw, raw: append(json.RawMessage(nil), trimmed...)}
}

// IsNumber reports whether the value is numeric
func (v Value) IsNumber() bool {
	return v.kind == kindNumber
}

// Number returns the numeric value and whether it is one
func (v Value) Number() (float64, bool) {
	return v.number, v.kind == kindNumber
}

// String renders the value for display
func (v Value) String() string {
	switch v.kind {
	case kindNumber:
		return FormatNumber(v.number)
	case kindString:
		return v.text
	default:
		if len(v.raw) == 0 {
			return "null"
		}
		return string(v.raw)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindNumber:
		return []byte(FormatNumber(v.number)), nil
	case kindString:
		return json.Marshal(v.text)
	default:
		if len(v.raw) == 0 {
			return []byte("null"), nil
		}
		return v.raw, nil
	}
}

// FormatNumber renders a float in its shortest decimal form (87, 80.5)
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
