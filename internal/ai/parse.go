package ai

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var answersSchema string

var schemaLoader = gojsonschema.NewStringLoader(answersSchema)

type answersDocument struct {
	Answers []rawAnswer `mapstructure:"answers"`
}

type rawAnswer struct {
	ID     int `mapstructure:"id"`
	Answer any `mapstructure:"answer"`
}

// parseAnswers extracts the answers document from a model response and returns
// the answer text keyed by question number. Raw JSON is tried first, then JSON
// fenced in a code block, then the outermost JSON value embedded in prose.
func parseAnswers(raw string) (map[int]string, error) {
	var lastErr error
	for _, candidate := range []string{strings.TrimSpace(raw), extractJSON(raw), embeddedJSON(raw)} {
		if candidate == "" {
			continue
		}
		answers, err := decodeAnswers(candidate)
		if err == nil {
			return answers, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("empty response")
	}
	return nil, fmt.Errorf("%w: %v", ErrUnparseable, lastErr)
}

func decodeAnswers(text string) (map[int]string, error) {
	var data any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, err
	}
	// a bare list of answers is accepted as the answers field
	if list, ok := data.([]any); ok {
		data = map[string]any{"answers": list}
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validate answers: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("answers do not match schema: %s", strings.Join(msgs, "; "))
	}

	var doc answersDocument
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}

	answers := make(map[int]string, len(doc.Answers))
	for _, a := range doc.Answers {
		answers[a.ID] = coerceString(a.Answer)
	}
	return answers, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if start := strings.Index(raw, "```"); start != -1 {
		raw = raw[start:]
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.Index(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
		return strings.TrimSpace(raw)
	}
	return ""
}

func embeddedJSON(raw string) string {
	start := strings.IndexAny(raw, "{[")
	if start == -1 {
		return ""
	}
	closer := "}"
	if raw[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(raw, closer)
	if end <= start {
		return ""
	}
	return raw[start : end+1]
}

func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := coerceString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
