package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bdougie/metafootage/internal/models"
)

// SystemInstruction frames the model as an editor writing footage metadata.
// The Log-profile note matters: ungraded camera footage looks washed out and
// models otherwise fixate on that instead of the content.
const SystemInstruction = `You are a professional cinematic video editor generating metadata for footage management.
You will view a series of frames from a single continuous video shot.
IMPORTANT: The footage may be in a flat Log color profile. Ignore low contrast or 'washed out' looks. Focus on content, composition, and action.
Be specific, cinematic, and editor-focused in your descriptions.`

// UserPrompt names the clip the frames came from.
func UserPrompt(clipName string) string {
	return fmt.Sprintf("Analyze these frames from video file: %s.", clipName)
}

// SchemaProperty describes one field of the structured output.
type SchemaProperty struct {
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Items       *SchemaProperty `json:"items,omitempty"`
}

// Schema is the structured-output contract sent to providers that support
// schema-constrained generation. Field names line up with the JSON tags on
// models.AnalysisResult.
type Schema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required"`
}

// ResultSchema builds the output schema. typeCase lets each provider follow
// its own convention ("OBJECT" for Gemini, "object" for OpenAI-style APIs).
func ResultSchema(upper bool) Schema {
	str := "string"
	arr := "array"
	obj := "object"
	if upper {
		str, arr, obj = "STRING", "ARRAY", "OBJECT"
	}
	strItem := func(desc string) SchemaProperty {
		return SchemaProperty{Type: str, Description: desc}
	}
	listItem := func(desc string) SchemaProperty {
		return SchemaProperty{Type: arr, Description: desc, Items: &SchemaProperty{Type: str}}
	}
	return Schema{
		Type: obj,
		Properties: map[string]SchemaProperty{
			"shot_id":    strItem("The filename or ID of the shot"),
			"short_desc": strItem("Brief one-sentence description (max 100 chars)"),
			"long_desc":  strItem("Detailed paragraph describing the shot, camera work, and story potential"),
			"subjects":   listItem("List of visible subjects"),
			"actions":    listItem("List of actions or movements"),
			"camera":     strItem("Camera movement and framing description"),
			"lighting":   strItem("Lighting quality and characteristics"),
			"setting":    strItem("Location and environment description"),
			"emotion":    strItem("Emotional tone and mood"),
			"keywords":   listItem("Searchable keywords for this shot"),
		},
		Required: []string{"short_desc", "long_desc", "subjects", "actions",
			"camera", "lighting", "setting", "emotion", "keywords"},
	}
}

// FieldListPrompt spells the schema out in prose, for providers that accept
// "JSON mode" but not a response schema.
func FieldListPrompt() string {
	var b strings.Builder
	b.WriteString("Respond with a single JSON object using exactly these fields:\n")
	b.WriteString(`"short_desc" (string, one sentence, max 100 chars), `)
	b.WriteString(`"long_desc" (string, detailed paragraph), `)
	b.WriteString(`"subjects" (array of strings), `)
	b.WriteString(`"actions" (array of strings), `)
	b.WriteString(`"camera" (string), "lighting" (string), `)
	b.WriteString(`"setting" (string), "emotion" (string), `)
	b.WriteString(`"keywords" (array of strings).`)
	return b.String()
}

// DecodeResult parses model output text into an AnalysisResult. Two quirks
// are tolerated rather than rejected: markdown code fences around the JSON,
// and a single object wrapped in a one-element array (the first element
// wins).
func DecodeResult(providerName string, text []byte) (models.AnalysisResult, error) {
	trimmed := bytes.TrimSpace(text)
	trimmed = stripFences(trimmed)
	if len(trimmed) == 0 {
		return models.AnalysisResult{}, &MalformedResponseError{Provider: providerName, Reason: "empty response text"}
	}

	if trimmed[0] == '[' {
		var list []models.AnalysisResult
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return models.AnalysisResult{}, &MalformedResponseError{Provider: providerName, Reason: "unparseable array response", Err: err}
		}
		if len(list) == 0 {
			return models.AnalysisResult{}, &MalformedResponseError{Provider: providerName, Reason: "empty array response"}
		}
		return list[0], nil
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return models.AnalysisResult{}, &MalformedResponseError{Provider: providerName, Reason: "unparseable response", Err: err}
	}
	return result, nil
}

func stripFences(b []byte) []byte {
	s := bytes.TrimSpace(b)
	if !bytes.HasPrefix(s, []byte("```")) {
		return s
	}
	s = bytes.TrimPrefix(s, []byte("```"))
	if i := bytes.IndexByte(s, '\n'); i >= 0 {
		// Drop the language tag line (```json).
		s = s[i+1:]
	}
	s = bytes.TrimSuffix(bytes.TrimSpace(s), []byte("```"))
	return bytes.TrimSpace(s)
}
