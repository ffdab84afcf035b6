package gemini

import "strings"

const (
	RoleUser  = "user"
	RoleModel = "model"

	ModalityText  = "TEXT"
	ModalityImage = "IMAGE"
)

// Schema types understood by responseSchema.
const (
	TypeString  = "STRING"
	TypeNumber  = "NUMBER"
	TypeInteger = "INTEGER"
	TypeBoolean = "BOOLEAN"
	TypeArray   = "ARRAY"
	TypeObject  = "OBJECT"
)

type Blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
	Thought    bool   `json:"thought,omitempty"`
}

type Content struct {
	Role  string  `json:"role,omitempty"`
	Parts []*Part `json:"parts"`
}

// NewTextContent builds a single-part text turn.
func NewTextContent(role, text string) *Content {
	return &Content{Role: role, Parts: []*Part{{Text: text}}}
}

type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	MinItems    string             `json:"minItems,omitempty"`
	MaxItems    string             `json:"maxItems,omitempty"`
}

type ThinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type GenerationConfig struct {
	ResponseMimeType   string          `json:"responseMimeType,omitempty"`
	ResponseSchema     *Schema         `json:"responseSchema,omitempty"`
	ResponseModalities []string        `json:"responseModalities,omitempty"`
	ThinkingConfig     *ThinkingConfig `json:"thinkingConfig,omitempty"`
}

// Tool enables a grounding source. Set exactly one field.
type Tool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
	GoogleMaps   *struct{} `json:"googleMaps,omitempty"`
}

func GoogleSearchTool() *Tool { return &Tool{GoogleSearch: &struct{}{}} }
func GoogleMapsTool() *Tool   { return &Tool{GoogleMaps: &struct{}{}} }

type GenerateContentRequest struct {
	Contents         []*Content        `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
	Tools            []*Tool           `json:"tools,omitempty"`
}

type GroundingSource struct {
	Uri   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

type GroundingChunk struct {
	Web  *GroundingSource `json:"web,omitempty"`
	Maps *GroundingSource `json:"maps,omitempty"`
}

type GroundingMetadata struct {
	GroundingChunks []*GroundingChunk `json:"groundingChunks"`
}

type Candidate struct {
	Content           *Content           `json:"content"`
	FinishReason      string             `json:"finishReason,omitempty"`
	GroundingMetadata *GroundingMetadata `json:"groundingMetadata,omitempty"`
}

type GenerateContentResponse struct {
	Candidates []*Candidate `json:"candidates"`
}

func (r *GenerateContentResponse) firstCandidate() *Candidate {
	if r == nil || len(r.Candidates) == 0 {
		return nil
	}
	return r.Candidates[0]
}

// Text joins the non-thought text parts of the first candidate.
func (r *GenerateContentResponse) Text() string {
	c := r.firstCandidate()
	if c == nil || c.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range c.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// InlineImage returns the first inline image part of the first candidate.
func (r *GenerateContentResponse) InlineImage() (*Blob, bool) {
	c := r.firstCandidate()
	if c == nil || c.Content == nil {
		return nil, false
	}
	for _, p := range c.Content.Parts {
		if p != nil && p.InlineData != nil && p.InlineData.Data != "" {
			return p.InlineData, true
		}
	}
	return nil, false
}

// GroundingChunks returns the citations of the first candidate, if any.
func (r *GenerateContentResponse) GroundingChunks() []*GroundingChunk {
	c := r.firstCandidate()
	if c == nil || c.GroundingMetadata == nil {
		return nil
	}
	return c.GroundingMetadata.GroundingChunks
}

// --- Imagen predict ---

type ImageParameters struct {
	SampleCount int    `json:"sampleCount"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type GeneratedImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type predictInstance struct {
	Prompt string `json:"prompt"`
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters ImageParameters   `json:"parameters"`
}

type predictResponse struct {
	Predictions []GeneratedImage `json:"predictions"`
}
