package entity

// Store is a shop where a furniture item can be bought.
type Store struct {
	Name     string `json:"name"`
	Url      string `json:"url"`
	Location string `json:"location,omitempty"`
}

type FurnitureItem struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Stores      []Store `json:"stores"`
}

// ColorPalette always carries exactly five #RRGGBB codes.
type ColorPalette struct {
	Name   string   `json:"name"`
	Colors []string `json:"colors"`
}

// FurnitureStub is a furniture suggestion before store lookup.
type FurnitureStub struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DesignStub is one style concept as returned by the design model, before
// the image is rendered and the furniture is enriched with stores.
type DesignStub struct {
	StyleName    string          `json:"styleName"`
	Description  string          `json:"description"`
	SourcePrompt string          `json:"imagePrompt"`
	Furniture    []FurnitureStub `json:"furniture"`
}

// DesignOption is a complete redesign concept. Only the rendered image
// changes after creation (by an edit).
type DesignOption struct {
	Id               string          `json:"id"`
	StyleName        string          `json:"style_name"`
	Description      string          `json:"description"`
	RenderedImage    string          `json:"rendered_image"` // base64
	RenderedMimeType string          `json:"rendered_mime_type"`
	SourcePrompt     string          `json:"source_prompt"`
	FurnitureItems   []FurnitureItem `json:"furniture_items"`
}

// Image is a base64 payload plus its MIME type, as exchanged with the model host.
type Image struct {
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
}
