package capability

import "decor-ai-be/pkg/gemini"

func designsSchema() *gemini.Schema {
	return &gemini.Schema{
		Type:     gemini.TypeArray,
		MinItems: "3",
		MaxItems: "3",
		Items: &gemini.Schema{
			Type: gemini.TypeObject,
			Properties: map[string]*gemini.Schema{
				"styleName":   {Type: gemini.TypeString, Description: "Name of the design style."},
				"description": {Type: gemini.TypeString, Description: "Detailed description of the concept."},
				"imagePrompt": {Type: gemini.TypeString, Description: "Prompt for the image model that keeps the room architecture."},
				"furniture": {
					Type: gemini.TypeArray,
					Items: &gemini.Schema{
						Type: gemini.TypeObject,
						Properties: map[string]*gemini.Schema{
							"name":        {Type: gemini.TypeString},
							"description": {Type: gemini.TypeString},
						},
						Required: []string{"name", "description"},
					},
				},
			},
			Required: []string{"styleName", "description", "imagePrompt", "furniture"},
		},
	}
}

func palettesSchema() *gemini.Schema {
	return &gemini.Schema{
		Type:     gemini.TypeArray,
		MinItems: "3",
		MaxItems: "3",
		Items: &gemini.Schema{
			Type: gemini.TypeObject,
			Properties: map[string]*gemini.Schema{
				"name": {Type: gemini.TypeString},
				"colors": {
					Type:     gemini.TypeArray,
					MinItems: "5",
					MaxItems: "5",
					Items:    &gemini.Schema{Type: gemini.TypeString, Description: "HEX code, e.g. #AABBCC"},
				},
			},
			Required: []string{"name", "colors"},
		},
	}
}
