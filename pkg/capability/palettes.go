package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"decor-ai-be/internal/constant"
	"decor-ai-be/internal/entity"
	"decor-ai-be/pkg/gemini"
	"decor-ai-be/pkg/metrics"
)

const (
	PaletteCount     = 3
	ColorsPerPalette = 5
)

var hexColor = regexp.MustCompile(`^#?([0-9a-fA-F]{6})$`)

func (g *geminiCapability) GenerateColorPalettes(ctx context.Context, image entity.Image) (palettes []entity.ColorPalette, err error) {
	defer metrics.ObserveRemoteCall("generate_palettes", time.Now(), &err)

	req := &gemini.GenerateContentRequest{
		Contents: []*gemini.Content{
			{
				Role: gemini.RoleUser,
				Parts: []*gemini.Part{
					{InlineData: &gemini.Blob{MimeType: image.MimeType, Data: image.Data}},
					{Text: constant.PalettePromptV1},
				},
			},
		},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   palettesSchema(),
		},
	}

	res, err := g.client.GenerateContent(ctx, g.cfg.PaletteModel, req)
	if err != nil {
		return nil, serviceFailure("generate palettes", err)
	}
	text := res.Text()
	if text == "" {
		return nil, serviceFailure("generate palettes", gemini.ErrEmptyResponse)
	}
	return parsePalettes(text)
}

func parsePalettes(text string) ([]entity.ColorPalette, error) {
	var raw []entity.ColorPalette
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	if len(raw) != PaletteCount {
		return nil, fmt.Errorf("%w: expected %d palettes, got %d", ErrParseFailure, PaletteCount, len(raw))
	}

	palettes := make([]entity.ColorPalette, 0, len(raw))
	for i, p := range raw {
		if len(p.Colors) != ColorsPerPalette {
			return nil, fmt.Errorf("%w: palette %d has %d colors", ErrParseFailure, i, len(p.Colors))
		}
		colors := make([]string, 0, ColorsPerPalette)
		for _, c := range p.Colors {
			normalized, ok := NormalizeHexColor(c)
			if !ok {
				return nil, fmt.Errorf("%w: palette %d has invalid color %q", ErrParseFailure, i, c)
			}
			colors = append(colors, normalized)
		}
		palettes = append(palettes, entity.ColorPalette{Name: strings.TrimSpace(p.Name), Colors: colors})
	}
	return palettes, nil
}

// NormalizeHexColor turns "aabbcc" or "#aabbcc" into "#AABBCC".
func NormalizeHexColor(c string) (string, bool) {
	m := hexColor.FindStringSubmatch(strings.TrimSpace(c))
	if m == nil {
		return "", false
	}
	return "#" + strings.ToUpper(m[1]), true
}
