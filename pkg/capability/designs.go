package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"decor-ai-be/internal/constant"
	"decor-ai-be/internal/entity"
	"decor-ai-be/pkg/gemini"
	"decor-ai-be/pkg/metrics"
)

// DesignCount is how many style concepts every design request yields.
const DesignCount = 3

func (g *geminiCapability) RequestDesigns(ctx context.Context, image entity.Image, prefs entity.Preferences) (stubs []entity.DesignStub, err error) {
	defer metrics.ObserveRemoteCall("request_designs", time.Now(), &err)

	prompt := fmt.Sprintf(constant.DesignPromptV1, preferencesBlock(prefs))
	req := &gemini.GenerateContentRequest{
		Contents: []*gemini.Content{
			{
				Role: gemini.RoleUser,
				Parts: []*gemini.Part{
					{InlineData: &gemini.Blob{MimeType: image.MimeType, Data: image.Data}},
					{Text: prompt},
				},
			},
		},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   designsSchema(),
		},
	}
	if g.cfg.ThinkingBudget > 0 {
		req.GenerationConfig.ThinkingConfig = &gemini.ThinkingConfig{ThinkingBudget: g.cfg.ThinkingBudget}
	}

	res, err := g.client.GenerateContent(ctx, g.cfg.DesignModel, req)
	if err != nil {
		return nil, serviceFailure("request designs", err)
	}
	text := res.Text()
	if text == "" {
		return nil, serviceFailure("request designs", gemini.ErrEmptyResponse)
	}

	stubs, err = parseDesigns(text)
	if err != nil {
		g.logger.Warn(moduleName, "Design response rejected", map[string]interface{}{
			"error":  err.Error(),
			"length": len(text),
		})
		return nil, err
	}
	return stubs, nil
}

func parseDesigns(text string) ([]entity.DesignStub, error) {
	var stubs []entity.DesignStub
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &stubs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	if len(stubs) != DesignCount {
		return nil, fmt.Errorf("%w: expected %d designs, got %d", ErrParseFailure, DesignCount, len(stubs))
	}
	for i, s := range stubs {
		if strings.TrimSpace(s.StyleName) == "" || strings.TrimSpace(s.SourcePrompt) == "" {
			return nil, fmt.Errorf("%w: design %d lacks a style name or image prompt", ErrParseFailure, i)
		}
		if stubs[i].Furniture == nil {
			stubs[i].Furniture = []entity.FurnitureStub{}
		}
	}
	return stubs, nil
}

func preferencesBlock(prefs entity.Preferences) string {
	tier := string(prefs.FurnitureTier)
	if prefs.FurnitureTier == entity.FurnitureTierAny {
		tier = ""
	}
	return fmt.Sprintf(constant.DesignPreferencesTemplateV1,
		orNoPreference(prefs.ColorPalette),
		orNoPreference(tier),
		orNoPreference(prefs.Material),
	)
}

func orNoPreference(s string) string {
	if strings.TrimSpace(s) == "" {
		return constant.NoPreference
	}
	return s
}

// Structured output is plain JSON, but some models still wrap it in a fence.
func stripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}
