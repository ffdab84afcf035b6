package capability

import (
	"context"
	"fmt"
	"time"

	"decor-ai-be/internal/constant"
	"decor-ai-be/internal/entity"
	"decor-ai-be/pkg/gemini"
	"decor-ai-be/pkg/metrics"
	"decor-ai-be/pkg/storefinder"
)

func (g *geminiCapability) FindStores(ctx context.Context, itemName string, prefs entity.Preferences) (stores []entity.Store, err error) {
	defer metrics.ObserveRemoteCall("find_stores", time.Now(), &err)

	tier := string(prefs.FurnitureTier)
	if tier == "" {
		tier = string(entity.FurnitureTierAny)
	}
	req := &gemini.GenerateContentRequest{
		Contents: []*gemini.Content{
			gemini.NewTextContent(gemini.RoleUser, fmt.Sprintf(constant.StoreSearchPromptV1, itemName, tier)),
		},
		Tools: []*gemini.Tool{gemini.GoogleSearchTool(), gemini.GoogleMapsTool()},
	}

	res, err := g.client.GenerateContent(ctx, g.cfg.SearchModel, req)
	if err != nil {
		return nil, serviceFailure("find stores", err)
	}
	if len(res.Candidates) == 0 {
		return nil, serviceFailure("find stores", gemini.ErrEmptyResponse)
	}

	citations := make([]storefinder.Candidate, 0)
	for _, chunk := range res.GroundingChunks() {
		if chunk == nil {
			continue
		}
		if chunk.Web != nil && chunk.Web.Uri != "" {
			citations = append(citations, storefinder.Candidate{Url: chunk.Web.Uri})
		}
		if chunk.Maps != nil && chunk.Maps.Uri != "" {
			citations = append(citations, storefinder.Candidate{Url: chunk.Maps.Uri, Location: chunk.Maps.Title})
		}
	}

	stores = storefinder.Collect(res.Text(), citations, storefinder.MaxStores, func(raw string, err error) {
		g.logger.Debug(moduleName, "Skipping malformed store url", map[string]interface{}{
			"item":  itemName,
			"url":   raw,
			"error": err.Error(),
		})
	})
	return stores, nil
}
