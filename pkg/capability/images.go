package capability

import (
	"context"
	"fmt"
	"time"

	"decor-ai-be/internal/constant"
	"decor-ai-be/internal/entity"
	"decor-ai-be/pkg/gemini"
	"decor-ai-be/pkg/metrics"
)

const (
	renderAspectRatio = "16:9"
	defaultImageMime  = "image/png"
)

func (g *geminiCapability) SynthesizeImage(ctx context.Context, prompt string) (img entity.Image, err error) {
	defer metrics.ObserveRemoteCall("synthesize_image", time.Now(), &err)

	images, err := g.client.GenerateImages(ctx, g.cfg.ImageModel, constant.ImagePromptPrefix+prompt, gemini.ImageParameters{
		SampleCount: 1,
		AspectRatio: renderAspectRatio,
	})
	if err != nil {
		return entity.Image{}, serviceFailure("synthesize image", err)
	}
	if len(images) == 0 {
		return entity.Image{}, fmt.Errorf("synthesize image: %w: no predictions", ErrGenerationFailure)
	}

	mime := images[0].MimeType
	if mime == "" {
		mime = defaultImageMime
	}
	return entity.Image{Data: images[0].BytesBase64Encoded, MimeType: mime}, nil
}

func (g *geminiCapability) EditImage(ctx context.Context, image entity.Image, instruction string) (img entity.Image, err error) {
	defer metrics.ObserveRemoteCall("edit_image", time.Now(), &err)

	req := &gemini.GenerateContentRequest{
		Contents: []*gemini.Content{
			{
				Role: gemini.RoleUser,
				Parts: []*gemini.Part{
					{InlineData: &gemini.Blob{MimeType: image.MimeType, Data: image.Data}},
					{Text: instruction},
				},
			},
		},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseModalities: []string{gemini.ModalityImage},
		},
	}

	res, err := g.client.GenerateContent(ctx, g.cfg.EditModel, req)
	if err != nil {
		return entity.Image{}, serviceFailure("edit image", err)
	}

	blob, ok := res.InlineImage()
	if !ok {
		g.logger.Warn(moduleName, "Edit response carried no image", map[string]interface{}{
			"text": res.Text(),
		})
		return entity.Image{}, fmt.Errorf("edit image: %w", ErrEditFailure)
	}

	mime := blob.MimeType
	if mime == "" {
		mime = defaultImageMime
	}
	return entity.Image{Data: blob.Data, MimeType: mime}, nil
}
