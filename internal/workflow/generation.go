package workflow

import (
	"context"
	"strings"
	"time"

	"decor-ai-be/internal/constant"
	"decor-ai-be/internal/entity"
	"decor-ai-be/pkg/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Task is the remote half of an operation whose state change has already
// been applied. It applies its own result.
type Task func(ctx context.Context) error

// StartGeneration asks for three design concepts, renders each one and
// looks up stores for its furniture. It blocks until the result is applied.
// Without an uploaded image it does nothing.
//
// A failed render aborts the whole batch and returns to the preferences
// step. A failed store lookup only leaves that item without stores.
func (w *Workflow) StartGeneration(ctx context.Context) error {
	return run(ctx, w.BeginGeneration)
}

// BeginGeneration moves to the generating step and returns the task that
// finishes the generation. The task is nil when there is no image.
func (w *Workflow) BeginGeneration() (Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.image == nil {
		return nil, nil
	}
	if w.step != entity.StepPreferences {
		return nil, ErrInvalidTransition
	}
	epoch := w.epoch
	image := *w.image
	prefs := w.preferences
	w.step = entity.StepGenerating
	w.isLoading = true
	w.loadingMessage = constant.GeneratingMessage
	w.lastError = nil
	w.notifyLocked()

	return func(ctx context.Context) error {
		return w.finishGeneration(ctx, epoch, image, prefs)
	}, nil
}

func (w *Workflow) finishGeneration(ctx context.Context, epoch uint64, image entity.Image, prefs entity.Preferences) error {
	start := time.Now()
	options, err := w.generate(ctx, image, prefs)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.staleLocked(epoch, "generation") {
		return ErrStaleResult
	}

	w.isLoading = false
	w.loadingMessage = ""
	if err != nil {
		metrics.GenerationTotal.WithLabelValues("error").Inc()
		w.step = entity.StepPreferences
		w.setErrorLocked(userMessage(err, ""))
		w.logger.Error(moduleName, "Design generation failed", map[string]interface{}{
			"workspace_id": w.id,
			"error":        err.Error(),
		})
		w.notifyLocked()
		return err
	}

	metrics.GenerationTotal.WithLabelValues("success").Inc()
	w.options = options
	w.step = entity.StepResults
	w.logger.Info(moduleName, "Designs generated", map[string]interface{}{
		"workspace_id": w.id,
		"options":      len(options),
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	w.notifyLocked()
	return nil
}

func (w *Workflow) generate(ctx context.Context, image entity.Image, prefs entity.Preferences) ([]entity.DesignOption, error) {
	stubs, err := w.capability.RequestDesigns(ctx, image, prefs)
	if err != nil {
		return nil, err
	}

	options := make([]entity.DesignOption, len(stubs))
	g, gctx := errgroup.WithContext(ctx)
	for i, stub := range stubs {
		g.Go(func() error {
			rendered, err := w.capability.SynthesizeImage(gctx, stub.SourcePrompt)
			if err != nil {
				return err
			}
			options[i] = entity.DesignOption{
				Id:               uuid.NewString(),
				StyleName:        stub.StyleName,
				Description:      stub.Description,
				RenderedImage:    rendered.Data,
				RenderedMimeType: rendered.MimeType,
				SourcePrompt:     stub.SourcePrompt,
				FurnitureItems:   w.furnish(gctx, stub.Furniture, prefs),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return options, nil
}

func (w *Workflow) furnish(ctx context.Context, furniture []entity.FurnitureStub, prefs entity.Preferences) []entity.FurnitureItem {
	items := make([]entity.FurnitureItem, len(furniture))
	var g errgroup.Group
	for i, f := range furniture {
		g.Go(func() error {
			stores, err := w.capability.FindStores(ctx, f.Name, prefs)
			if err != nil {
				w.logger.Warn(moduleName, "Store lookup failed, keeping item without stores", map[string]interface{}{
					"workspace_id": w.id,
					"item":         f.Name,
					"error":        err.Error(),
				})
				stores = []entity.Store{}
			}
			items[i] = entity.FurnitureItem{Name: f.Name, Description: f.Description, Stores: stores}
			return nil
		})
	}
	g.Wait()
	return items
}

// ApplyEdit re-renders an option's image following instruction and replaces
// it in place. The option keeps its id and every other field.
func (w *Workflow) ApplyEdit(ctx context.Context, optionId, instruction string) error {
	return run(ctx, func() (Task, error) { return w.BeginEdit(optionId, instruction) })
}

// BeginEdit marks the editor busy and returns the task performing the edit.
func (w *Workflow) BeginEdit(optionId, instruction string) (Task, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, ErrEmptyInstruction
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	idx := w.findOptionLocked(optionId)
	if idx < 0 {
		return nil, ErrOptionNotFound
	}
	epoch := w.epoch
	current := entity.Image{Data: w.options[idx].RenderedImage, MimeType: w.options[idx].RenderedMimeType}
	w.isEditing = true
	w.lastError = nil
	w.notifyLocked()

	return func(ctx context.Context) error {
		return w.finishEdit(ctx, epoch, optionId, current, instruction)
	}, nil
}

func (w *Workflow) finishEdit(ctx context.Context, epoch uint64, optionId string, current entity.Image, instruction string) error {
	edited, err := w.capability.EditImage(ctx, current, instruction)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.staleLocked(epoch, "edit") {
		return ErrStaleResult
	}
	w.isEditing = false
	if err != nil {
		w.setErrorLocked(userMessage(err, constant.ErrMessageEdit))
		w.logger.Error(moduleName, "Image edit failed", map[string]interface{}{
			"workspace_id": w.id,
			"option_id":    optionId,
			"error":        err.Error(),
		})
		w.notifyLocked()
		return err
	}

	idx := w.findOptionLocked(optionId)
	if idx < 0 {
		w.notifyLocked()
		return ErrOptionNotFound
	}
	w.options[idx].RenderedImage = edited.Data
	w.options[idx].RenderedMimeType = edited.MimeType
	w.notifyLocked()
	return nil
}

// GeneratePalettes suggests color palettes from the uploaded photo. It works
// in any step but needs an image; without one it does nothing.
func (w *Workflow) GeneratePalettes(ctx context.Context) error {
	return run(ctx, w.BeginPalettes)
}

// BeginPalettes marks palette generation busy and returns the task that
// fetches them. The task is nil when there is no image.
func (w *Workflow) BeginPalettes() (Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.image == nil {
		return nil, nil
	}
	epoch := w.epoch
	image := *w.image
	w.isGeneratingPalettes = true
	w.lastError = nil
	w.notifyLocked()

	return func(ctx context.Context) error {
		return w.finishPalettes(ctx, epoch, image)
	}, nil
}

func (w *Workflow) finishPalettes(ctx context.Context, epoch uint64, image entity.Image) error {
	palettes, err := w.capability.GenerateColorPalettes(ctx, image)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.staleLocked(epoch, "palettes") {
		return ErrStaleResult
	}
	w.isGeneratingPalettes = false
	if err != nil {
		w.setErrorLocked(constant.ErrMessagePalettes)
		w.logger.Error(moduleName, "Palette generation failed", map[string]interface{}{
			"workspace_id": w.id,
			"error":        err.Error(),
		})
		w.notifyLocked()
		return err
	}
	w.palettes = palettes
	w.notifyLocked()
	return nil
}

func run(ctx context.Context, begin func() (Task, error)) error {
	task, err := begin()
	if err != nil || task == nil {
		return err
	}
	return task(ctx)
}
