// Package workflow is the redesign wizard state machine: upload, preferences,
// generation and results, plus the editor, perspective and palette side flows.
package workflow

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"decor-ai-be/internal/entity"
	"decor-ai-be/internal/perspective"
	"decor-ai-be/internal/pkg/logger"
	"decor-ai-be/pkg/capability"
	"decor-ai-be/pkg/metrics"

	"github.com/gabriel-vasile/mimetype"
)

const moduleName = "workflow"

// Observer receives a snapshot after every state change. It is called with
// the workflow locked, so it must not call back into the Workflow.
type Observer func(entity.WorkflowState)

type Config struct {
	// PreviewURL builds the client URL of an uploaded image from its token.
	PreviewURL func(token string) string
	// PerspectiveTimeout bounds each perspective synthesis.
	PerspectiveTimeout time.Duration
	OnChange           Observer
	OnPerspective      func(entity.PerspectiveSet)
}

// Workflow holds the state of one wizard. Remote calls never run with the
// lock held; their results are applied only if the epoch they started in is
// still current.
type Workflow struct {
	id           string
	capability   capability.Capability
	previews     *PreviewRegistry
	perspectives *perspective.Cache
	logger       logger.ILogger
	cfg          Config

	mu                   sync.Mutex
	epoch                uint64
	step                 entity.Step
	image                *entity.Image
	inputImage           *entity.InputImage
	preview              *PreviewHandle
	preferences          entity.Preferences
	options              []entity.DesignOption
	isLoading            bool
	loadingMessage       string
	lastError            *string
	editTarget           *string
	isEditing            bool
	perspectiveTarget    *string
	palettes             []entity.ColorPalette
	isGeneratingPalettes bool
}

// New creates a workflow in the upload step. ctx is the parent of the
// perspective fetches and should live as long as the service.
func New(ctx context.Context, id string, c capability.Capability, previews *PreviewRegistry, log logger.ILogger, cfg Config) *Workflow {
	if cfg.PreviewURL == nil {
		cfg.PreviewURL = func(token string) string { return "/preview/" + token }
	}
	w := &Workflow{
		id:          id,
		capability:  c,
		previews:    previews,
		logger:      log,
		cfg:         cfg,
		preferences: entity.DefaultPreferences(),
	}
	w.perspectives = perspective.NewCache(ctx, c, log, perspective.Config{
		FetchTimeout: cfg.PerspectiveTimeout,
		OnChange:     cfg.OnPerspective,
	})
	return w
}

func (w *Workflow) Id() string {
	return w.id
}

func (w *Workflow) Perspectives() *perspective.Cache {
	return w.perspectives
}

func (w *Workflow) State() entity.WorkflowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// UploadImage stores a new room photo and moves to the preferences step.
// A photo uploaded during preferences replaces the previous one.
func (w *Workflow) UploadImage(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyImage
	}
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return ErrUnsupportedImage
	}
	mimeType := mtype.String()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step != entity.StepUpload && w.step != entity.StepPreferences {
		return ErrInvalidTransition
	}

	w.releasePreviewLocked()
	w.preview = w.previews.Acquire(data, mimeType)
	w.image = &entity.Image{Data: base64.StdEncoding.EncodeToString(data), MimeType: mimeType}
	w.inputImage = &entity.InputImage{
		PreviewUrl: w.cfg.PreviewURL(w.preview.Token),
		MimeType:   mimeType,
		Size:       len(data),
	}

	// Anything still in flight was computed from the previous photo.
	w.epoch++
	w.step = entity.StepPreferences
	w.options = nil
	w.lastError = nil
	w.editTarget = nil
	w.isEditing = false
	w.perspectiveTarget = nil
	w.palettes = nil
	w.isGeneratingPalettes = false
	w.perspectives.Reset()

	w.logger.Info(moduleName, "Image uploaded", map[string]interface{}{
		"workspace_id": w.id,
		"mime_type":    mimeType,
		"size":         len(data),
	})
	w.notifyLocked()
	return nil
}

// Preview returns the uploaded image if token belongs to the current upload.
func (w *Workflow) Preview(token string) (Preview, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.preview == nil || w.preview.Token != token {
		return Preview{}, false
	}
	return w.previews.Lookup(token)
}

// UpdatePreferences merges patch into the preferences. Values are free text
// and not validated.
func (w *Workflow) UpdatePreferences(patch entity.PreferencesPatch) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.preferences = w.preferences.Apply(patch)
	w.notifyLocked()
}

func (w *Workflow) OpenEditor(optionId string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.findOptionLocked(optionId) < 0 {
		return ErrOptionNotFound
	}
	w.editTarget = &optionId
	w.perspectiveTarget = nil
	w.notifyLocked()
	return nil
}

func (w *Workflow) CloseEditor() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.editTarget == nil {
		return
	}
	w.editTarget = nil
	w.notifyLocked()
}

// OpenPerspectiveViewer makes optionId the viewed option and starts
// synthesizing its missing angles.
func (w *Workflow) OpenPerspectiveViewer(optionId string) (entity.PerspectiveSet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := w.findOptionLocked(optionId)
	if idx < 0 {
		return entity.PerspectiveSet{}, ErrOptionNotFound
	}
	w.perspectiveTarget = &optionId
	w.editTarget = nil
	w.notifyLocked()

	return w.perspectives.Open(w.options[idx]), nil
}

func (w *Workflow) ClosePerspectiveViewer() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.perspectiveTarget == nil {
		return
	}
	w.perspectiveTarget = nil
	w.notifyLocked()
}

// SelectPalette applies a suggested palette's name as the color preference.
func (w *Workflow) SelectPalette(index int) error {
	w.mu.Lock()
	if index < 0 || index >= len(w.palettes) {
		w.mu.Unlock()
		return ErrPaletteNotFound
	}
	name := w.palettes[index].Name
	w.mu.Unlock()

	w.UpdatePreferences(entity.PreferencesPatch{ColorPalette: &name})
	return nil
}

// Restart releases the uploaded image and returns to the initial state.
// Remote calls still running are left alone; their results are dropped.
func (w *Workflow) Restart() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.resetLocked()
	w.logger.Info(moduleName, "Workflow restarted", map[string]interface{}{
		"workspace_id": w.id,
	})
	w.notifyLocked()
}

// Close releases the resources of a workflow that is being discarded.
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
}

func (w *Workflow) resetLocked() {
	w.releasePreviewLocked()
	w.epoch++
	w.step = entity.StepUpload
	w.image = nil
	w.inputImage = nil
	w.preferences = entity.DefaultPreferences()
	w.options = nil
	w.isLoading = false
	w.loadingMessage = ""
	w.lastError = nil
	w.editTarget = nil
	w.isEditing = false
	w.perspectiveTarget = nil
	w.palettes = nil
	w.isGeneratingPalettes = false
	w.perspectives.Reset()
}

func (w *Workflow) releasePreviewLocked() {
	if w.preview != nil {
		w.preview.Release()
		w.preview = nil
	}
}

func (w *Workflow) findOptionLocked(optionId string) int {
	for i := range w.options {
		if w.options[i].Id == optionId {
			return i
		}
	}
	return -1
}

// staleLocked reports whether a result started in epoch must be dropped.
func (w *Workflow) staleLocked(epoch uint64, operation string) bool {
	if epoch == w.epoch {
		return false
	}
	metrics.StaleResultsTotal.WithLabelValues(operation).Inc()
	w.logger.Debug(moduleName, "Discarding stale result", map[string]interface{}{
		"workspace_id": w.id,
		"operation":    operation,
	})
	return true
}

func (w *Workflow) setErrorLocked(message string) {
	w.lastError = &message
}

func (w *Workflow) notifyLocked() {
	if w.cfg.OnChange != nil {
		w.cfg.OnChange(w.snapshotLocked())
	}
}

func (w *Workflow) snapshotLocked() entity.WorkflowState {
	state := entity.WorkflowState{
		WorkspaceId:          w.id,
		Step:                 w.step,
		Preferences:          w.preferences,
		DesignOptions:        make([]entity.DesignOption, len(w.options)),
		IsLoading:            w.isLoading,
		LoadingMessage:       w.loadingMessage,
		IsEditing:            w.isEditing,
		SuggestedPalettes:    make([]entity.ColorPalette, len(w.palettes)),
		IsGeneratingPalettes: w.isGeneratingPalettes,
	}
	copy(state.DesignOptions, w.options)
	copy(state.SuggestedPalettes, w.palettes)

	if w.inputImage != nil {
		img := *w.inputImage
		state.InputImage = &img
	}
	if w.lastError != nil {
		msg := *w.lastError
		state.LastError = &msg
	}
	if w.editTarget != nil {
		target := *w.editTarget
		state.ActiveEditTarget = &target
		// Resolved by id so the editor always shows the latest render.
		if idx := w.findOptionLocked(target); idx >= 0 {
			option := w.options[idx]
			state.EditingOption = &option
		}
	}
	if w.perspectiveTarget != nil {
		target := *w.perspectiveTarget
		state.ActivePerspectiveTarget = &target
	}
	return state
}
