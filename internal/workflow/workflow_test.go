package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"decor-ai-be/internal/constant"
	"decor-ai-be/internal/entity"
	"decor-ai-be/internal/pkg/logger"
	"decor-ai-be/pkg/capability"
	"decor-ai-be/pkg/capability/capabilitytest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type recorder struct {
	mu     sync.Mutex
	states []entity.WorkflowState
}

func (r *recorder) observe(s entity.WorkflowState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) all() []entity.WorkflowState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.WorkflowState, len(r.states))
	copy(out, r.states)
	return out
}

func newTestWorkflow(t *testing.T, fake *capabilitytest.Fake) (*Workflow, *PreviewRegistry, *recorder) {
	t.Helper()
	rec := &recorder{}
	previews := NewPreviewRegistry(0)
	w := New(context.Background(), "ws-1", fake, previews, logger.NewNopLogger(), Config{
		PreviewURL: func(token string) string { return "/api/workflow/v1/ws-1/preview/" + token },
		OnChange:   rec.observe,
	})
	t.Cleanup(w.Perspectives().Wait)
	return w, previews, rec
}

func resultsWorkflow(t *testing.T, fake *capabilitytest.Fake) (*Workflow, *recorder) {
	t.Helper()
	w, _, rec := newTestWorkflow(t, fake)
	require.NoError(t, w.UploadImage(pngBytes))
	require.NoError(t, w.StartGeneration(context.Background()))
	require.Equal(t, entity.StepResults, w.State().Step)
	return w, rec
}

func TestUploadImage_MovesToPreferences(t *testing.T) {
	w, previews, _ := newTestWorkflow(t, capabilitytest.New())

	require.NoError(t, w.UploadImage(pngBytes))

	state := w.State()
	assert.Equal(t, entity.StepPreferences, state.Step)
	require.NotNil(t, state.InputImage)
	assert.Equal(t, "image/png", state.InputImage.MimeType)
	assert.Equal(t, len(pngBytes), state.InputImage.Size)
	assert.Contains(t, state.InputImage.PreviewUrl, "/api/workflow/v1/ws-1/preview/")
	assert.Equal(t, 1, previews.Len())
}

func TestUploadImage_Rejects(t *testing.T) {
	w, _, rec := newTestWorkflow(t, capabilitytest.New())

	assert.ErrorIs(t, w.UploadImage(nil), ErrEmptyImage)
	assert.ErrorIs(t, w.UploadImage([]byte("just some text")), ErrUnsupportedImage)
	assert.Equal(t, entity.StepUpload, w.State().Step)
	assert.Empty(t, rec.all())
}

func TestUploadImage_SupersedesPreviousPreview(t *testing.T) {
	w, previews, _ := newTestWorkflow(t, capabilitytest.New())

	require.NoError(t, w.UploadImage(pngBytes))
	first := w.preview

	require.NoError(t, w.UploadImage(pngBytes))
	assert.True(t, first.Released())
	assert.Equal(t, 1, previews.Len())

	_, ok := w.Preview(first.Token)
	assert.False(t, ok)
	p, ok := w.Preview(w.preview.Token)
	require.True(t, ok)
	assert.Equal(t, pngBytes, p.Data)
}

func TestUploadImage_RejectedAfterGeneration(t *testing.T) {
	w, _ := resultsWorkflow(t, capabilitytest.New())
	assert.ErrorIs(t, w.UploadImage(pngBytes), ErrInvalidTransition)
}

func TestStartGeneration_WithoutImageIsNoop(t *testing.T) {
	fake := capabilitytest.New()
	w, _, rec := newTestWorkflow(t, fake)

	require.NoError(t, w.StartGeneration(context.Background()))
	assert.Equal(t, entity.StepUpload, w.State().Step)
	assert.Equal(t, 0, fake.Calls("request_designs"))
	assert.Empty(t, rec.all())
}

func TestStartGeneration_YieldsThreeOptionsInStubOrder(t *testing.T) {
	fake := capabilitytest.New()
	// The first stub finishes last.
	fake.SynthesizeFn = func(ctx context.Context, prompt string) (entity.Image, error) {
		if prompt == "prompt 1" {
			time.Sleep(30 * time.Millisecond)
		}
		return entity.Image{Data: "img:" + prompt, MimeType: "image/png"}, nil
	}
	w, _, rec := newTestWorkflow(t, fake)
	require.NoError(t, w.UploadImage(pngBytes))

	require.NoError(t, w.StartGeneration(context.Background()))

	state := w.State()
	assert.Equal(t, entity.StepResults, state.Step)
	assert.False(t, state.IsLoading)
	require.Len(t, state.DesignOptions, 3)

	ids := map[string]bool{}
	for i, option := range state.DesignOptions {
		assert.NotEmpty(t, option.Id)
		ids[option.Id] = true
		assert.Equal(t, fmt.Sprintf("Style %d", i+1), option.StyleName)
		assert.Equal(t, fmt.Sprintf("img:prompt %d", i+1), option.RenderedImage)
		require.Len(t, option.FurnitureItems, 1)
		assert.Len(t, option.FurnitureItems[0].Stores, 1)
	}
	assert.Len(t, ids, 3)

	var sawGenerating bool
	for _, s := range rec.all() {
		if s.Step == entity.StepGenerating {
			sawGenerating = true
			assert.True(t, s.IsLoading)
			assert.Equal(t, constant.GeneratingMessage, s.LoadingMessage)
		}
	}
	assert.True(t, sawGenerating)
}

func TestStartGeneration_StoreFailureDegradesItem(t *testing.T) {
	fake := capabilitytest.New()
	fake.StoresFn = func(ctx context.Context, itemName string, prefs entity.Preferences) ([]entity.Store, error) {
		if itemName == "Chair 2" {
			return nil, capability.ErrServiceFailure
		}
		return []entity.Store{{Name: "Ikea", Url: "https://ikea.com"}}, nil
	}
	w, _ := resultsWorkflow(t, fake)

	options := w.State().DesignOptions
	assert.Len(t, options[0].FurnitureItems[0].Stores, 1)
	assert.NotNil(t, options[1].FurnitureItems[0].Stores)
	assert.Empty(t, options[1].FurnitureItems[0].Stores)
	assert.Nil(t, w.State().LastError)
}

func TestStartGeneration_FailureRollsBack(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *capabilitytest.Fake)
		message string
	}{
		{
			name: "render fails",
			setup: func(f *capabilitytest.Fake) {
				f.SynthesizeFn = func(ctx context.Context, prompt string) (entity.Image, error) {
					if prompt == "prompt 2" {
						return entity.Image{}, fmt.Errorf("synthesize: %w", capability.ErrGenerationFailure)
					}
					return entity.Image{Data: "x", MimeType: "image/png"}, nil
				}
			},
			message: constant.ErrMessageGeneration,
		},
		{
			name: "bad design response",
			setup: func(f *capabilitytest.Fake) {
				f.DesignsFn = func(ctx context.Context, image entity.Image, prefs entity.Preferences) ([]entity.DesignStub, error) {
					return nil, capability.ErrParseFailure
				}
			},
			message: constant.ErrMessageParse,
		},
		{
			name: "unknown error",
			setup: func(f *capabilitytest.Fake) {
				f.DesignsFn = func(ctx context.Context, image entity.Image, prefs entity.Preferences) ([]entity.DesignStub, error) {
					return nil, errors.New("boom")
				}
			},
			message: constant.ErrMessageUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := capabilitytest.New()
			tt.setup(fake)
			w, _, _ := newTestWorkflow(t, fake)
			require.NoError(t, w.UploadImage(pngBytes))
			before := w.State().DesignOptions

			err := w.StartGeneration(context.Background())
			require.Error(t, err)

			state := w.State()
			assert.Equal(t, entity.StepPreferences, state.Step)
			assert.Equal(t, before, state.DesignOptions)
			assert.False(t, state.IsLoading)
			require.NotNil(t, state.LastError)
			assert.Equal(t, tt.message, *state.LastError)
			assert.NotNil(t, state.InputImage)
		})
	}
}

func TestStartGeneration_OutsidePreferences(t *testing.T) {
	w, _ := resultsWorkflow(t, capabilitytest.New())
	assert.ErrorIs(t, w.StartGeneration(context.Background()), ErrInvalidTransition)
}

func TestStartGeneration_StaleAfterRestart(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fake := capabilitytest.New()
	fake.DesignsFn = func(ctx context.Context, image entity.Image, prefs entity.Preferences) ([]entity.DesignStub, error) {
		close(started)
		<-release
		return capabilitytest.Stubs(3), nil
	}
	w, _, _ := newTestWorkflow(t, fake)
	require.NoError(t, w.UploadImage(pngBytes))

	done := make(chan error, 1)
	go func() { done <- w.StartGeneration(context.Background()) }()

	<-started
	w.Restart()
	close(release)

	assert.ErrorIs(t, <-done, ErrStaleResult)
	state := w.State()
	assert.Equal(t, entity.StepUpload, state.Step)
	assert.Empty(t, state.DesignOptions)
	assert.False(t, state.IsLoading)
}

func TestRestart_ReturnsToInitialShape(t *testing.T) {
	fake := capabilitytest.New()
	w, rec := resultsWorkflow(t, fake)
	initial := New(context.Background(), "ws-1", fake, NewPreviewRegistry(0), logger.NewNopLogger(), Config{}).State()

	material := "oak"
	w.UpdatePreferences(entity.PreferencesPatch{Material: &material})
	require.NoError(t, w.GeneratePalettes(context.Background()))
	_, err := w.OpenPerspectiveViewer(w.State().DesignOptions[0].Id)
	require.NoError(t, err)
	preview := w.preview

	w.Restart()

	assert.Equal(t, initial, w.State())
	assert.True(t, preview.Released())
	assert.Equal(t, initial, rec.all()[len(rec.all())-1])

	_, ok := w.Perspectives().Get("anything")
	assert.False(t, ok)
}

func TestEditorAndPerspectiveAreExclusive(t *testing.T) {
	w, _ := resultsWorkflow(t, capabilitytest.New())
	id := w.State().DesignOptions[1].Id

	require.NoError(t, w.OpenEditor(id))
	state := w.State()
	require.NotNil(t, state.ActiveEditTarget)
	assert.Equal(t, id, *state.ActiveEditTarget)
	require.NotNil(t, state.EditingOption)
	assert.Equal(t, id, state.EditingOption.Id)

	set, err := w.OpenPerspectiveViewer(id)
	require.NoError(t, err)
	assert.Equal(t, state.EditingOption.RenderedImage, set.Images[entity.AngleFront])

	state = w.State()
	assert.Nil(t, state.ActiveEditTarget)
	assert.Nil(t, state.EditingOption)
	require.NotNil(t, state.ActivePerspectiveTarget)

	require.NoError(t, w.OpenEditor(id))
	assert.Nil(t, w.State().ActivePerspectiveTarget)

	w.CloseEditor()
	w.ClosePerspectiveViewer()
	state = w.State()
	assert.Nil(t, state.ActiveEditTarget)
	assert.Nil(t, state.ActivePerspectiveTarget)
}

func TestOpenModals_UnknownOption(t *testing.T) {
	w, _ := resultsWorkflow(t, capabilitytest.New())

	assert.ErrorIs(t, w.OpenEditor("nope"), ErrOptionNotFound)
	_, err := w.OpenPerspectiveViewer("nope")
	assert.ErrorIs(t, err, ErrOptionNotFound)
}

func TestCloseEditor_WhenClosedIsNoop(t *testing.T) {
	w, _, rec := newTestWorkflow(t, capabilitytest.New())

	w.CloseEditor()
	w.ClosePerspectiveViewer()

	assert.Nil(t, w.State().ActiveEditTarget)
	assert.Empty(t, rec.all())
}

func TestApplyEdit_ReplacesImageInPlace(t *testing.T) {
	w, _ := resultsWorkflow(t, capabilitytest.New())
	before := w.State().DesignOptions[0]
	require.NoError(t, w.OpenEditor(before.Id))

	require.NoError(t, w.ApplyEdit(context.Background(), before.Id, "  add plants "))

	state := w.State()
	after := state.DesignOptions[0]
	assert.Equal(t, before.Id, after.Id)
	assert.Equal(t, before.StyleName, after.StyleName)
	assert.Equal(t, before.FurnitureItems, after.FurnitureItems)
	assert.Equal(t, before.RenderedImage+"|add plants", after.RenderedImage)
	require.NotNil(t, state.EditingOption)
	assert.Equal(t, after.RenderedImage, state.EditingOption.RenderedImage)
	assert.False(t, state.IsEditing)
}

func TestApplyEdit_CompletesAfterEditorClosed(t *testing.T) {
	w, _ := resultsWorkflow(t, capabilitytest.New())
	before := w.State().DesignOptions[0]
	require.NoError(t, w.OpenEditor(before.Id))

	task, err := w.BeginEdit(before.Id, "add plants")
	require.NoError(t, err)
	w.CloseEditor()
	require.NoError(t, task(context.Background()))

	state := w.State()
	assert.Nil(t, state.ActiveEditTarget)
	assert.False(t, state.IsEditing)
	assert.NotEqual(t, before.RenderedImage, state.DesignOptions[0].RenderedImage)
}

func TestApplyEdit_Errors(t *testing.T) {
	fake := capabilitytest.New()
	w, _ := resultsWorkflow(t, fake)
	id := w.State().DesignOptions[0].Id

	assert.ErrorIs(t, w.ApplyEdit(context.Background(), id, "   "), ErrEmptyInstruction)
	assert.ErrorIs(t, w.ApplyEdit(context.Background(), "nope", "x"), ErrOptionNotFound)

	fake.EditFn = func(ctx context.Context, image entity.Image, instruction string) (entity.Image, error) {
		return entity.Image{}, fmt.Errorf("edit: %w", capability.ErrEditFailure)
	}
	before := w.State().DesignOptions[0].RenderedImage
	err := w.ApplyEdit(context.Background(), id, "make it red")
	assert.ErrorIs(t, err, capability.ErrEditFailure)

	state := w.State()
	assert.False(t, state.IsEditing)
	require.NotNil(t, state.LastError)
	assert.Equal(t, constant.ErrMessageEdit, *state.LastError)
	assert.Equal(t, before, state.DesignOptions[0].RenderedImage)
}

func TestGeneratePalettes(t *testing.T) {
	fake := capabilitytest.New()
	w, _, _ := newTestWorkflow(t, fake)

	require.NoError(t, w.GeneratePalettes(context.Background()))
	assert.Equal(t, 0, fake.Calls("generate_palettes"))

	require.NoError(t, w.UploadImage(pngBytes))
	require.NoError(t, w.GeneratePalettes(context.Background()))

	state := w.State()
	assert.Len(t, state.SuggestedPalettes, 3)
	assert.False(t, state.IsGeneratingPalettes)

	require.NoError(t, w.SelectPalette(1))
	assert.Equal(t, "Palette 2", w.State().Preferences.ColorPalette)
	assert.ErrorIs(t, w.SelectPalette(3), ErrPaletteNotFound)
	assert.ErrorIs(t, w.SelectPalette(-1), ErrPaletteNotFound)
}

func TestGeneratePalettes_FailureClearsFlag(t *testing.T) {
	fake := capabilitytest.New()
	fake.PalettesFn = func(ctx context.Context, image entity.Image) ([]entity.ColorPalette, error) {
		return nil, capability.ErrParseFailure
	}
	w, _, _ := newTestWorkflow(t, fake)
	require.NoError(t, w.UploadImage(pngBytes))

	assert.Error(t, w.GeneratePalettes(context.Background()))

	state := w.State()
	assert.False(t, state.IsGeneratingPalettes)
	require.NotNil(t, state.LastError)
	assert.Equal(t, constant.ErrMessagePalettes, *state.LastError)
	assert.Empty(t, state.SuggestedPalettes)
}

func TestUpdatePreferences_MergesPatch(t *testing.T) {
	w, _, rec := newTestWorkflow(t, capabilitytest.New())

	tier := entity.FurnitureTierSustainable
	w.UpdatePreferences(entity.PreferencesPatch{FurnitureTier: &tier})
	material := "anything goes"
	w.UpdatePreferences(entity.PreferencesPatch{Material: &material})

	prefs := w.State().Preferences
	assert.Equal(t, entity.FurnitureTierSustainable, prefs.FurnitureTier)
	assert.Equal(t, "anything goes", prefs.Material)
	assert.Equal(t, "", prefs.ColorPalette)
	assert.Len(t, rec.all(), 2)
}

func TestPreviewHandle_ReleaseIsIdempotent(t *testing.T) {
	registry := NewPreviewRegistry(0)
	h := registry.Acquire(pngBytes, "image/png")
	other := registry.Acquire(pngBytes, "image/png")

	h.Release()
	h.Release()

	assert.True(t, h.Released())
	assert.Equal(t, 1, registry.Len())
	_, ok := registry.Lookup(other.Token)
	assert.True(t, ok)
}

func TestBeginGeneration_AppliesStepBeforeTaskRuns(t *testing.T) {
	w, _, rec := newTestWorkflow(t, capabilitytest.New())
	require.NoError(t, w.UploadImage(pngBytes))

	task, err := w.BeginGeneration()
	require.NoError(t, err)
	require.NotNil(t, task)

	state := w.State()
	assert.Equal(t, entity.StepGenerating, state.Step)
	assert.True(t, state.IsLoading)
	assert.Equal(t, constant.GeneratingMessage, state.LoadingMessage)

	_, err = w.BeginGeneration()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, task(context.Background()))
	assert.Equal(t, entity.StepResults, w.State().Step)
	assert.Equal(t, entity.StepResults, rec.all()[len(rec.all())-1].Step)
}

func TestBeginPalettes_WithoutImageHasNoTask(t *testing.T) {
	w, _, rec := newTestWorkflow(t, capabilitytest.New())

	task, err := w.BeginPalettes()
	require.NoError(t, err)
	assert.Nil(t, task)
	assert.Empty(t, rec.all())
}
