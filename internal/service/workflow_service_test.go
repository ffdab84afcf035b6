package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"decor-ai-be/internal/constant"
	"decor-ai-be/internal/dto"
	"decor-ai-be/internal/entity"
	"decor-ai-be/internal/pkg/logger"
	"decor-ai-be/internal/repository/memory"
	"decor-ai-be/internal/workflow"
	"decor-ai-be/pkg/capability"
	"decor-ai-be/pkg/capability/capabilitytest"
	"decor-ai-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type recordingPublisher struct {
	mu       sync.Mutex
	messages []dto.PublishWorkspaceMessage
}

func (p *recordingPublisher) Publish(ctx context.Context, payload []byte) error {
	var msg dto.PublishWorkspaceMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingPublisher) ofType(msgType string) []dto.PublishWorkspaceMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []dto.PublishWorkspaceMessage
	for _, m := range p.messages {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

type recordingEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEvents) Publish(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEvents) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

type fixture struct {
	svc    IWorkflowService
	chat   IChatService
	repo   *memory.WorkspaceRepository
	pub    *recordingPublisher
	events *recordingEvents
}

func newFixture(t *testing.T, fake *capabilitytest.Fake) *fixture {
	t.Helper()
	repo := memory.NewWorkspaceRepository(time.Hour)
	pub := &recordingPublisher{}
	evts := &recordingEvents{}
	log := logger.NewNopLogger()
	svc := NewWorkflowService(context.Background(), repo, workflow.NewPreviewRegistry(0), fake, pub, evts, log, WorkflowServiceConfig{
		GenerationTimeout: time.Minute,
		PaletteTimeout:    time.Minute,
		EditTimeout:       time.Minute,
	})
	t.Cleanup(svc.Wait)
	return &fixture{
		svc:    svc,
		chat:   NewChatService(repo, time.Minute, log),
		repo:   repo,
		pub:    pub,
		events: evts,
	}
}

func (f *fixture) results(t *testing.T) (string, entity.WorkflowState) {
	t.Helper()
	ctx := context.Background()
	created, err := f.svc.CreateWorkspace(ctx)
	require.NoError(t, err)
	_, err = f.svc.UploadImage(ctx, created.Id, pngBytes)
	require.NoError(t, err)
	_, err = f.svc.StartGeneration(ctx, created.Id)
	require.NoError(t, err)
	f.svc.Wait()

	state, err := f.svc.GetState(ctx, created.Id)
	require.NoError(t, err)
	require.Equal(t, entity.StepResults, state.Step)
	return created.Id, state
}

func TestCreateWorkspace(t *testing.T) {
	f := newFixture(t, capabilitytest.New())

	created, err := f.svc.CreateWorkspace(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, created.Id)
	assert.Equal(t, entity.StepUpload, created.State.Step)
	assert.Equal(t, 1, f.repo.Count())

	transcript, err := f.chat.Transcript(context.Background(), created.Id)
	require.NoError(t, err)
	require.Len(t, transcript.Turns, 1)
	assert.Equal(t, constant.ChatGreeting, transcript.Turns[0].Text)
}

func TestUnknownWorkspace(t *testing.T) {
	f := newFixture(t, capabilitytest.New())
	ctx := context.Background()

	_, err := f.svc.GetState(ctx, "missing")
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
	_, err = f.svc.StartGeneration(ctx, "missing")
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
	_, err = f.chat.Send(ctx, "missing", &dto.SendChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
	assert.ErrorIs(t, f.svc.DeleteWorkspace(ctx, "missing"), ErrWorkspaceNotFound)
}

func TestUploadAndPreview(t *testing.T) {
	f := newFixture(t, capabilitytest.New())
	ctx := context.Background()
	created, err := f.svc.CreateWorkspace(ctx)
	require.NoError(t, err)

	state, err := f.svc.UploadImage(ctx, created.Id, pngBytes)
	require.NoError(t, err)
	require.NotNil(t, state.InputImage)
	assert.Equal(t, entity.StepPreferences, state.Step)
	assert.Contains(t, state.InputImage.PreviewUrl, "/api/workflow/v1/"+created.Id+"/preview/")

	token := state.InputImage.PreviewUrl[len("/api/workflow/v1/"+created.Id+"/preview/"):]
	preview, err := f.svc.Preview(ctx, created.Id, token)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, preview.Data)
	assert.Equal(t, "image/png", preview.MimeType)

	_, err = f.svc.Preview(ctx, created.Id, "other")
	assert.ErrorIs(t, err, ErrPreviewNotFound)

	_, err = f.svc.UploadImage(ctx, created.Id, []byte("plain text"))
	assert.ErrorIs(t, err, workflow.ErrUnsupportedImage)
}

func TestStartGeneration_ReturnsGeneratingAndFinishesInBackground(t *testing.T) {
	release := make(chan struct{})
	fake := capabilitytest.New()
	fake.DesignsFn = func(ctx context.Context, image entity.Image, prefs entity.Preferences) ([]entity.DesignStub, error) {
		<-release
		return capabilitytest.Stubs(3), nil
	}
	f := newFixture(t, fake)
	ctx := context.Background()
	created, err := f.svc.CreateWorkspace(ctx)
	require.NoError(t, err)
	_, err = f.svc.UploadImage(ctx, created.Id, pngBytes)
	require.NoError(t, err)

	state, err := f.svc.StartGeneration(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.StepGenerating, state.Step)
	assert.True(t, state.IsLoading)

	_, err = f.svc.StartGeneration(ctx, created.Id)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	close(release)
	f.svc.Wait()

	state, err = f.svc.GetState(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.StepResults, state.Step)
	assert.Len(t, state.DesignOptions, 3)

	published := f.events.all()
	require.Len(t, published, 1)
	assert.Equal(t, events.DesignsGenerated, published[0].EventType())
	assert.Equal(t, created.Id, published[0].Payload()["workspace_id"])
	assert.Equal(t, []string{"Style 1", "Style 2", "Style 3"}, published[0].Payload()["styles"])

	pushed := f.pub.ofType(constant.PushTypeWorkflowState)
	require.NotEmpty(t, pushed)
	var last entity.WorkflowState
	require.NoError(t, json.Unmarshal(pushed[len(pushed)-1].Data, &last))
	assert.Equal(t, entity.StepResults, last.Step)
	assert.Equal(t, created.Id, pushed[len(pushed)-1].WorkspaceId)
}

func TestStartGeneration_FailureDoesNotPublishEvent(t *testing.T) {
	fake := capabilitytest.New()
	fake.DesignsFn = func(ctx context.Context, image entity.Image, prefs entity.Preferences) ([]entity.DesignStub, error) {
		return nil, capability.ErrParseFailure
	}
	f := newFixture(t, fake)
	ctx := context.Background()
	created, err := f.svc.CreateWorkspace(ctx)
	require.NoError(t, err)
	_, err = f.svc.UploadImage(ctx, created.Id, pngBytes)
	require.NoError(t, err)

	_, err = f.svc.StartGeneration(ctx, created.Id)
	require.NoError(t, err)
	f.svc.Wait()

	state, err := f.svc.GetState(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.StepPreferences, state.Step)
	require.NotNil(t, state.LastError)
	assert.Equal(t, constant.ErrMessageParse, *state.LastError)
	assert.Empty(t, f.events.all())
}

func TestApplyEdit_Async(t *testing.T) {
	f := newFixture(t, capabilitytest.New())
	id, results := f.results(t)
	ctx := context.Background()
	option := results.DesignOptions[0]

	_, err := f.svc.ApplyEdit(ctx, id, &dto.ApplyEditRequest{OptionId: option.Id, Instruction: "   "})
	assert.ErrorIs(t, err, workflow.ErrEmptyInstruction)

	state, err := f.svc.ApplyEdit(ctx, id, &dto.ApplyEditRequest{OptionId: option.Id, Instruction: "add plants"})
	require.NoError(t, err)
	assert.True(t, state.IsEditing)
	f.svc.Wait()

	state, err = f.svc.GetState(ctx, id)
	require.NoError(t, err)
	assert.False(t, state.IsEditing)
	assert.Equal(t, option.Id, state.DesignOptions[0].Id)
	assert.Equal(t, option.RenderedImage+"|add plants", state.DesignOptions[0].RenderedImage)
}

func TestPalettes_GenerateAndSelect(t *testing.T) {
	f := newFixture(t, capabilitytest.New())
	ctx := context.Background()
	created, err := f.svc.CreateWorkspace(ctx)
	require.NoError(t, err)

	// Without an image nothing starts.
	state, err := f.svc.GeneratePalettes(ctx, created.Id)
	require.NoError(t, err)
	assert.False(t, state.IsGeneratingPalettes)

	_, err = f.svc.UploadImage(ctx, created.Id, pngBytes)
	require.NoError(t, err)
	_, err = f.svc.GeneratePalettes(ctx, created.Id)
	require.NoError(t, err)
	f.svc.Wait()

	state, err = f.svc.SelectPalette(ctx, created.Id, 1)
	require.NoError(t, err)
	assert.Equal(t, "Palette 2", state.Preferences.ColorPalette)

	_, err = f.svc.SelectPalette(ctx, created.Id, 7)
	assert.ErrorIs(t, err, workflow.ErrPaletteNotFound)
}

func TestPerspective_OpenSelectRetry(t *testing.T) {
	fake := capabilitytest.New()
	f := newFixture(t, fake)
	id, results := f.results(t)
	ctx := context.Background()
	optionId := results.DesignOptions[0].Id

	var failLeft sync.Once
	fake.SynthesizeFn = func(ctx context.Context, prompt string) (entity.Image, error) {
		var err error
		failLeft.Do(func() { err = errors.New("boom") })
		if err != nil {
			return entity.Image{}, err
		}
		return entity.Image{Data: "img:" + prompt, MimeType: "image/png"}, nil
	}

	set, err := f.svc.OpenPerspective(ctx, id, optionId)
	require.NoError(t, err)
	assert.Equal(t, entity.AngleFront, set.CurrentView)

	ws, ok := f.repo.Get(id)
	require.True(t, ok)
	ws.Workflow.Perspectives().Wait()

	set, err = f.svc.GetPerspective(ctx, id, optionId)
	require.NoError(t, err)
	assert.Len(t, set.Images, 3)
	require.Len(t, set.Errors, 1)

	var failed entity.Angle
	for angle := range set.Errors {
		failed = angle
	}
	set, err = f.svc.RetryPerspective(ctx, id, optionId, failed)
	require.NoError(t, err)
	ws.Workflow.Perspectives().Wait()

	set, err = f.svc.SelectPerspective(ctx, id, optionId, failed)
	require.NoError(t, err)
	assert.Equal(t, failed, set.CurrentView)
	assert.Len(t, set.Images, 4)

	assert.NotEmpty(t, f.pub.ofType(constant.PushTypePerspective))

	_, err = f.svc.GetPerspective(ctx, id, results.DesignOptions[1].Id)
	assert.ErrorIs(t, err, workflow.ErrOptionNotFound)

	state, err := f.svc.ClosePerspective(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, state.ActivePerspectiveTarget)
}

func TestEditorOpenClose(t *testing.T) {
	f := newFixture(t, capabilitytest.New())
	id, results := f.results(t)
	ctx := context.Background()

	state, err := f.svc.OpenEditor(ctx, id, results.DesignOptions[2].Id)
	require.NoError(t, err)
	require.NotNil(t, state.EditingOption)
	assert.Equal(t, results.DesignOptions[2].Id, state.EditingOption.Id)

	_, err = f.svc.OpenEditor(ctx, id, "nope")
	assert.ErrorIs(t, err, workflow.ErrOptionNotFound)

	state, err = f.svc.CloseEditor(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, state.ActiveEditTarget)
}

func TestRestartAndDelete(t *testing.T) {
	f := newFixture(t, capabilitytest.New())
	id, _ := f.results(t)
	ctx := context.Background()

	state, err := f.svc.Restart(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StepUpload, state.Step)
	assert.Empty(t, state.DesignOptions)
	assert.Nil(t, state.InputImage)

	require.NoError(t, f.svc.DeleteWorkspace(ctx, id))
	assert.Equal(t, 0, f.repo.Count())
	_, err = f.svc.GetState(ctx, id)
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestChat_SendAndDispose(t *testing.T) {
	f := newFixture(t, capabilitytest.New())
	ctx := context.Background()
	created, err := f.svc.CreateWorkspace(ctx)
	require.NoError(t, err)

	res, err := f.chat.Send(ctx, created.Id, &dto.SendChatRequest{Message: "which sofa?"})
	require.NoError(t, err)
	require.Len(t, res.Turns, 3)
	assert.Equal(t, entity.ChatRoleUser, res.Turns[1].Role)
	assert.Equal(t, "echo: which sofa?", res.Turns[2].Text)

	pushed := f.pub.ofType(constant.PushTypeChat)
	assert.Len(t, pushed, 2)

	res, err = f.chat.Dispose(ctx, created.Id)
	require.NoError(t, err)
	require.Len(t, res.Turns, 1)
	assert.Equal(t, constant.ChatGreeting, res.Turns[0].Text)
}
