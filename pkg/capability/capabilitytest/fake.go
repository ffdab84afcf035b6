// Package capabilitytest provides an in-memory Capability for tests.
package capabilitytest

import (
	"context"
	"fmt"
	"sync"

	"decor-ai-be/internal/entity"
	"decor-ai-be/pkg/capability"
)

// Fake answers every operation with deterministic data unless the matching
// func field is set. Safe for concurrent use.
type Fake struct {
	DesignsFn    func(ctx context.Context, image entity.Image, prefs entity.Preferences) ([]entity.DesignStub, error)
	SynthesizeFn func(ctx context.Context, prompt string) (entity.Image, error)
	StoresFn     func(ctx context.Context, itemName string, prefs entity.Preferences) ([]entity.Store, error)
	PalettesFn   func(ctx context.Context, image entity.Image) ([]entity.ColorPalette, error)
	EditFn       func(ctx context.Context, image entity.Image, instruction string) (entity.Image, error)
	// ChatFn receives the seed transcript of the conversation it belongs to.
	ChatFn func(ctx context.Context, seed []entity.ChatTurn, message string) (string, error)

	mu            sync.Mutex
	calls         map[string]int
	prompts       []string
	conversations [][]entity.ChatTurn
}

var _ capability.Capability = (*Fake)(nil)

func New() *Fake {
	return &Fake{calls: make(map[string]int)}
}

func (f *Fake) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
}

// Calls returns how many times op ran, e.g. "synthesize_image".
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Prompts returns every SynthesizeImage prompt in call order.
func (f *Fake) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.prompts))
	copy(out, f.prompts)
	return out
}

// Conversations returns the seed transcript of each started conversation.
func (f *Fake) Conversations() [][]entity.ChatTurn {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]entity.ChatTurn, len(f.conversations))
	copy(out, f.conversations)
	return out
}

// Stubs returns n design stubs named Style 1..n with one furniture item each.
func Stubs(n int) []entity.DesignStub {
	stubs := make([]entity.DesignStub, 0, n)
	for i := 1; i <= n; i++ {
		stubs = append(stubs, entity.DesignStub{
			StyleName:    fmt.Sprintf("Style %d", i),
			Description:  fmt.Sprintf("Description %d", i),
			SourcePrompt: fmt.Sprintf("prompt %d", i),
			Furniture: []entity.FurnitureStub{
				{Name: fmt.Sprintf("Chair %d", i), Description: "comfortable"},
			},
		})
	}
	return stubs
}

// Palettes returns n valid palettes named Palette 1..n.
func Palettes(n int) []entity.ColorPalette {
	palettes := make([]entity.ColorPalette, 0, n)
	for i := 1; i <= n; i++ {
		palettes = append(palettes, entity.ColorPalette{
			Name:   fmt.Sprintf("Palette %d", i),
			Colors: []string{"#111111", "#222222", "#333333", "#444444", "#555555"},
		})
	}
	return palettes
}

func (f *Fake) RequestDesigns(ctx context.Context, image entity.Image, prefs entity.Preferences) ([]entity.DesignStub, error) {
	f.record("request_designs")
	if f.DesignsFn != nil {
		return f.DesignsFn(ctx, image, prefs)
	}
	return Stubs(3), nil
}

func (f *Fake) SynthesizeImage(ctx context.Context, prompt string) (entity.Image, error) {
	f.record("synthesize_image")
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.SynthesizeFn != nil {
		return f.SynthesizeFn(ctx, prompt)
	}
	return entity.Image{Data: "img:" + prompt, MimeType: "image/png"}, nil
}

func (f *Fake) FindStores(ctx context.Context, itemName string, prefs entity.Preferences) ([]entity.Store, error) {
	f.record("find_stores")
	if f.StoresFn != nil {
		return f.StoresFn(ctx, itemName, prefs)
	}
	return []entity.Store{{Name: "Ikea", Url: "https://www.ikea.com/" + itemName}}, nil
}

func (f *Fake) GenerateColorPalettes(ctx context.Context, image entity.Image) ([]entity.ColorPalette, error) {
	f.record("generate_palettes")
	if f.PalettesFn != nil {
		return f.PalettesFn(ctx, image)
	}
	return Palettes(3), nil
}

func (f *Fake) EditImage(ctx context.Context, image entity.Image, instruction string) (entity.Image, error) {
	f.record("edit_image")
	if f.EditFn != nil {
		return f.EditFn(ctx, image, instruction)
	}
	return entity.Image{Data: image.Data + "|" + instruction, MimeType: image.MimeType}, nil
}

func (f *Fake) StartConversation(transcript []entity.ChatTurn) capability.Conversation {
	f.record("start_conversation")
	seed := make([]entity.ChatTurn, len(transcript))
	copy(seed, transcript)
	f.mu.Lock()
	f.conversations = append(f.conversations, seed)
	f.mu.Unlock()
	return &fakeConversation{fake: f, seed: seed}
}

type fakeConversation struct {
	fake *Fake
	seed []entity.ChatTurn
}

func (c *fakeConversation) Send(ctx context.Context, message string) (string, error) {
	c.fake.record("chat")
	if c.fake.ChatFn != nil {
		return c.fake.ChatFn(ctx, c.seed, message)
	}
	return "echo: " + message, nil
}
