package perspective

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"decor-ai-be/internal/entity"
	"decor-ai-be/internal/pkg/logger"
	"decor-ai-be/pkg/capability/capabilitytest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOption() entity.DesignOption {
	return entity.DesignOption{
		Id:               "opt-1",
		StyleName:        "Modern",
		RenderedImage:    "front-data",
		RenderedMimeType: "image/png",
		SourcePrompt:     "a modern living room",
	}
}

func newTestCache(fake *capabilitytest.Fake, onChange func(entity.PerspectiveSet)) *Cache {
	return NewCache(context.Background(), fake, logger.NewNopLogger(), Config{OnChange: onChange})
}

func TestPrompt(t *testing.T) {
	assert.Equal(t, "a modern living room, shown from a 45 degrees from the left perspective.", Prompt("a modern living room", entity.AngleLeft))
	assert.Equal(t, "a modern living room, shown from a 45 degrees from the right perspective.", Prompt("a modern living room", entity.AngleRight))
	assert.Equal(t, "a modern living room, shown from a overhead bird's-eye perspective.", Prompt("a modern living room", entity.AngleTop))
}

func TestOpen_FillsFrontAndFetchesOtherAnglesOnce(t *testing.T) {
	fake := capabilitytest.New()
	cache := newTestCache(fake, nil)

	snap := cache.Open(testOption())
	assert.Equal(t, "front-data", snap.Images[entity.AngleFront])
	assert.Equal(t, entity.AngleFront, snap.CurrentView)
	assert.ElementsMatch(t, []entity.Angle{entity.AngleLeft, entity.AngleRight, entity.AngleTop}, snap.Loading)

	cache.Wait()

	prompts := fake.Prompts()
	sort.Strings(prompts)
	assert.Equal(t, []string{
		"a modern living room, shown from a 45 degrees from the left perspective.",
		"a modern living room, shown from a 45 degrees from the right perspective.",
		"a modern living room, shown from a overhead bird's-eye perspective.",
	}, prompts)

	got, ok := cache.Get("opt-1")
	require.True(t, ok)
	assert.Len(t, got.Images, 4)
	assert.Empty(t, got.Loading)
	assert.Nil(t, got.LoadingAngle)

	// Filled angles are not requested again.
	cache.Open(testOption())
	cache.Wait()
	assert.Equal(t, 3, fake.Calls("synthesize_image"))
}

func TestOpen_NoDuplicateInFlightRequests(t *testing.T) {
	release := make(chan struct{})
	fake := capabilitytest.New()
	fake.SynthesizeFn = func(ctx context.Context, prompt string) (entity.Image, error) {
		<-release
		return entity.Image{Data: prompt, MimeType: "image/png"}, nil
	}
	cache := newTestCache(fake, nil)

	cache.Open(testOption())
	snap := cache.Open(testOption())
	require.NotNil(t, snap.LoadingAngle)
	assert.Equal(t, entity.AngleLeft, *snap.LoadingAngle)

	close(release)
	cache.Wait()
	assert.Equal(t, 3, fake.Calls("synthesize_image"))
}

func TestFailedAngle_StaysEmptyUntilRetry(t *testing.T) {
	var failLeft sync.Once
	fake := capabilitytest.New()
	fake.SynthesizeFn = func(ctx context.Context, prompt string) (entity.Image, error) {
		if prompt == Prompt("a modern living room", entity.AngleLeft) {
			var err error
			failLeft.Do(func() { err = errors.New("boom") })
			if err != nil {
				return entity.Image{}, err
			}
		}
		return entity.Image{Data: prompt, MimeType: "image/png"}, nil
	}
	cache := newTestCache(fake, nil)

	cache.Open(testOption())
	cache.Wait()

	snap, _ := cache.Get("opt-1")
	assert.NotContains(t, snap.Images, entity.AngleLeft)
	assert.Equal(t, "Failed to load the left view.", snap.Errors[entity.AngleLeft])
	require.NotNil(t, snap.LastError)
	assert.Equal(t, "Failed to load the left view.", *snap.LastError)

	cache.Open(testOption())
	cache.Wait()
	assert.Equal(t, 3, fake.Calls("synthesize_image"))

	_, err := cache.Retry("opt-1", entity.AngleLeft)
	require.NoError(t, err)
	cache.Wait()
	assert.Equal(t, 4, fake.Calls("synthesize_image"))

	snap, _ = cache.Get("opt-1")
	assert.Contains(t, snap.Images, entity.AngleLeft)
	assert.Empty(t, snap.Errors)
	assert.Nil(t, snap.LastError)
}

func TestRetry_Errors(t *testing.T) {
	cache := newTestCache(capabilitytest.New(), nil)

	_, err := cache.Retry("missing", entity.AngleLeft)
	assert.ErrorIs(t, err, ErrSetNotFound)

	_, err = cache.Retry("missing", entity.AngleFront)
	assert.ErrorIs(t, err, ErrInvalidAngle)

	_, err = cache.Select("missing", entity.Angle("bottom"))
	assert.ErrorIs(t, err, ErrInvalidAngle)
}

func TestSelect_RequiresFilledAngle(t *testing.T) {
	release := make(chan struct{})
	fake := capabilitytest.New()
	fake.SynthesizeFn = func(ctx context.Context, prompt string) (entity.Image, error) {
		<-release
		return entity.Image{Data: prompt, MimeType: "image/png"}, nil
	}
	cache := newTestCache(fake, nil)
	cache.Open(testOption())

	snap, err := cache.Select("opt-1", entity.AngleTop)
	require.NoError(t, err)
	assert.Equal(t, entity.AngleFront, snap.CurrentView)

	close(release)
	cache.Wait()

	snap, err = cache.Select("opt-1", entity.AngleTop)
	require.NoError(t, err)
	assert.Equal(t, entity.AngleTop, snap.CurrentView)
}

func TestReset_DiscardsLateResults(t *testing.T) {
	release := make(chan struct{})
	fake := capabilitytest.New()
	fake.SynthesizeFn = func(ctx context.Context, prompt string) (entity.Image, error) {
		<-release
		return entity.Image{Data: prompt, MimeType: "image/png"}, nil
	}

	var mu sync.Mutex
	notified := 0
	cache := newTestCache(fake, func(entity.PerspectiveSet) {
		mu.Lock()
		notified++
		mu.Unlock()
	})

	cache.Open(testOption())
	cache.Reset()
	close(release)
	cache.Wait()

	_, ok := cache.Get("opt-1")
	assert.False(t, ok)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, notified)
}

func TestImage(t *testing.T) {
	cache := newTestCache(capabilitytest.New(), nil)
	cache.Open(testOption())
	cache.Wait()

	img, ok := cache.Image("opt-1", entity.AngleFront)
	require.True(t, ok)
	assert.Equal(t, entity.Image{Data: "front-data", MimeType: "image/png"}, img)

	_, ok = cache.Image("other", entity.AngleFront)
	assert.False(t, ok)
}
