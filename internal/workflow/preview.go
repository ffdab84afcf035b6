package workflow

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Preview is the raw uploaded image served back to the browser.
type Preview struct {
	Data     []byte
	MimeType string
}

// PreviewRegistry holds uploaded images by opaque token until their handle
// is released.
type PreviewRegistry struct {
	cache *cache.Cache
}

// NewPreviewRegistry keeps previews for at most ttl as a safety net for
// handles that are never released. Zero means no expiry.
func NewPreviewRegistry(ttl time.Duration) *PreviewRegistry {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &PreviewRegistry{cache: cache.New(ttl, 10*time.Minute)}
}

func (r *PreviewRegistry) Acquire(data []byte, mimeType string) *PreviewHandle {
	token := uuid.NewString()
	r.cache.Set(token, Preview{Data: data, MimeType: mimeType}, cache.DefaultExpiration)
	return &PreviewHandle{Token: token, registry: r}
}

func (r *PreviewRegistry) Lookup(token string) (Preview, bool) {
	if x, found := r.cache.Get(token); found {
		return x.(Preview), true
	}
	return Preview{}, false
}

func (r *PreviewRegistry) Len() int {
	return r.cache.ItemCount()
}

// PreviewHandle owns one registry entry. Release is idempotent.
type PreviewHandle struct {
	Token    string
	registry *PreviewRegistry
	once     sync.Once
	released atomic.Bool
}

func (h *PreviewHandle) Release() {
	h.once.Do(func() {
		h.registry.cache.Delete(h.Token)
		h.released.Store(true)
	})
}

func (h *PreviewHandle) Released() bool {
	return h.released.Load()
}
