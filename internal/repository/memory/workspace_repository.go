package memory

import (
	"time"

	"decor-ai-be/internal/chat"
	"decor-ai-be/internal/workflow"

	"github.com/patrickmn/go-cache"
)

// Workspace is everything one browser tab works with.
type Workspace struct {
	Id        string
	Workflow  *workflow.Workflow
	Chat      *chat.Session
	CreatedAt time.Time
}

type WorkspaceRepository struct {
	cache *cache.Cache
}

// NewWorkspaceRepository keeps idle workspaces for ttl. Evicted workspaces
// release their uploaded image.
func NewWorkspaceRepository(ttl time.Duration) *WorkspaceRepository {
	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	// Purge expired items every 10 minutes
	c := cache.New(ttl, 10*time.Minute)
	c.OnEvicted(func(_ string, x interface{}) {
		if ws, ok := x.(*Workspace); ok {
			ws.Workflow.Close()
		}
	})
	return &WorkspaceRepository{
		cache: c,
	}
}

func (r *WorkspaceRepository) Save(ws *Workspace) {
	r.cache.Set(ws.Id, ws, cache.DefaultExpiration)
}

// Get returns the workspace and extends its lifetime.
func (r *WorkspaceRepository) Get(id string) (*Workspace, bool) {
	if x, found := r.cache.Get(id); found {
		ws := x.(*Workspace)
		r.cache.Set(id, ws, cache.DefaultExpiration)
		return ws, true
	}
	return nil, false
}

func (r *WorkspaceRepository) Delete(id string) {
	r.cache.Delete(id)
}

func (r *WorkspaceRepository) Count() int {
	return r.cache.ItemCount()
}
