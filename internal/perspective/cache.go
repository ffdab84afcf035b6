// Package perspective synthesizes and caches alternate camera angles of a
// design option.
package perspective

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"decor-ai-be/internal/constant"
	"decor-ai-be/internal/entity"
	"decor-ai-be/internal/pkg/logger"
	"decor-ai-be/pkg/capability"
	"decor-ai-be/pkg/metrics"
)

const moduleName = "perspective"

var (
	ErrSetNotFound  = errors.New("perspective set not found")
	ErrInvalidAngle = errors.New("invalid perspective angle")
)

var angleSuffix = map[entity.Angle]string{
	entity.AngleLeft:  "45 degrees from the left",
	entity.AngleRight: "45 degrees from the right",
	entity.AngleTop:   "overhead bird's-eye",
}

// Prompt is the synthesis prompt for angle, derived from the option's source prompt.
func Prompt(sourcePrompt string, angle entity.Angle) string {
	return fmt.Sprintf(constant.PerspectivePromptTemplate, sourcePrompt, angleSuffix[angle])
}

type set struct {
	optionId     string
	sourcePrompt string
	images       map[entity.Angle]entity.Image
	current      entity.Angle
	inFlight     map[entity.Angle]bool
	errors       map[entity.Angle]string
	lastError    *string
}

type Config struct {
	// FetchTimeout bounds every angle synthesis.
	FetchTimeout time.Duration
	// OnChange receives a fresh snapshot after every change of a set. It is
	// called with the cache locked and must not call back into the cache.
	OnChange func(entity.PerspectiveSet)
}

// Cache holds one set per design option. Every angle is synthesized at most
// once at a time, and filled angles are never replaced.
type Cache struct {
	capability capability.Capability
	logger     logger.ILogger
	cfg        Config
	baseCtx    context.Context

	mu         sync.Mutex
	sets       map[string]*set
	generation uint64
	wg         sync.WaitGroup
}

// NewCache creates a cache whose fetches run on ctx, so they outlive the
// request that triggered them.
func NewCache(ctx context.Context, c capability.Capability, log logger.ILogger, cfg Config) *Cache {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 2 * time.Minute
	}
	return &Cache{
		capability: c,
		logger:     log,
		cfg:        cfg,
		baseCtx:    ctx,
		sets:       make(map[string]*set),
	}
}

// Open creates the option's set if needed, with the front angle taken from
// the rendered image, and requests every other angle that is not filled,
// not in flight and has not failed.
func (c *Cache) Open(option entity.DesignOption) entity.PerspectiveSet {
	c.mu.Lock()
	s, ok := c.sets[option.Id]
	if !ok {
		front := entity.Image{Data: option.RenderedImage, MimeType: option.RenderedMimeType}
		s = &set{
			optionId:     option.Id,
			sourcePrompt: option.SourcePrompt,
			images:       map[entity.Angle]entity.Image{entity.AngleFront: front},
			current:      entity.AngleFront,
			inFlight:     make(map[entity.Angle]bool),
			errors:       make(map[entity.Angle]string),
		}
		c.sets[option.Id] = s
	}

	for _, angle := range entity.Angles {
		if angle == entity.AngleFront {
			continue
		}
		if _, filled := s.images[angle]; filled || s.inFlight[angle] {
			continue
		}
		if _, failed := s.errors[angle]; failed {
			continue
		}
		c.startFetchLocked(s, angle)
	}
	snap := s.snapshot()
	c.notify(snap)
	c.mu.Unlock()
	return snap
}

// Retry re-requests an angle that failed earlier. Filled or in-flight angles
// are left alone.
func (c *Cache) Retry(optionId string, angle entity.Angle) (entity.PerspectiveSet, error) {
	if !angle.Valid() || angle == entity.AngleFront {
		return entity.PerspectiveSet{}, ErrInvalidAngle
	}

	c.mu.Lock()
	s, ok := c.sets[optionId]
	if !ok {
		c.mu.Unlock()
		return entity.PerspectiveSet{}, ErrSetNotFound
	}
	_, filled := s.images[angle]
	if !filled && !s.inFlight[angle] {
		delete(s.errors, angle)
		s.lastError = nil
		c.startFetchLocked(s, angle)
	}
	snap := s.snapshot()
	c.notify(snap)
	c.mu.Unlock()
	return snap, nil
}

// Select switches the visible angle. Unfilled angles are ignored.
func (c *Cache) Select(optionId string, angle entity.Angle) (entity.PerspectiveSet, error) {
	if !angle.Valid() {
		return entity.PerspectiveSet{}, ErrInvalidAngle
	}

	c.mu.Lock()
	s, ok := c.sets[optionId]
	if !ok {
		c.mu.Unlock()
		return entity.PerspectiveSet{}, ErrSetNotFound
	}
	_, filled := s.images[angle]
	changed := filled && s.current != angle
	if changed {
		s.current = angle
	}
	snap := s.snapshot()
	if changed {
		c.notify(snap)
	}
	c.mu.Unlock()
	return snap, nil
}

func (c *Cache) Get(optionId string) (entity.PerspectiveSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sets[optionId]
	if !ok {
		return entity.PerspectiveSet{}, false
	}
	return s.snapshot(), true
}

// Image returns the synthesized image for one angle, if present.
func (c *Cache) Image(optionId string, angle entity.Angle) (entity.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sets[optionId]
	if !ok {
		return entity.Image{}, false
	}
	img, ok := s.images[angle]
	return img, ok
}

// Reset drops every set. Fetches still running complete but are discarded.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.sets = make(map[string]*set)
}

// Wait blocks until every started fetch has finished.
func (c *Cache) Wait() {
	c.wg.Wait()
}

func (c *Cache) startFetchLocked(s *set, angle entity.Angle) {
	s.inFlight[angle] = true
	generation := c.generation
	prompt := Prompt(s.sourcePrompt, angle)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(c.baseCtx, c.cfg.FetchTimeout)
		defer cancel()
		img, err := c.capability.SynthesizeImage(ctx, prompt)

		c.finish(s, generation, angle, img, err)
	}()
}

func (c *Cache) finish(s *set, generation uint64, angle entity.Angle, img entity.Image, err error) {
	c.mu.Lock()
	if generation != c.generation || c.sets[s.optionId] != s {
		c.mu.Unlock()
		metrics.StaleResultsTotal.WithLabelValues("perspective").Inc()
		c.logger.Debug(moduleName, "Discarding stale perspective", map[string]interface{}{
			"option_id": s.optionId,
			"angle":     string(angle),
		})
		return
	}

	delete(s.inFlight, angle)
	if err != nil {
		message := fmt.Sprintf(constant.ErrMessagePerspective, angle)
		s.errors[angle] = message
		s.lastError = &message
		c.logger.Warn(moduleName, "Perspective synthesis failed", map[string]interface{}{
			"option_id": s.optionId,
			"angle":     string(angle),
			"error":     err.Error(),
		})
	} else if _, filled := s.images[angle]; !filled {
		s.images[angle] = img
	}
	c.notify(s.snapshot())
	c.mu.Unlock()
}

// notify runs under c.mu so observers see snapshots in order.
func (c *Cache) notify(snap entity.PerspectiveSet) {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange(snap)
	}
}

func (s *set) snapshot() entity.PerspectiveSet {
	snap := entity.PerspectiveSet{
		OptionId:    s.optionId,
		Images:      make(map[entity.Angle]string, len(s.images)),
		MimeTypes:   make(map[entity.Angle]string, len(s.images)),
		CurrentView: s.current,
		Loading:     make([]entity.Angle, 0, len(s.inFlight)),
	}
	for angle, img := range s.images {
		snap.Images[angle] = img.Data
		snap.MimeTypes[angle] = img.MimeType
	}
	for _, angle := range entity.Angles {
		if s.inFlight[angle] {
			snap.Loading = append(snap.Loading, angle)
		}
	}
	if s.inFlight[s.current] {
		current := s.current
		snap.LoadingAngle = &current
	} else if len(snap.Loading) > 0 {
		first := snap.Loading[0]
		snap.LoadingAngle = &first
	}
	if len(s.errors) > 0 {
		snap.Errors = make(map[entity.Angle]string, len(s.errors))
		for angle, msg := range s.errors {
			snap.Errors[angle] = msg
		}
	}
	if s.lastError != nil {
		msg := *s.lastError
		snap.LastError = &msg
	}
	return snap
}
