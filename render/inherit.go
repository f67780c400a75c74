package render

import (
	"context"
	"fmt"

	"github.com/iedon/cms-render-go/content"
	"github.com/iedon/cms-render-go/plugins"
)

// RenderPagePlaceholder renders slot of the current page. With inherit set,
// an empty result falls back to the nearest ancestor whose same slot has
// content, unless the viewer is editing.
func (r *ContentRenderer) RenderPagePlaceholder(ctx context.Context, slot string, pctx *plugins.Context, inherit bool, fallback Fallback) (string, error) {
	page := r.page
	if page == nil {
		return "", nil
	}
	slot = content.NormalizeSlot(slot)

	ph, err := r.pagePlaceholder(ctx, page, slot)
	if err != nil {
		return "", err
	}
	out, err := r.RenderPlaceholder(ctx, ph, pctx, Options{Page: page, Editable: true, UseCache: true, Fallback: fallback})
	if err != nil {
		return "", err
	}
	if out != "" || !page.HasParent() {
		return out, nil
	}
	if !inherit || r.editMode {
		return out, nil
	}
	if _, primed := r.scope.page(page.ParentID); !primed {
		return out, nil
	}

	cacheEnabled := r.CacheEnabled()
	for id := page.ParentID; id != 0; {
		idx, primed := r.scope.page(id)
		if !primed {
			// Never load plugins for an ancestor here; only step over it.
			ancestor, err := r.deps.Pages.Page(ctx, id)
			if err != nil {
				r.logger.Debug("stop ancestor walk", "page", id, "error", err)
				break
			}
			id = ancestor.ParentID
			continue
		}

		candidate, ok := idx.slots[slot]
		if ok && !candidate.IsStatic() {
			found := candidate.HasPlugins()
			if !found && cacheEnabled {
				_, found = r.cachedContent(ctx, candidate, r.session.RequestLanguage)
			}
			if found {
				return r.RenderPlaceholder(ctx, candidate, pctx, Options{Page: idx.page, UseCache: true})
			}
		}
		id = idx.page.ParentID
	}
	return out, nil
}

// pagePlaceholder resolves slot on page, priming the page index first when
// needed.
func (r *ContentRenderer) pagePlaceholder(ctx context.Context, page *content.Page, slot string) (*content.Placeholder, error) {
	idx, ok := r.scope.page(page.ID)
	if ok {
		if ph, found := idx.slots[slot]; found {
			return ph, nil
		}
	}
	if !ok || !idx.complete {
		if err := r.preload(ctx, page); err != nil {
			return nil, err
		}
		idx, _ = r.scope.page(page.ID)
		if ph, found := idx.slots[slot]; found {
			return ph, nil
		}
	}
	return nil, fmt.Errorf("%q on page %d: %w", slot, page.ID, content.ErrPlaceholderNotFound)
}

type preloadTask struct {
	page *content.Page
	// slots restricts the pass to these slots; nil means every declared slot.
	slots   []string
	inherit bool
}

// preload attaches plugin trees to the placeholders of page in one load and
// walks up the tree for empty inheritable slots, using an explicit worklist
// instead of recursion.
func (r *ContentRenderer) preload(ctx context.Context, page *content.Page) error {
	language := r.session.RequestLanguage
	cacheEnabled := r.CacheEnabled()

	work := []preloadTask{{page: page}}
	for len(work) > 0 {
		task := work[len(work)-1]
		work = work[:len(work)-1]

		var (
			placeholders []*content.Placeholder
			err          error
		)
		if task.slots == nil {
			placeholders, err = r.deps.Pages.Placeholders(ctx, task.page, language, nil)
		} else {
			// Ancestor passes only read; slots the ancestor lacks end the chain.
			placeholders, err = r.deps.Pages.ExistingPlaceholders(ctx, task.page, task.slots)
		}
		if err != nil {
			return fmt.Errorf("placeholders of page %d: %w", task.page.ID, err)
		}

		inheritable := make(map[string]bool)
		switch {
		case task.inherit:
			for _, ph := range placeholders {
				inheritable[ph.Slot] = true
			}
		case !r.editMode:
			declared, err := r.deps.Pages.DeclaredSlots(ctx, task.page, language)
			if err != nil {
				return fmt.Errorf("declared slots of page %d: %w", task.page.ID, err)
			}
			for _, d := range declared {
				if d.Inherit {
					inheritable[content.NormalizeSlot(d.Name)] = true
				}
			}
		}

		fetch := placeholders
		if cacheEnabled {
			fetch = make([]*content.Placeholder, 0, len(placeholders))
			for _, ph := range placeholders {
				if _, hit := r.cachedContent(ctx, ph, language); !hit {
					fetch = append(fetch, ph)
				}
			}
		}
		if len(fetch) > 0 {
			err := r.deps.Loader.AssignPlugins(ctx, content.LoadRequest{
				Placeholders: fetch,
				Template:     task.page.TemplateFor(language),
				Language:     language,
				SiteID:       r.deps.SiteID,
				IsFallback:   task.inherit,
			})
			if err != nil {
				return fmt.Errorf("load plugins of page %d: %w", task.page.ID, err)
			}
		}

		var inherit []string
		for _, ph := range placeholders {
			if !ph.HasPlugins() && inheritable[ph.Slot] {
				inherit = append(inherit, ph.Slot)
			}
		}
		if len(inherit) > 0 && task.page.HasParent() {
			parent, err := r.deps.Pages.Page(ctx, task.page.ParentID)
			if err != nil {
				return fmt.Errorf("parent of page %d: %w", task.page.ID, err)
			}
			work = append(work, preloadTask{page: parent, slots: inherit, inherit: true})
		}

		idx := &pageIndex{page: task.page, slots: make(map[string]*content.Placeholder, len(placeholders)), complete: task.slots == nil}
		for _, ph := range placeholders {
			idx.slots[ph.Slot] = ph
		}
		if prev, ok := r.scope.page(task.page.ID); ok && !idx.complete {
			// Keep what an earlier pass already resolved for the other slots.
			for slot, ph := range prev.slots {
				if _, dup := idx.slots[slot]; !dup {
					idx.slots[slot] = ph
				}
			}
			idx.complete = prev.complete
		}
		r.scope.setPage(idx)
	}
	return nil
}
