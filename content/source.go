package content

import "context"

// PageTree exposes the page hierarchy and its placeholders.
type PageTree interface {
	Page(ctx context.Context, id PageID) (*Page, error)
	// DeclaredSlots lists the slots declared by the layout the page uses for language.
	DeclaredSlots(ctx context.Context, page *Page, language string) ([]DeclaredSlot, error)
	// Placeholders returns the page placeholders for slots, creating missing
	// ones. A nil slots slice means every declared slot.
	Placeholders(ctx context.Context, page *Page, language string, slots []string) ([]*Placeholder, error)
	// ExistingPlaceholders returns the placeholders page already has for
	// slots, in slots order, and never creates any.
	ExistingPlaceholders(ctx context.Context, page *Page, slots []string) ([]*Placeholder, error)
}

// LoadRequest asks a Loader to attach plugin trees in one pass.
type LoadRequest struct {
	Placeholders []*Placeholder
	Template     string
	Language     string
	SiteID       int64
	// IsFallback is set for ancestor passes of inheritance; loaders must not
	// substitute other languages for those.
	IsFallback bool
}

// Loader bulk-attaches root plugin trees to placeholders.
type Loader interface {
	AssignPlugins(ctx context.Context, req LoadRequest) error
}

// StaticSource resolves static placeholders by code.
type StaticSource interface {
	StaticPlaceholder(ctx context.Context, code string, siteID int64) (*StaticPlaceholder, error)
}
