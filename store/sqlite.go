package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/iedon/cms-render-go/content"
)

const schema = `
CREATE TABLE IF NOT EXISTS template_slots (
	template TEXT NOT NULL,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	inherit INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (template, name)
);

CREATE TABLE IF NOT EXISTS pages (
	id INTEGER PRIMARY KEY,
	parent_id INTEGER NOT NULL DEFAULT 0,
	site_id INTEGER NOT NULL,
	path TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL DEFAULT '',
	template TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS page_templates (
	page_id INTEGER NOT NULL,
	language TEXT NOT NULL,
	template TEXT NOT NULL,
	PRIMARY KEY (page_id, language),
	FOREIGN KEY (page_id) REFERENCES pages(id)
);

CREATE TABLE IF NOT EXISTS placeholders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	page_id INTEGER,
	slot TEXT NOT NULL,
	kind INTEGER NOT NULL DEFAULT 0,
	cacheable INTEGER NOT NULL DEFAULT 1,
	width INTEGER NOT NULL DEFAULT 0,
	extra_context TEXT NOT NULL DEFAULT '{}',
	UNIQUE (page_id, slot)
);

CREATE TABLE IF NOT EXISTS plugins (
	id INTEGER PRIMARY KEY,
	placeholder_id INTEGER NOT NULL,
	parent_id INTEGER NOT NULL DEFAULT 0,
	type TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	language TEXT NOT NULL,
	data TEXT NOT NULL DEFAULT '{}',
	FOREIGN KEY (placeholder_id) REFERENCES placeholders(id)
);

CREATE INDEX IF NOT EXISTS plugins_placeholder ON plugins (placeholder_id, language, position);

CREATE TABLE IF NOT EXISTS statics (
	code TEXT NOT NULL,
	site_id INTEGER NOT NULL,
	draft_id INTEGER NOT NULL,
	public_id INTEGER NOT NULL,
	PRIMARY KEY (code, site_id)
);
`

// SQLite is a content store persisted in a SQLite database.
type SQLite struct {
	db        *sql.DB
	siteID    int64
	fallbacks []string
	loads     atomic.Int64
}

// OpenSQLite opens (creating when needed) the database at path. ":memory:"
// keeps everything in process.
func OpenSQLite(path string, siteID int64, fallbacks []string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if siteID == 0 {
		siteID = 1
	}
	return &SQLite{db: db, siteID: siteID, fallbacks: append([]string(nil), fallbacks...)}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Loads() int64 {
	return s.loads.Load()
}

func (s *SQLite) SiteID() int64 {
	return s.siteID
}

// Import writes seed into the database in one transaction, replacing rows
// with the same keys.
func (s *SQLite) Import(ctx context.Context, seed *Seed) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for name, slots := range seed.Templates {
		for i, slot := range slots {
			if _, err = tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO template_slots (template, position, name, inherit) VALUES (?, ?, ?, ?)`,
				name, i, slot.Name, slot.Inherit); err != nil {
				return fmt.Errorf("import template %s: %w", name, err)
			}
		}
	}
	for _, page := range seed.Pages {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO pages (id, parent_id, site_id, path, title, template) VALUES (?, ?, ?, ?, ?, ?)`,
			page.ID, page.Parent, seed.SiteID, page.Path, page.Title, page.Template); err != nil {
			return fmt.Errorf("import page %d: %w", page.ID, err)
		}
		for lang, tpl := range page.Templates {
			if _, err = tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO page_templates (page_id, language, template) VALUES (?, ?, ?)`,
				page.ID, lang, tpl); err != nil {
				return fmt.Errorf("import page %d template: %w", page.ID, err)
			}
		}
	}

	kinds := make(map[int64]content.PlaceholderKind)
	for _, static := range seed.Statics {
		kinds[static.Draft] = content.KindStaticDraft
		kinds[static.Public] = content.KindStaticPublic
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO statics (code, site_id, draft_id, public_id) VALUES (?, ?, ?, ?)`,
			static.Code, seed.SiteID, static.Draft, static.Public); err != nil {
			return fmt.Errorf("import static %s: %w", static.Code, err)
		}
	}
	for _, ph := range seed.Placeholders {
		extra, encErr := json.Marshal(orEmpty(ph.ExtraContext))
		if encErr != nil {
			err = fmt.Errorf("encode placeholder %d context: %w", ph.ID, encErr)
			return err
		}
		var pageID any
		if kinds[ph.ID] == content.KindPage {
			pageID = ph.Page
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO placeholders (id, page_id, slot, kind, cacheable, width, extra_context) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ph.ID, pageID, ph.Slot, int(kinds[ph.ID]), ph.cacheable(), ph.Width, string(extra)); err != nil {
			return fmt.Errorf("import placeholder %d: %w", ph.ID, err)
		}
	}
	for _, p := range seed.Plugins {
		data, encErr := json.Marshal(orEmpty(p.Data))
		if encErr != nil {
			err = fmt.Errorf("encode plugin %d data: %w", p.ID, encErr)
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO plugins (id, placeholder_id, parent_id, type, position, language, data) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Placeholder, p.Parent, p.Type, p.Position, p.Language, string(data)); err != nil {
			return fmt.Errorf("import plugin %d: %w", p.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func (s *SQLite) scanPage(ctx context.Context, row *sql.Row) (*content.Page, error) {
	var page content.Page
	if err := row.Scan(&page.ID, &page.ParentID, &page.SiteID, &page.Path, &page.Title, &page.Template); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT language, template FROM page_templates WHERE page_id = ?`, int64(page.ID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	page.Templates = make(map[string]string)
	for rows.Next() {
		var lang, tpl string
		if err := rows.Scan(&lang, &tpl); err != nil {
			return nil, err
		}
		page.Templates[lang] = tpl
	}
	return &page, rows.Err()
}

const pageColumns = `SELECT id, parent_id, site_id, path, title, template FROM pages`

func (s *SQLite) Page(ctx context.Context, id content.PageID) (*content.Page, error) {
	page, err := s.scanPage(ctx, s.db.QueryRowContext(ctx, pageColumns+` WHERE id = ?`, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %d: %w", id, content.ErrPageNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query page %d: %w", id, err)
	}
	return page, nil
}

func (s *SQLite) PageByPath(ctx context.Context, path string) (*content.Page, error) {
	cleaned, err := content.CleanPath(path)
	if err != nil {
		return nil, err
	}
	page, err := s.scanPage(ctx, s.db.QueryRowContext(ctx, pageColumns+` WHERE path = ?`, cleaned))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %s: %w", cleaned, content.ErrPageNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query page %s: %w", cleaned, err)
	}
	return page, nil
}

func (s *SQLite) Pages(ctx context.Context) ([]*content.Page, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM pages ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	var ids []content.PageID
	for rows.Next() {
		var id content.PageID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*content.Page, 0, len(ids))
	for _, id := range ids {
		page, err := s.Page(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, page)
	}
	return out, nil
}

func (s *SQLite) DeclaredSlots(ctx context.Context, page *content.Page, language string) ([]content.DeclaredSlot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, inherit FROM template_slots WHERE template = ? ORDER BY position`, page.TemplateFor(language))
	if err != nil {
		return nil, fmt.Errorf("declared slots: %w", err)
	}
	defer rows.Close()
	var out []content.DeclaredSlot
	for rows.Next() {
		var slot content.DeclaredSlot
		if err := rows.Scan(&slot.Name, &slot.Inherit); err != nil {
			return nil, err
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}

func scanPlaceholder(scan func(dest ...any) error) (*content.Placeholder, error) {
	var (
		ph     content.Placeholder
		pageID sql.NullInt64
		kind   int
		extra  string
	)
	if err := scan(&ph.ID, &pageID, &ph.Slot, &kind, &ph.Cacheable, &ph.DefaultWidth, &extra); err != nil {
		return nil, err
	}
	ph.PageID = content.PageID(pageID.Int64)
	ph.Kind = content.PlaceholderKind(kind)
	if err := json.Unmarshal([]byte(extra), &ph.ExtraContext); err != nil {
		return nil, fmt.Errorf("decode placeholder %d context: %w", ph.ID, err)
	}
	return &ph, nil
}

const placeholderColumns = `SELECT id, page_id, slot, kind, cacheable, width, extra_context FROM placeholders`

func (s *SQLite) Placeholders(ctx context.Context, page *content.Page, language string, slots []string) ([]*content.Placeholder, error) {
	if slots == nil {
		declared, err := s.DeclaredSlots(ctx, page, language)
		if err != nil {
			return nil, err
		}
		for _, d := range declared {
			slots = append(slots, d.Name)
		}
	}

	out := make([]*content.Placeholder, 0, len(slots))
	for _, slot := range slots {
		slot = content.NormalizeSlot(slot)
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO placeholders (page_id, slot) VALUES (?, ?) ON CONFLICT (page_id, slot) DO NOTHING`,
			int64(page.ID), slot); err != nil {
			return nil, fmt.Errorf("create placeholder %s: %w", slot, err)
		}
		row := s.db.QueryRowContext(ctx, placeholderColumns+` WHERE page_id = ? AND slot = ?`, int64(page.ID), slot)
		ph, err := scanPlaceholder(row.Scan)
		if err != nil {
			return nil, fmt.Errorf("load placeholder %s: %w", slot, err)
		}
		out = append(out, ph)
	}
	return out, nil
}

// ExistingPlaceholders reads the placeholders page has for slots without
// inserting missing ones.
func (s *SQLite) ExistingPlaceholders(ctx context.Context, page *content.Page, slots []string) ([]*content.Placeholder, error) {
	if len(slots) == 0 {
		return []*content.Placeholder{}, nil
	}
	marks := make([]string, len(slots))
	args := make([]any, 0, len(slots)+1)
	args = append(args, int64(page.ID))
	for i, slot := range slots {
		marks[i] = "?"
		args = append(args, content.NormalizeSlot(slot))
	}
	//nolint:gosec // placeholders are literal "?" strings
	query := placeholderColumns + ` WHERE page_id = ? AND slot IN (` + strings.Join(marks, ",") + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("existing placeholders of page %d: %w", page.ID, err)
	}
	defer rows.Close()

	byslot := make(map[string]*content.Placeholder, len(slots))
	for rows.Next() {
		ph, err := scanPlaceholder(rows.Scan)
		if err != nil {
			return nil, err
		}
		byslot[ph.Slot] = ph
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]*content.Placeholder, 0, len(byslot))
	for _, slot := range slots {
		if ph, ok := byslot[content.NormalizeSlot(slot)]; ok {
			out = append(out, ph)
			delete(byslot, ph.Slot)
		}
	}
	return out, nil
}

func (s *SQLite) AssignPlugins(ctx context.Context, req content.LoadRequest) error {
	s.loads.Add(1)
	if len(req.Placeholders) == 0 {
		return nil
	}

	marks := make([]string, len(req.Placeholders))
	args := make([]any, len(req.Placeholders))
	for i, ph := range req.Placeholders {
		marks[i] = "?"
		args[i] = int64(ph.ID)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, placeholder_id, parent_id, type, position, language, data FROM plugins
		WHERE placeholder_id IN (`+strings.Join(marks, ",")+`) ORDER BY placeholder_id, position, id`, args...)
	if err != nil {
		return fmt.Errorf("load plugins: %w", err)
	}
	defer rows.Close()

	stored := make(map[content.PlaceholderID][]*content.Plugin)
	for rows.Next() {
		var (
			p    content.Plugin
			data string
		)
		if err := rows.Scan(&p.ID, &p.PlaceholderID, &p.ParentID, &p.Type, &p.Position, &p.Language, &data); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(data), &p.Data); err != nil {
			return fmt.Errorf("decode plugin %d data: %w", p.ID, err)
		}
		stored[p.PlaceholderID] = append(stored[p.PlaceholderID], &p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, ph := range req.Placeholders {
		available := make(map[string]int)
		for _, p := range stored[ph.ID] {
			available[p.Language]++
		}
		language, ok := pickLanguage(available, req.Language, s.fallbacks, req.IsFallback)
		if !ok {
			ph.SetPlugins(nil)
			continue
		}
		flat := make([]*content.Plugin, 0, available[language])
		for _, p := range stored[ph.ID] {
			if p.Language == language {
				flat = append(flat, p)
			}
		}
		ph.SetPlugins(content.BuildTree(flat))
	}
	return nil
}

func (s *SQLite) StaticPlaceholder(ctx context.Context, code string, siteID int64) (*content.StaticPlaceholder, error) {
	if siteID == 0 {
		siteID = s.siteID
	}
	var draftID, publicID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT draft_id, public_id FROM statics WHERE code = ? AND site_id = ?`, code, siteID).Scan(&draftID, &publicID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("static placeholder %q: %w", code, content.ErrStaticNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query static placeholder %q: %w", code, err)
	}

	static := &content.StaticPlaceholder{Code: code, SiteID: siteID}
	for _, target := range []struct {
		id  int64
		dst **content.Placeholder
	}{{draftID, &static.Draft}, {publicID, &static.Public}} {
		ph, err := scanPlaceholder(s.db.QueryRowContext(ctx, placeholderColumns+` WHERE id = ?`, target.id).Scan)
		if err != nil {
			return nil, fmt.Errorf("load static placeholder %q: %w", code, err)
		}
		*target.dst = ph
	}
	return static, nil
}
