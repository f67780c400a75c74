package site

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iedon/cms-render-go/fsutil"
)

// BuildStatic renders every page in every configured language into the
// output directory. The previous output stays in place until the new build
// is complete.
func (s *Service) BuildStatic(ctx context.Context) error {
	finalDir := s.cfg.OutputDir
	parent := filepath.Dir(finalDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("ensure output parent: %w", err)
	}
	tempDir, err := os.MkdirTemp(parent, ".__build-")
	if err != nil {
		return fmt.Errorf("create temp output dir: %w", err)
	}
	activated := false
	defer func() {
		if !activated {
			_ = os.RemoveAll(tempDir)
		}
	}()

	pages, err := s.store.Pages(ctx)
	if err != nil {
		return fmt.Errorf("list pages: %w", err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("site has no pages")
	}

	written := 0
	for _, page := range pages {
		if isReservedPath(page.Path) {
			s.logger.Warn("skip reserved page", "path", page.Path)
			continue
		}
		for _, lang := range s.languages {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := s.RenderPage(ctx, PageRequest{Path: page.Path, Language: lang})
			if err != nil {
				return fmt.Errorf("build %s (%s): %w", page.Path, lang, err)
			}
			target := filepath.Join(tempDir, outputFile(page.Path, lang, s.cfg.DefaultLanguage))
			if err := fsutil.WriteFile(target, result.HTML); err != nil {
				return fmt.Errorf("write %s: %w", target, err)
			}
			written++
		}
	}

	themeDir := filepath.Join(tempDir, "theme")
	if s.templates.StaticDir != "" {
		if err := fsutil.CopyTree(s.templates.StaticDir, themeDir); err != nil {
			return fmt.Errorf("copy theme assets: %w", err)
		}
	}
	if err := fsutil.WriteFile(filepath.Join(themeDir, "highlight.css"), []byte(s.HighlightCSS())); err != nil {
		return fmt.Errorf("write highlight stylesheet: %w", err)
	}

	if err := fsutil.ReplaceDir(tempDir, finalDir); err != nil {
		return err
	}
	activated = true
	s.logger.Info("static build completed", "output", finalDir, "files", written)
	return nil
}
