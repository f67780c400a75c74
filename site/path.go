package site

import (
	"errors"
	"path"
	"path/filepath"
	"strings"

	"github.com/iedon/cms-render-go/content"
)

var reservedRoots = map[string]struct{}{
	"api":     {},
	"theme":   {},
	"healthz": {},
}

// resolvePath cleans a request path and rejects routes owned by the server.
func resolvePath(input string) (string, error) {
	raw := strings.TrimSpace(input)
	raw = strings.TrimSuffix(raw, "/index.html")
	cleaned, err := content.CleanPath(raw)
	if err != nil {
		return "", err
	}
	if isReservedPath(cleaned) {
		return "", errors.Join(ErrReservedPath, errors.New(cleaned))
	}
	return cleaned, nil
}

func isReservedPath(cleaned string) bool {
	first, _, _ := strings.Cut(strings.TrimPrefix(strings.ToLower(cleaned), "/"), "/")
	_, ok := reservedRoots[first]
	return ok
}

// outputFile is the file a static build writes page into. Languages other
// than the default are nested under a language directory.
func outputFile(pagePath, language, defaultLanguage string) string {
	route := strings.TrimPrefix(pagePath, "/")
	if language != defaultLanguage {
		route = path.Join(strings.ToLower(language), route)
	}
	return filepath.Join(filepath.FromSlash(route), "index.html")
}
