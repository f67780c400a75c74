package content

import (
	"errors"
	"path"
	"strings"
)

// CleanPath canonicalises a page path to a rooted, slash separated form
// without a trailing slash. The root page is "/".
func CleanPath(input string) (string, error) {
	candidate := strings.TrimSpace(input)
	candidate = strings.ReplaceAll(candidate, "\\", "/")
	if strings.Contains(candidate, "\x00") {
		return "", errors.Join(ErrInvalidPath, errors.New("contains null byte"))
	}
	candidate = strings.Trim(candidate, "/")
	if candidate == "" {
		return "/", nil
	}

	for _, segment := range strings.Split(candidate, "/") {
		if segment == ".." {
			return "", errors.Join(ErrInvalidPath, errors.New("path escapes site root"))
		}
	}
	cleaned := path.Clean("/" + candidate)
	if cleaned == "/" {
		return cleaned, nil
	}
	for _, segment := range strings.Split(strings.TrimPrefix(cleaned, "/"), "/") {
		if strings.HasPrefix(segment, "-") {
			return "", errors.Join(ErrInvalidPath, errors.New("path segment cannot start with '-'"))
		}
	}
	return cleaned, nil
}
