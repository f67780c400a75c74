package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/iedon/cms-render-go/toolbar"
)

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return header
}

// viewer resolves the editor owning the request's bearer token. Every
// configured token is compared so timing does not reveal which one matched.
func (s *Server) viewer(r *http.Request) *toolbar.Viewer {
	token := bearerToken(r)
	if token == "" {
		return nil
	}
	var found *toolbar.Viewer
	for _, editor := range s.cfg.Editors {
		if subtle.ConstantTimeCompare([]byte(token), []byte(editor.Token)) == 1 && found == nil {
			found = &toolbar.Viewer{
				Name:        editor.Name,
				Staff:       editor.Staff,
				Permissions: append([]string(nil), editor.Permissions...),
			}
		}
	}
	return found
}

func (s *Server) authorizeWebhook(r *http.Request) bool {
	secret := strings.TrimSpace(s.cfg.Webhook.Secret)
	if secret == "" {
		return false
	}
	token := bearerToken(r)
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
