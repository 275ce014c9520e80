package transport

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"go-flying-image/internal/repository"
	"go-flying-image/internal/service"
	"go-flying-image/pkg/imageref"
	"go-flying-image/pkg/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	landingTemplate   = "landing.html"
	workspaceTemplate = "workspace.html"
)

// workspacePage is the data of the signed-in view
type workspacePage struct {
	Email      string
	Account    service.AccountStatus
	SyncStatus repository.SyncStatus
	Workspace  service.Snapshot
	History    []models.HistoryEntry
	RenderedAt time.Time
}

func parseTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return tmpl, nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"syncIcon":     syncIcon,
		"formatDate":   formatDate,
		"downloadName": downloadName,
		"imageURL":     imageURL,
	}
}

func syncIcon(status repository.SyncStatus) string {
	switch status {
	case repository.SyncSyncing:
		return "⟳"
	case repository.SyncSynced:
		return "✓"
	case repository.SyncError:
		return "✗"
	default:
		return "○"
	}
}

func formatDate(timestampMs int64) string {
	return time.UnixMilli(timestampMs).UTC().Format("1/2/2006")
}

func downloadName(t time.Time) string {
	return fmt.Sprintf("flying-image-%d.png", t.UnixMilli())
}

// imageURL marks image references as safe for src and href attributes.
// Only inline images and http(s) URLs pass; anything else renders empty.
func imageURL(ref string) template.URL {
	switch {
	case imageref.IsInline(ref) && strings.HasPrefix(ref, "data:image/"):
		return template.URL(ref)
	case strings.HasPrefix(ref, "https://"), strings.HasPrefix(ref, "http://"):
		return template.URL(ref)
	default:
		return ""
	}
}
