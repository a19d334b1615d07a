package email

import (
	"bytes"
	"fmt"
	"html/template"
)

// Notice is the content of a billing notice email.
type Notice struct {
	AppName  string
	Name     string
	Title    string
	Message  string
	LinkURL  string
	LinkText string
}

var noticeTemplate = template.Must(template.New("notice").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, Helvetica, Arial, sans-serif; color: #1f2937;">
  <h2>{{.Title}}</h2>
  {{if .Name}}<p>Hi {{.Name}},</p>{{end}}
  <p>{{.Message}}</p>
  {{if .LinkURL}}<p><a href="{{.LinkURL}}" style="color: #2563eb;">{{.LinkText}}</a></p>{{end}}
  <p style="color: #6b7280; font-size: 12px;">{{.AppName}}</p>
</body>
</html>`))

// RenderNotice renders n as an HTML email body. Values are escaped.
func RenderNotice(n Notice) (string, error) {
	if n.LinkText == "" {
		n.LinkText = "Manage billing"
	}
	var buf bytes.Buffer
	if err := noticeTemplate.Execute(&buf, n); err != nil {
		return "", fmt.Errorf("render notice: %w", err)
	}
	return buf.String(), nil
}
