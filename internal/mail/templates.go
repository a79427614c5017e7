package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"notifyd/internal/storage"
)

// Template data for one item email.
type itemData struct {
	Heading     string
	Title       string
	Description string
	DueAt       string
}

var itemHTML = htmltemplate.Must(htmltemplate.New("item").Parse(`<html>
<body style="font-family: sans-serif; color: #222;">
  <h2>{{.Heading}}</h2>
  <p><strong>{{.Title}}</strong></p>
  {{if .Description}}<p>{{.Description}}</p>{{end}}
  {{if .DueAt}}<p>Due: {{.DueAt}}</p>{{end}}
</body>
</html>
`))

var itemText = texttemplate.Must(texttemplate.New("item").Parse(`{{.Heading}}

{{.Title}}
{{if .Description}}{{.Description}}
{{end}}{{if .DueAt}}Due: {{.DueAt}}
{{end}}`))

// renderItem builds the subject and both body variants for a
// notification kind. Subjects follow the "Reminder: {title}" /
// "Due Soon: {title}" patterns.
func renderItem(kind string, it storage.Item) (subject, html, text string, err error) {
	var heading string
	switch kind {
	case storage.KindReminder:
		subject = "Reminder: " + it.Title
		heading = "Reminder"
	case storage.KindDueSoon:
		subject = "Due Soon: " + it.Title
		heading = "Due Soon"
	case storage.KindOverdue:
		subject = "Overdue: " + it.Title
		heading = "Overdue"
	default:
		return "", "", "", fmt.Errorf("unknown notification kind %q", kind)
	}

	data := itemData{
		Heading:     heading,
		Title:       it.Title,
		Description: it.Description,
		DueAt:       formatDue(it.DueAt),
	}

	var hb, tb bytes.Buffer
	if err := itemHTML.Execute(&hb, data); err != nil {
		return "", "", "", err
	}
	if err := itemText.Execute(&tb, data); err != nil {
		return "", "", "", err
	}
	return subject, hb.String(), tb.String(), nil
}

func formatDue(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
}
