package server

import (
	"html/template"
	"io"

	"github.com/papercomputeco/picitalk/pkg/session"
)

// EmptyTranscriptHint is shown before the first question.
const EmptyTranscriptHint = "Your conversation will appear here. Upload an image and ask your question to get started!"

var transcriptTemplate = template.Must(template.New("transcript").Parse(`{{if not .Turns}}<div class="hint">{{.Hint}}</div>
{{else}}{{range $i, $t := .Turns}}{{if eq $t.Role "user"}}<div class="user-message"><b>You:</b> {{$t.Text}}</div>
{{else}}<div class="assistant-message" data-turn="{{$i}}"><b>Assistant:</b> {{$t.Text}} <button class="speak" data-turn="{{$i}}" title="Speak">&#128266;</button></div>
{{end}}{{end}}{{end}}`))

// renderTranscript writes the conversation as an HTML fragment. Turn text is escaped.
func renderTranscript(w io.Writer, turns []session.Turn) error {
	return transcriptTemplate.Execute(w, struct {
		Turns []session.Turn
		Hint  string
	}{turns, EmptyTranscriptHint})
}
