package handler

import "html/template"

const previewTemplate = "preview.html"

// PreviewTemplate is the page rendered by Preview. Register it on the engine
// with SetHTMLTemplate.
var PreviewTemplate = template.Must(template.New(previewTemplate).Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Result {{.JobID}}</title></head>
<body>
<h2>Result {{.JobID}}</h2>
<p>{{.Filename}} ({{.OutputType}})</p>
{{if .IsText}}<pre>{{.Text}}</pre>{{else}}<a href="/api/jobs/{{.JobID}}/result">Download</a>{{end}}
</body>
</html>
`))
