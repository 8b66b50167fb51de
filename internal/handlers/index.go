package handlers

import (
	"bytes"
	_ "embed"
	"html/template"
)

//go:embed index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

// Route describes one endpoint on the documentation page.
type Route struct {
	Method      string
	Path        string
	Body        string
	Success     string
	Failure     string
	Description string
}

// Routes is the documented route table, shared by every router.
var Routes = []Route{
	{"GET", "/", "", "200 HTML", "", "This page."},
	{"GET", "/users", "", "200 array of users", "", "List users in creation order."},
	{"POST", "/users", `{"name": "...", "email": "..."}`, "201 user", "400", "Create a user."},
	{"GET", "/users/:id", "", "200 user", "404", "Fetch one user."},
	{"PUT", "/users/:id", `{"name": "...", "email": "..."}`, "200 user", "404, 400", "Replace name and email."},
	{"DELETE", "/users/:id", "", "204", "404", "Delete a user."},
	{"GET", "/healthz", "", `200 {"status": "ok"}`, "503", "Store health."},
}

func renderIndex() string {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, Routes); err != nil {
		panic("handlers: rendering index: " + err.Error())
	}
	return buf.String()
}
