package handlers

import (
	"html/template"
	"net/http"

	"github.com/postboard/apiserver/config"
)

// Description is the public project metadata.
type Description struct {
	Name           string `json:"name"`
	APIVersion     string `json:"api_version"`
	PackageVersion string `json:"package_version"`
}

var indexTemplate = template.Must(template.New("index").Parse(`<html>
<body style="display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background-color: #7d8492;">
<div style="text-align: center; background-color: white; padding: 20px; border-radius: 20px;">
<h1 style="font-weight: bold; font-family: Arial;">{{.Name}}</h1>
<h3 style="font-weight: bold; font-family: Arial;">Version: {{.APIVersion}}</h3>
<h4>API description: <a href="{{.DescriptionPath}}">{{.DescriptionPath}}</a></h4>
</div>
</body>
</html>
`))

// DescHandler serves the project description and the HTML index page.
type DescHandler struct {
	desc   Description
	prefix string
}

func NewDescHandler(project config.ProjectConfig, prefix string) *DescHandler {
	return &DescHandler{
		desc: Description{
			Name:           project.Name,
			APIVersion:     project.APIVersion,
			PackageVersion: project.PackageVersion,
		},
		prefix: prefix,
	}
}

func (h *DescHandler) Description(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.desc)
}

func (h *DescHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = indexTemplate.Execute(w, struct {
		Description
		DescriptionPath string
	}{h.desc, h.prefix + "/description"})
}
