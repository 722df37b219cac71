package api

import (
	_ "embed"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPISpec []byte

func handleAPIDocs(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

func handleAPIDocsJSON(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	var doc map[string]any
	if err := yaml.Unmarshal(openAPISpec, &doc); err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
