package server

import (
	"net/http"

	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/version"
)

type RootAPI struct {
	*APIBase
}

func NewRootAPI(logFactory logger.LogFactory) *RootAPI {
	return &RootAPI{
		APIBase: NewAPIBase(logFactory("RootAPI")),
	}
}

type rootDocument struct {
	Service string `json:"service"`
	Version string `json:"version"`
}

func (a *RootAPI) GetRootDocument(w http.ResponseWriter, r *http.Request) {
	a.JSON(w, r, &rootDocument{
		Service: "buildit",
		Version: version.VersionToString(),
	})
}
