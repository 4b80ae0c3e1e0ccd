package server

import (
	"net/http"

	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/server/services"
)

type DashboardAPI struct {
	pipelineService services.PipelineService
	*APIBase
}

func NewDashboardAPI(pipelineService services.PipelineService, logFactory logger.LogFactory) *DashboardAPI {
	return &DashboardAPI{
		pipelineService: pipelineService,
		APIBase:         NewAPIBase(logFactory("DashboardAPI")),
	}
}

// Status handles GET /api/dashboard/status.
func (a *DashboardAPI) Status(w http.ResponseWriter, r *http.Request) {
	dashboard, err := a.pipelineService.Dashboard(r.Context())
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, dashboard)
}
