package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/api/rest/documents"
	"github.com/buildit-dev/buildit/server/api/rest/middleware"
	"github.com/buildit-dev/buildit/server/dto"
	"github.com/buildit-dev/buildit/server/services"
)

type PipelineAPI struct {
	pipelineService services.PipelineService
	*APIBase
}

func NewPipelineAPI(pipelineService services.PipelineService, logFactory logger.LogFactory) *PipelineAPI {
	return &PipelineAPI{
		pipelineService: pipelineService,
		APIBase:         NewAPIBase(logFactory("PipelineAPI")),
	}
}

// Create handles POST /api/pipeline/new. The submitter is either a forge
// user authenticated by JWT or a chat user relayed by the chat bridge.
func (a *PipelineAPI) Create(w http.ResponseWriter, r *http.Request) {
	req := &documents.CreatePipelineRequest{}
	err := render.Bind(r, req)
	if err != nil {
		a.Error(w, r, fmt.Errorf("error reading CreatePipelineRequest from request: %w", err))
		return
	}

	create := &dto.CreatePipeline{
		Packages:        req.Packages,
		Archs:           req.Archs,
		GitBranch:       req.GitBranch,
		GitHubPR:        req.GitHubPR,
		JobRequirements: req.Requirements(),
	}
	if login := middleware.SubmitterLogin(r); login != "" {
		create.Source = models.PipelineSourceAPI
		create.SubmitterLogin = &login
	} else if middleware.IsChatAuthenticated(r) {
		if req.ChatUserID == nil {
			a.Error(w, r, gerror.NewErrValidationFailed("A chat user id must be specified"))
			return
		}
		create.Source = models.PipelineSourceChat
		create.ChatUserID = req.ChatUserID
	} else {
		a.Error(w, r, gerror.NewErrUnauthorized("Unauthorized"))
		return
	}

	graph, err := a.pipelineService.Create(r.Context(), create)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.Created(w, r, documents.MakePipelineGraph(graph))
}

// List handles GET /api/pipeline/list.
func (a *PipelineAPI) List(w http.ResponseWriter, r *http.Request) {
	pagination, err := documents.GetPagination(r)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	search := dto.PipelineSearch{
		Pagination:   pagination,
		StableOnly:   documents.GetBoolParam(r, "stable_only"),
		GitHubPROnly: documents.GetBoolParam(r, "github_pr_only"),
	}
	graphs, total, err := a.pipelineService.List(r.Context(), search)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	items := make([]*documents.Pipeline, 0, len(graphs))
	for _, graph := range graphs {
		items = append(items, documents.MakePipeline(graph))
	}
	a.JSON(w, r, documents.NewListResponse(total, items))
}

// Get handles GET /api/pipeline/info.
func (a *PipelineAPI) Get(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParsePipelineID(r.URL.Query().Get("pipeline_id"))
	if err != nil {
		a.Error(w, r, gerror.NewErrInvalidQueryParameter("Invalid pipeline id").Wrap(err))
		return
	}
	graph, err := a.pipelineService.Read(r.Context(), id)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.GotResource(w, r, documents.MakePipelineGraph(graph))
}
