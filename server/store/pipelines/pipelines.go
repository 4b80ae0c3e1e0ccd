package pipelines

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/store"
)

type PipelineStore struct {
	db    *store.DB
	table *store.Table
}

func NewStore(db *store.DB, logFactory logger.LogFactory) *PipelineStore {
	return &PipelineStore{
		db:    db,
		table: store.NewTable(db, logFactory, "pipelines", "pipeline_id"),
	}
}

// Create a new pipeline and return the id the database assigned to it.
func (d *PipelineStore) Create(ctx context.Context, txOrNil *store.Tx, pipeline *models.Pipeline) (models.PipelineID, error) {
	id, err := d.table.Create(ctx, txOrNil, pipeline)
	if err != nil {
		return 0, err
	}
	pipeline.ID = models.PipelineID(id)
	return pipeline.ID, nil
}

// Read an existing pipeline, looking it up by id.
// Returns a NotFound error if the pipeline does not exist.
func (d *PipelineStore) Read(ctx context.Context, txOrNil *store.Tx, id models.PipelineID) (*models.Pipeline, error) {
	pipeline := &models.Pipeline{}
	return pipeline, d.table.ReadByID(ctx, txOrNil, int64(id), pipeline)
}

// List pipelines matching the search, most recent first.
func (d *PipelineStore) List(ctx context.Context, txOrNil *store.Tx, search models.PipelineSearch) ([]*models.Pipeline, error) {
	var pipelines []*models.Pipeline
	err := d.table.ListIn(ctx, txOrNil, &pipelines, search.Pagination, func(ds *goqu.SelectDataset) *goqu.SelectDataset {
		for _, expr := range searchExpressions(search) {
			ds = ds.Where(expr)
		}
		return ds.Order(goqu.I("pipeline_id").Desc())
	})
	if err != nil {
		return nil, err
	}
	return pipelines, nil
}

// Count returns the number of pipelines matching the search filters.
func (d *PipelineStore) Count(ctx context.Context, txOrNil *store.Tx, search models.PipelineSearch) (int64, error) {
	return d.table.Count(ctx, txOrNil, searchExpressions(search)...)
}

func searchExpressions(search models.PipelineSearch) []exp.Expression {
	var exprs []exp.Expression
	if search.Branch != nil {
		exprs = append(exprs, goqu.C("pipeline_git_branch").Eq(*search.Branch))
	}
	if search.GitHubPROnly {
		exprs = append(exprs, goqu.C("pipeline_github_pr").IsNotNull())
	}
	return exprs
}
