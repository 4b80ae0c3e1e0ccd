package documents

import (
	"net/http"
	"strconv"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/models"
)

// ListResponse is the standard paginated envelope: the total number of items
// matching the query, plus one page of them.
type ListResponse struct {
	TotalItems int64       `json:"total_items"`
	Items      interface{} `json:"items"`
}

func NewListResponse(totalItems int64, items interface{}) *ListResponse {
	return &ListResponse{TotalItems: totalItems, Items: items}
}

// GetPagination reads the standard pagination query parameters from a list
// request. Pages are 1-based; items_per_page of -1 requests everything.
func GetPagination(r *http.Request) (models.Pagination, error) {
	pagination := models.NewPagination(1, models.DefaultItemsPerPage)
	if str := r.URL.Query().Get("page"); str != "" {
		page, err := strconv.Atoi(str)
		if err != nil {
			return pagination, gerror.NewErrInvalidQueryParameter("Invalid page").Wrap(err)
		}
		pagination.Page = page
	}
	if str := r.URL.Query().Get("items_per_page"); str != "" {
		itemsPerPage, err := strconv.Atoi(str)
		if err != nil {
			return pagination, gerror.NewErrInvalidQueryParameter("Invalid items_per_page").Wrap(err)
		}
		pagination.ItemsPerPage = itemsPerPage
	}
	if err := pagination.Validate(); err != nil {
		return pagination, gerror.NewErrInvalidQueryParameter(err.Error()).Wrap(err)
	}
	return pagination, nil
}

// GetBoolParam reads an optional boolean query parameter, treating "1",
// "true" and "yes" as true.
func GetBoolParam(r *http.Request, name string) bool {
	switch r.URL.Query().Get(name) {
	case "1", "true", "yes":
		return true
	}
	return false
}
