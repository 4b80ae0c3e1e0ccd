package models

import "github.com/pkg/errors"

const (
	// DefaultItemsPerPage is used when a list request does not specify a page size.
	DefaultItemsPerPage = 30
	// AllItems as an items-per-page value disables pagination for the request.
	AllItems = -1
)

// Pagination selects one page of a list result. Pages are 1-based.
type Pagination struct {
	Page         int `json:"page"`
	ItemsPerPage int `json:"items_per_page"`
}

func NewPagination(page int, itemsPerPage int) Pagination {
	return Pagination{
		Page:         page,
		ItemsPerPage: itemsPerPage,
	}
}

// Unlimited returns true if the request asked for every item.
func (p Pagination) Unlimited() bool {
	return p.ItemsPerPage == AllItems
}

// Offset is the number of rows to skip for this page.
func (p Pagination) Offset() uint {
	if p.Unlimited() || p.Page <= 1 {
		return 0
	}
	return uint(p.Page-1) * uint(p.ItemsPerPage)
}

// Limit is the maximum number of rows to return for this page.
func (p Pagination) Limit() uint {
	return uint(p.ItemsPerPage)
}

func (p Pagination) Validate() error {
	if p.Page < 1 {
		return errors.New("error page must be 1 or greater")
	}
	if p.ItemsPerPage < 1 && p.ItemsPerPage != AllItems {
		return errors.Errorf("error items per page must be positive or %d", AllItems)
	}
	return nil
}
