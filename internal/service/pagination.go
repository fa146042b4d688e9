package service

import (
	"strings"

	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ports"
	"agile-bank/pkg/apperror"
)

// listing describes the sortable columns of one listing.
type listing struct {
	fields       []string
	defaultField string
	defaultOrder ports.SortOrder
}

var (
	transactionListing = listing{
		fields:       []string{"id", "created_at", "amount", "converted_amount"},
		defaultField: "created_at",
		defaultOrder: ports.SortDesc,
	}
	accountListing = listing{
		fields:       []string{"id", "balance", "currency", "created_at"},
		defaultField: "created_at",
		defaultOrder: ports.SortAsc,
	}
)

// normalize fills defaults and rejects anything outside the whitelist.
// Page 0 and page size 0 mean "use the default".
func (l listing) normalize(sortBy string, order ports.SortOrder, page, pageSize int) (string, ports.SortOrder, int, int, error) {
	field := strings.ToLower(strings.TrimSpace(sortBy))
	if field == "" {
		field = l.defaultField
	}
	if !l.allows(field) {
		return "", "", 0, 0, toAppError(&domain.InvalidSortFieldError{Field: sortBy, Allowed: l.fields})
	}

	switch ports.SortOrder(strings.ToLower(string(order))) {
	case "":
		order = l.defaultOrder
	case ports.SortAsc:
		order = ports.SortAsc
	case ports.SortDesc:
		order = ports.SortDesc
	default:
		return "", "", 0, 0, apperror.Validation("order must be asc or desc")
	}

	page, pageSize, err := normalizePage(page, pageSize)
	if err != nil {
		return "", "", 0, 0, err
	}
	return field, order, page, pageSize, nil
}

func (l listing) allows(field string) bool {
	for _, f := range l.fields {
		if f == field {
			return true
		}
	}
	return false
}

func normalizePage(page, pageSize int) (int, int, error) {
	if page < 0 || pageSize < 0 || pageSize > ports.MaxPageSize {
		return 0, 0, toAppError(&domain.InvalidPaginationError{Page: page, PageSize: pageSize, MaxSize: ports.MaxPageSize})
	}
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = ports.DefaultPageSize
	}
	return page, pageSize, nil
}
