package store

// MaxPerPage bounds list sizes.
const MaxPerPage = 100

// PageRequest is a 1-based page of a listing.
type PageRequest struct {
	Page    int
	PerPage int
}

// NewPageRequest clamps page to >= 1 and perPage to [1, MaxPerPage], using
// def when perPage is unset.
func NewPageRequest(page, perPage, def int) PageRequest {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = def
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return PageRequest{Page: page, PerPage: perPage}
}

func (p PageRequest) Limit() int  { return p.PerPage }
func (p PageRequest) Offset() int { return (p.Page - 1) * p.PerPage }

// Scanner is implemented by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}
