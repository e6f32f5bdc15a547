package common

import (
	"net/http"
	"strconv"
)

// ListParams is the pagination/search state every list endpoint accepts.
type ListParams struct {
	Search string
	Page   int
	Limit  int
}

// ParseListParams reads q/page/limit query parameters with the dashboard's
// defaults.
func ParseListParams(r *http.Request) ListParams {
	p := ListParams{Search: r.URL.Query().Get("q")}
	p.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	p.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 25
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	return p
}

// Offset returns the SQL offset for the page.
func (p ListParams) Offset() int { return (p.Page - 1) * p.Limit }
