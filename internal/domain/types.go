package domain

// ID is used across domain entities.
type ID int64

// Roles carried in tokens and on users.
const (
	RoleAdmin     = "admin"
	RoleOrganizer = "organizer"
	RolePilgrim   = "pilgrim"
)

// Pagination carries paging params and totals.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total,omitempty"`
}

// Offset returns the row offset for LIMIT/OFFSET queries, clamping bad input.
func (p Pagination) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns a bounded page size.
func (p Pagination) Limit() int {
	switch {
	case p.PageSize <= 0:
		return 50
	case p.PageSize > 200:
		return 200
	default:
		return p.PageSize
	}
}

// RequestContext carries authenticated user info when available.
// A zero UserID means the caller is anonymous (guest).
type RequestContext struct {
	UserID    ID     `json:"userId"`
	Role      string `json:"role"`
	RequestID string `json:"-"`
}

func (r RequestContext) IsAdmin() bool     { return r.Role == RoleAdmin }
func (r RequestContext) IsOrganizer() bool { return r.Role == RoleOrganizer }
func (r RequestContext) IsGuest() bool     { return r.UserID == 0 }
