package audit

import "time"

// Entry is an immutable record of a privileged mutation. Entries are written
// by the identity store on the same transaction as the mutation they record;
// no update or delete operation exists.
type Entry struct {
	ID                 int64     `json:"id"`
	AdminID            int64     `json:"admin_id"`
	AdminEmail         string    `json:"admin_email"`
	Action             string    `json:"action"`
	TargetUserID       *int64    `json:"target_user_id,omitempty"`
	TargetRoleID       *int64    `json:"target_role_id,omitempty"`
	TargetPermissionID *int64    `json:"target_permission_id,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// TimelineFilters narrows a timeline query.
type TimelineFilters struct {
	Action   string
	AdminID  int64
	Page     int
	PageSize int
}

// PagingInfo reports the window returned by Timeline.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result bundles timeline rows with paging information.
type Result struct {
	Entries []Entry    `json:"entries"`
	Paging  PagingInfo `json:"paging"`
}
