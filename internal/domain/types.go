// Package domain holds the project, layer, style and membership records
// shared by the stores, services and API.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPrivate || v == VisibilityPublic
}

// Role is a member's access level. Owners resolve to RoleEditor.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
)

func (r Role) Valid() bool {
	return r == RoleViewer || r == RoleEditor
}

// Project is a named container of layers owned by one user.
type Project struct {
	ID          string     `json:"id" doc:"Project ID" example:"6f1c2a8e-8c1b-4c59-9f3e-0c6a1f0e5b11"`
	Name        string     `json:"name" doc:"Project name" example:"Parcelas Los Ríos"`
	Description string     `json:"description,omitempty" doc:"Optional description"`
	OwnerID     string     `json:"owner_id" doc:"Owner user ID"`
	Visibility  Visibility `json:"visibility" enum:"private,public" doc:"Who can view the project"`
	IsFavorite  bool       `json:"is_favorite" doc:"Favorite flag"`
	CreatedAt   time.Time  `json:"created_at" doc:"Creation time"`
	UpdatedAt   time.Time  `json:"updated_at" doc:"Last update time"`
}

// ProjectLayer is an imported dataset. GeoJSON holds a Feature or a
// FeatureCollection.
type ProjectLayer struct {
	ID         string          `json:"id" doc:"Layer ID"`
	ProjectID  string          `json:"project_id" doc:"Owning project ID"`
	Name       string          `json:"name" doc:"Display name" example:"parcela"`
	GeoJSON    json.RawMessage `json:"geojson" doc:"GeoJSON Feature or FeatureCollection"`
	SourcePath string          `json:"source_path,omitempty" doc:"Object storage key of the original upload"`
	CreatedAt  time.Time       `json:"created_at" doc:"Creation time"`
}

// ProjectMember grants a non-owner access to a project. Email is only
// populated when read through the members view.
type ProjectMember struct {
	ProjectID string    `json:"project_id" doc:"Project ID"`
	UserID    string    `json:"user_id" doc:"Member user ID"`
	Role      Role      `json:"role" enum:"viewer,editor" doc:"Member role"`
	Email     string    `json:"email,omitempty" doc:"Member email"`
	CreatedAt time.Time `json:"created_at" doc:"When the member was added"`
}

// Access is the caller's resolved standing on a project.
type Access struct {
	Role  Role `json:"role" enum:"viewer,editor" doc:"Effective role"`
	Owner bool `json:"owner" doc:"Whether the caller owns the project"`
}

func (a Access) CanEdit() bool  { return a.Role == RoleEditor }
func (a Access) CanAdmin() bool { return a.Owner }

// NoticeLevel classifies a transient user-facing notification.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a non-fatal message surfaced to the user, e.g. a failed
// geolocation or overlay fetch.
type Notice struct {
	Level   NoticeLevel `json:"level" enum:"info,success,warning,error" doc:"Severity"`
	Message string      `json:"message" doc:"Human readable text"`
}

func Warn(format string, args ...any) Notice {
	return Notice{Level: NoticeWarning, Message: fmt.Sprintf(format, args...)}
}
