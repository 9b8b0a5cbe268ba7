package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-maps/internal/domain"
)

type MemberListOutput struct {
	Body []domain.ProjectMember
}

type MemberInviteInput struct {
	ID   string `path:"id" doc:"Project ID"`
	Body struct {
		Email string      `json:"email" format:"email" doc:"Email of an existing user" example:"ana@example.cl"`
		Role  domain.Role `json:"role" enum:"viewer,editor" doc:"Role to grant"`
	}
}

type MemberOutput struct {
	Body domain.ProjectMember
}

type MemberPathInput struct {
	ID     string `path:"id" doc:"Project ID"`
	UserID string `path:"userId" doc:"Member user ID"`
}

type MemberRoleInput struct {
	ID     string `path:"id" doc:"Project ID"`
	UserID string `path:"userId" doc:"Member user ID"`
	Body   struct {
		Role domain.Role `json:"role" enum:"viewer,editor" doc:"New role"`
	}
}

// RegisterMembers registers project membership routes. All of them are
// owner only.
func (h *APIHandler) RegisterMembers(api huma.API) {
	tags := huma.OperationTags("members")

	huma.Get(api, "/api/v1/projects/{id}/members", h.ListMembers, tags, secured)
	huma.Post(api, "/api/v1/projects/{id}/members", h.InviteMember, tags, secured, status(http.StatusCreated))
	huma.Patch(api, "/api/v1/projects/{id}/members/{userId}", h.UpdateMemberRole, tags, secured)
	huma.Delete(api, "/api/v1/projects/{id}/members/{userId}", h.RemoveMember, tags, secured)
}

func (h *APIHandler) ListMembers(ctx context.Context, input *ProjectIDInput) (*MemberListOutput, error) {
	members, err := h.svc.Members.List(ctx, input.ID, userID(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	return &MemberListOutput{Body: members}, nil
}

func (h *APIHandler) InviteMember(ctx context.Context, input *MemberInviteInput) (*MemberOutput, error) {
	m, err := h.svc.Members.Invite(ctx, input.ID, userID(ctx), input.Body.Email, input.Body.Role)
	if err != nil {
		return nil, apiError(err)
	}
	return &MemberOutput{Body: m}, nil
}

func (h *APIHandler) UpdateMemberRole(ctx context.Context, input *MemberRoleInput) (*struct{}, error) {
	if err := h.svc.Members.UpdateRole(ctx, input.ID, userID(ctx), input.UserID, input.Body.Role); err != nil {
		return nil, apiError(err)
	}
	return nil, nil
}

func (h *APIHandler) RemoveMember(ctx context.Context, input *MemberPathInput) (*struct{}, error) {
	if err := h.svc.Members.Remove(ctx, input.ID, userID(ctx), input.UserID); err != nil {
		return nil, apiError(err)
	}
	return nil, nil
}
