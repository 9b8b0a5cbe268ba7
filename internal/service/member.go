package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-maps/internal/access"
	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/store"
)

// MemberService manages project membership. Every operation is owner only.
type MemberService struct {
	repo   store.Store
	access *access.Resolver
	bus    *EventBus
	log    zerolog.Logger
}

func (s *MemberService) List(ctx context.Context, projectID, userID string) ([]domain.ProjectMember, error) {
	if _, err := s.access.RequireOwner(ctx, projectID, userID); err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, projectID)
	if err != nil {
		return nil, domain.Backend("members.list", err)
	}
	if members == nil {
		members = []domain.ProjectMember{}
	}
	return members, nil
}

// Invite adds the account registered under email, or changes its role if
// it is already a member.
func (s *MemberService) Invite(ctx context.Context, projectID, userID, email string, role domain.Role) (domain.ProjectMember, error) {
	const op = "members.invite"
	p, err := s.access.RequireOwner(ctx, projectID, userID)
	if err != nil {
		return domain.ProjectMember{}, err
	}
	if !role.Valid() {
		return domain.ProjectMember{}, domain.Validation(op, "unknown role %q", role)
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.ProjectMember{}, domain.Validation(op, "El email es obligatorio")
	}
	memberID, err := s.repo.UserIDByEmail(ctx, email)
	if domain.IsKind(err, domain.KindNotFound) {
		return domain.ProjectMember{}, domain.Validation(op, "No existe un usuario con el email %s", email)
	}
	if err != nil {
		return domain.ProjectMember{}, domain.Backend(op, err)
	}
	if memberID == p.OwnerID {
		return domain.ProjectMember{}, domain.Validation(op, "El dueño ya tiene acceso al proyecto")
	}

	m := domain.ProjectMember{ProjectID: projectID, UserID: memberID, Role: role, Email: email}
	if err := s.repo.UpsertMember(ctx, m); err != nil {
		return domain.ProjectMember{}, domain.Backend(op, err)
	}
	s.log.Info().Str("project_id", projectID).Str("member_id", memberID).Str("role", string(role)).Msg("member invited")
	s.bus.Publish(Event{ProjectID: projectID, Resource: "members", Action: "created", ID: memberID})
	return m, nil
}

func (s *MemberService) UpdateRole(ctx context.Context, projectID, userID, memberID string, role domain.Role) error {
	const op = "members.update"
	if _, err := s.access.RequireOwner(ctx, projectID, userID); err != nil {
		return err
	}
	if !role.Valid() {
		return domain.Validation(op, "unknown role %q", role)
	}
	if err := s.repo.UpdateMemberRole(ctx, projectID, memberID, role); err != nil {
		return domain.Backend(op, err)
	}
	s.bus.Publish(Event{ProjectID: projectID, Resource: "members", Action: "updated", ID: memberID})
	return nil
}

func (s *MemberService) Remove(ctx context.Context, projectID, userID, memberID string) error {
	if _, err := s.access.RequireOwner(ctx, projectID, userID); err != nil {
		return err
	}
	if err := s.repo.RemoveMember(ctx, projectID, memberID); err != nil {
		return domain.Backend("members.remove", err)
	}
	s.bus.Publish(Event{ProjectID: projectID, Resource: "members", Action: "deleted", ID: memberID})
	return nil
}
