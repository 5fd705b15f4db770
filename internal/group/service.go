package group

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/workhub/workhub/internal/apperr"
	"github.com/workhub/workhub/internal/notify"
	"github.com/workhub/workhub/internal/user"
)

// Store is the persistence surface the service needs; *Repository
// satisfies it and tests substitute an in-memory fake.
type Store interface {
	CreateGroup(ctx context.Context, g *Group, members []Member) error
	GetGroup(ctx context.Context, id int) (*Group, error)
	ListGroupsForUser(ctx context.Context, userID int) ([]Group, error)

	GetMember(ctx context.Context, groupID, userID int) (*Member, error)
	ListMembers(ctx context.Context, groupID int) ([]Member, error)
	AddMember(ctx context.Context, m Member) error
	RemoveMember(ctx context.Context, groupID, userID int) error
	UpdateMemberRole(ctx context.Context, groupID, userID int, role string) error

	CreateMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, id int) (*Message, error)
	ListMessages(ctx context.Context, groupID int) ([]*Message, error)
	InsertReadReceipts(ctx context.Context, groupID, userID int, at time.Time) error
	ListReadReceipts(ctx context.Context, messageID int) ([]ReadReceipt, error)
}

type UserFinder interface {
	GetByID(ctx context.Context, id int) (*user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
}

type Notifier interface {
	Dispatch(ev notify.Event)
}

type Service struct {
	store    Store
	users    UserFinder
	notifier Notifier

	now func() time.Time
}

func NewService(store Store, users UserFinder, notifier Notifier) *Service {
	return &Service{
		store:    store,
		users:    users,
		notifier: notifier,
		now:      time.Now,
	}
}

// CreateGroup makes the creator the single owner. Member ids are
// deduplicated and the creator is never added twice.
func (s *Service) CreateGroup(ctx context.Context, creatorID int, name string, memberIDs []int) (*Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.InvalidInput("group name is required")
	}

	members := []Member{{UserID: creatorID, Role: RoleOwner}}
	seen := map[int]bool{creatorID: true}
	for _, id := range memberIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, apperr.NotFound(fmt.Sprintf("user %d not found", id))
		}
		members = append(members, Member{UserID: id, Role: RoleMember})
	}

	g := &Group{Name: name, CreatorID: creatorID}
	if err := s.store.CreateGroup(ctx, g, members); err != nil {
		return nil, err
	}

	for _, m := range members {
		if m.UserID == creatorID {
			continue
		}
		s.notifier.Dispatch(notify.Event{
			UserID:  m.UserID,
			Title:   "Added to group",
			Body:    fmt.Sprintf("You were added to %q", name),
			Type:    notify.TypeGroupInvite,
			GroupID: g.ID,
		})
	}
	return g, nil
}

func (s *Service) ListGroups(ctx context.Context, userID int) ([]Group, error) {
	groups, err := s.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []Group{}
	}
	return groups, nil
}

func (s *Service) memberOrForbidden(ctx context.Context, groupID, userID int) (*Member, error) {
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperr.NotFound("group not found")
	}
	m, err := s.store.GetMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.Forbidden("not a member of this group")
	}
	return m, nil
}

// IsMember is consumed by the presence handler to gate typing routes.
func (s *Service) IsMember(ctx context.Context, groupID, userID int) (bool, error) {
	m, err := s.store.GetMember(ctx, groupID, userID)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

func (s *Service) ListMembers(ctx context.Context, groupID, actorID int) ([]Member, error) {
	if _, err := s.memberOrForbidden(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, groupID)
}

func (s *Service) AddMembers(ctx context.Context, groupID, actorID int, memberIDs []int) error {
	actor, err := s.memberOrForbidden(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if actor.Role != RoleOwner && actor.Role != RoleAdmin {
		return apperr.Forbidden("only the owner or an admin can add members")
	}

	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	seen := map[int]bool{}
	for _, id := range memberIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.NotFound(fmt.Sprintf("user %d not found", id))
		}
		if err := s.store.AddMember(ctx, Member{GroupID: groupID, UserID: id, Role: RoleMember}); err != nil {
			return err
		}
		s.notifier.Dispatch(notify.Event{
			UserID:  id,
			Title:   "Added to group",
			Body:    fmt.Sprintf("You were added to %q", g.Name),
			Type:    notify.TypeGroupInvite,
			GroupID: groupID,
		})
	}
	return nil
}

// RemoveMember enforces the role matrix: the owner can never be removed,
// not even by themself; admins remove members (or leave), never other
// admins; members may only leave.
func (s *Service) RemoveMember(ctx context.Context, groupID, actorID, targetID int) error {
	actor, err := s.memberOrForbidden(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	target, err := s.store.GetMember(ctx, groupID, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return apperr.NotFound("target is not a member of this group")
	}
	if target.Role == RoleOwner {
		return apperr.InvalidState("group owner cannot be removed")
	}

	switch {
	case actor.Role == RoleOwner:
		// Owner removes anyone but themself (caught above).
	case actorID == targetID:
		// Any non-owner may leave.
	case actor.Role == RoleAdmin && target.Role == RoleMember:
		// Admin manages plain members.
	default:
		return apperr.Forbidden("insufficient group role to remove this member")
	}

	return s.store.RemoveMember(ctx, groupID, targetID)
}

// SetMemberRole promotes or demotes between admin and member. The owner
// role is fixed at creation and unassignable; only the owner may demote
// another admin, though an admin may demote themself.
func (s *Service) SetMemberRole(ctx context.Context, groupID, actorID, targetID int, role string) error {
	if role != RoleAdmin && role != RoleMember {
		return apperr.InvalidInput("role must be admin or member")
	}
	actor, err := s.memberOrForbidden(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	target, err := s.store.GetMember(ctx, groupID, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return apperr.NotFound("target is not a member of this group")
	}
	if target.Role == RoleOwner {
		return apperr.InvalidState("the owner's role cannot be changed")
	}

	switch {
	case actor.Role == RoleOwner:
	case actor.Role == RoleAdmin && target.Role == RoleMember:
		// Admin promotes or keeps plain members.
	case actor.Role == RoleAdmin && actorID == targetID && role == RoleMember:
		// Self-demotion is allowed.
	default:
		return apperr.Forbidden("insufficient group role to change this member's role")
	}

	return s.store.UpdateMemberRole(ctx, groupID, targetID, role)
}

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,})`)

func (s *Service) SendMessage(ctx context.Context, groupID, senderID int, content string, replyToID *int) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.InvalidInput("message content is required")
	}
	if _, err := s.memberOrForbidden(ctx, groupID, senderID); err != nil {
		return nil, err
	}
	if replyToID != nil {
		parent, err := s.store.GetMessage(ctx, *replyToID)
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.GroupID != groupID {
			return nil, apperr.InvalidInput("reply target is not in this group")
		}
	}

	m := &Message{GroupID: groupID, SenderID: senderID, Content: content, ReplyToID: replyToID}
	if err := s.store.CreateMessage(ctx, m); err != nil {
		return nil, err
	}

	s.dispatchMentions(ctx, m)
	return m, nil
}

// dispatchMentions resolves @email tokens to users and notifies each one.
// Failures here are logged and swallowed: a broken mention never fails
// the send that carried it.
func (s *Service) dispatchMentions(ctx context.Context, m *Message) {
	seen := map[int]bool{}
	for _, match := range mentionPattern.FindAllStringSubmatch(m.Content, -1) {
		u, err := s.users.FindByEmail(ctx, match[1])
		if err != nil {
			log.Printf("group: mention lookup %q failed: %v", match[1], err)
			continue
		}
		if u == nil || u.ID == m.SenderID || seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		s.notifier.Dispatch(notify.Event{
			UserID:    u.ID,
			Title:     "You were mentioned",
			Body:      m.Content,
			Type:      notify.TypeMention,
			GroupID:   m.GroupID,
			MessageID: m.ID,
		})
	}
}

func (s *Service) ListMessages(ctx context.Context, groupID, viewerID int) ([]*Message, error) {
	if _, err := s.memberOrForbidden(ctx, groupID, viewerID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*Message{}
	}
	return msgs, nil
}

// MarkRead records a read receipt for every message in the group. The
// receipt insert is idempotent, so retries and concurrent calls are safe.
func (s *Service) MarkRead(ctx context.Context, groupID, actorID int) error {
	if _, err := s.memberOrForbidden(ctx, groupID, actorID); err != nil {
		return err
	}
	return s.store.InsertReadReceipts(ctx, groupID, actorID, s.now())
}

func (s *Service) ListReadReceipts(ctx context.Context, messageID, actorID int) ([]ReadReceipt, error) {
	m, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.NotFound("message not found")
	}
	if _, err := s.memberOrForbidden(ctx, m.GroupID, actorID); err != nil {
		return nil, err
	}
	receipts, err := s.store.ListReadReceipts(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if receipts == nil {
		receipts = []ReadReceipt{}
	}
	return receipts, nil
}
