package group

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/workhub/workhub/internal/apperr"
	"github.com/workhub/workhub/internal/notify"
	"github.com/workhub/workhub/internal/user"
)

type memStore struct {
	mu       sync.Mutex
	groups   map[int]*Group
	members  map[int]map[int]*Member // groupID -> userID -> member
	msgs     map[int]*Message
	receipts map[[2]int]ReadReceipt // (messageID, userID)
	nextID   int
}

func newMemStore() *memStore {
	return &memStore{
		groups:   make(map[int]*Group),
		members:  make(map[int]map[int]*Member),
		msgs:     make(map[int]*Message),
		receipts: make(map[[2]int]ReadReceipt),
	}
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *memStore) CreateGroup(_ context.Context, g *Group, members []Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = s.id()
	g.CreatedAt = time.Now()
	cp := *g
	s.groups[g.ID] = &cp
	s.members[g.ID] = make(map[int]*Member)
	for _, m := range members {
		m.GroupID = g.ID
		m.JoinedAt = time.Now()
		mc := m
		s.members[g.ID][m.UserID] = &mc
	}
	return nil
}

func (s *memStore) GetGroup(_ context.Context, id int) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (s *memStore) ListGroupsForUser(_ context.Context, userID int) ([]Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Group
	for gid, members := range s.members {
		if _, ok := members[userID]; ok {
			out = append(out, *s.groups[gid])
		}
	}
	return out, nil
}

func (s *memStore) GetMember(_ context.Context, groupID, userID int) (*Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[groupID][userID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) ListMembers(_ context.Context, groupID int) ([]Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Member
	for _, m := range s.members[groupID] {
		out = append(out, *m)
	}
	return out, nil
}

func (s *memStore) AddMember(_ context.Context, m Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.members[m.GroupID][m.UserID]; exists {
		return nil // conflict tolerated
	}
	m.JoinedAt = time.Now()
	s.members[m.GroupID][m.UserID] = &m
	return nil
}

func (s *memStore) RemoveMember(_ context.Context, groupID, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[groupID], userID)
	return nil
}

func (s *memStore) UpdateMemberRole(_ context.Context, groupID, userID int, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[groupID][userID].Role = role
	return nil
}

func (s *memStore) CreateMessage(_ context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id()
	m.CreatedAt = time.Now()
	cp := *m
	s.msgs[m.ID] = &cp
	return nil
}

func (s *memStore) GetMessage(_ context.Context, id int) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) ListMessages(_ context.Context, groupID int) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Message
	for _, m := range s.msgs {
		if m.GroupID == groupID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) InsertReadReceipts(_ context.Context, groupID, userID int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs {
		if m.GroupID != groupID {
			continue
		}
		key := [2]int{m.ID, userID}
		if _, exists := s.receipts[key]; exists {
			continue // duplicate tolerated, never an error
		}
		s.receipts[key] = ReadReceipt{MessageID: m.ID, UserID: userID, ReadAt: at}
	}
	return nil
}

func (s *memStore) ListReadReceipts(_ context.Context, messageID int) ([]ReadReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ReadReceipt
	for key, rr := range s.receipts {
		if key[0] == messageID {
			out = append(out, rr)
		}
	}
	return out, nil
}

type fakeUsers struct {
	byID    map[int]*user.User
	byEmail map[string]*user.User
}

func (f *fakeUsers) GetByID(_ context.Context, id int) (*user.User, error) {
	return f.byID[id], nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*user.User, error) {
	return f.byEmail[email], nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (f *fakeNotifier) Dispatch(ev notify.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeNotifier) byType(t string) []notify.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notify.Event
	for _, ev := range f.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

const (
	owner   = 1
	admin   = 2
	member  = 3
	other   = 4
	outcast = 9
)

func newTestService(t *testing.T) (*Service, *memStore, *fakeNotifier) {
	t.Helper()
	store := newMemStore()
	users := &fakeUsers{
		byID: map[int]*user.User{
			owner:  {ID: owner, Name: "Olive", Email: "olive@example.com"},
			admin:  {ID: admin, Name: "Andy", Email: "andy@example.com"},
			member: {ID: member, Name: "Mia", Email: "mia@example.com"},
			other:  {ID: other, Name: "Omar", Email: "omar@example.com"},
		},
		byEmail: map[string]*user.User{
			"olive@example.com": {ID: owner, Name: "Olive", Email: "olive@example.com"},
			"andy@example.com":  {ID: admin, Name: "Andy", Email: "andy@example.com"},
			"mia@example.com":   {ID: member, Name: "Mia", Email: "mia@example.com"},
		},
	}
	notifier := &fakeNotifier{}
	return NewService(store, users, notifier), store, notifier
}

// seedGroup creates a group with an owner, an admin and two members.
func seedGroup(t *testing.T, svc *Service) *Group {
	t.Helper()
	ctx := context.Background()
	g, err := svc.CreateGroup(ctx, owner, "backend team", []int{admin, member, other})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := svc.SetMemberRole(ctx, g.ID, owner, admin, RoleAdmin); err != nil {
		t.Fatalf("promote admin: %v", err)
	}
	return g
}

func TestCreateGroupDeduplicatesMembers(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, owner, "team", []int{admin, admin, owner, member})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	members, _ := store.ListMembers(ctx, g.ID)
	if len(members) != 3 {
		t.Errorf("expected 3 members after dedupe, got %d", len(members))
	}
	owners := 0
	for _, m := range members {
		if m.Role == RoleOwner {
			owners++
			if m.UserID != owner {
				t.Errorf("owner role on wrong user %d", m.UserID)
			}
		}
	}
	if owners != 1 {
		t.Errorf("exactly one owner expected, got %d", owners)
	}
	if got := notifier.byType(notify.TypeGroupInvite); len(got) != 2 {
		t.Errorf("2 invite notifications expected, got %d", len(got))
	}
}

func TestCreateGroupValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateGroup(ctx, owner, "  ", nil); !apperr.Is(err, apperr.KindInvalidInput) {
		t.Errorf("blank name should be invalid input, got %v", err)
	}
	if _, err := svc.CreateGroup(ctx, owner, "team", []int{42}); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("unknown member should be not found, got %v", err)
	}
}

func TestOwnerCanNeverBeRemovedOrDemoted(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	g := seedGroup(t, svc)

	// Every caller role, including the owner itself.
	for _, actor := range []int{owner, admin, member} {
		if err := svc.RemoveMember(ctx, g.ID, actor, owner); !apperr.Is(err, apperr.KindInvalidState) {
			t.Errorf("actor %d removing owner should be invalid state, got %v", actor, err)
		}
		if err := svc.SetMemberRole(ctx, g.ID, actor, owner, RoleMember); !apperr.Is(err, apperr.KindInvalidState) {
			t.Errorf("actor %d demoting owner should be invalid state, got %v", actor, err)
		}
	}
}

func TestAdminManagesMembersButNotAdmins(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	g := seedGroup(t, svc)

	// Admin can remove a plain member.
	if err := svc.RemoveMember(ctx, g.ID, admin, member); err != nil {
		t.Errorf("admin removing member failed: %v", err)
	}

	// Promote another member to admin, then the first admin must not
	// touch them.
	if err := svc.SetMemberRole(ctx, g.ID, owner, other, RoleAdmin); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if err := svc.RemoveMember(ctx, g.ID, admin, other); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("admin removing admin should be forbidden, got %v", err)
	}
	if err := svc.SetMemberRole(ctx, g.ID, admin, other, RoleMember); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("admin demoting admin should be forbidden, got %v", err)
	}

	// Only the owner demotes admins.
	if err := svc.SetMemberRole(ctx, g.ID, owner, other, RoleMember); err != nil {
		t.Errorf("owner demoting admin failed: %v", err)
	}
}

func TestAdminMayDemoteAndRemoveThemself(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	g := seedGroup(t, svc)

	if err := svc.SetMemberRole(ctx, g.ID, admin, admin, RoleMember); err != nil {
		t.Errorf("admin self-demotion failed: %v", err)
	}
	m, _ := store.GetMember(ctx, g.ID, admin)
	if m.Role != RoleMember {
		t.Errorf("role should be member after self-demotion, got %s", m.Role)
	}

	if err := svc.RemoveMember(ctx, g.ID, admin, admin); err != nil {
		t.Errorf("self-removal (leave) failed: %v", err)
	}
}

func TestMemberCannotManageOthers(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	g := seedGroup(t, svc)

	if err := svc.RemoveMember(ctx, g.ID, member, other); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("member removing member should be forbidden, got %v", err)
	}
	if err := svc.SetMemberRole(ctx, g.ID, member, other, RoleAdmin); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("member promoting should be forbidden, got %v", err)
	}
	if err := svc.AddMembers(ctx, g.ID, member, []int{outcast}); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("member adding members should be forbidden, got %v", err)
	}
}

func TestSendMessageRequiresMembership(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	g := seedGroup(t, svc)

	if _, err := svc.SendMessage(ctx, g.ID, outcast, "hi", nil); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("outsider send should be forbidden, got %v", err)
	}
	if _, err := svc.SendMessage(ctx, g.ID, member, "  ", nil); !apperr.Is(err, apperr.KindInvalidInput) {
		t.Errorf("blank content should be invalid input, got %v", err)
	}
	m, err := svc.SendMessage(ctx, g.ID, member, "hello all", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	// Reply must stay inside the group.
	g2, _ := svc.CreateGroup(ctx, owner, "frontend team", nil)
	foreign, _ := svc.SendMessage(ctx, g2.ID, owner, "elsewhere", nil)
	if _, err := svc.SendMessage(ctx, g.ID, member, "reply", &foreign.ID); !apperr.Is(err, apperr.KindInvalidInput) {
		t.Errorf("cross-group reply should be invalid input, got %v", err)
	}
	if reply, err := svc.SendMessage(ctx, g.ID, admin, "reply", &m.ID); err != nil || *reply.ReplyToID != m.ID {
		t.Errorf("in-group reply failed: %v", err)
	}
}

func TestMentionsNotifyResolvedUsersOnly(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()
	g := seedGroup(t, svc)

	_, err := svc.SendMessage(ctx, g.ID, owner,
		"ping @andy@example.com and @mia@example.com, ignore @ghost@example.com and @andy@example.com again", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	mentions := notifier.byType(notify.TypeMention)
	if len(mentions) != 2 {
		t.Fatalf("expected 2 mention notifications, got %d", len(mentions))
	}
	notified := map[int]bool{}
	for _, ev := range mentions {
		notified[ev.UserID] = true
	}
	if !notified[admin] || !notified[member] {
		t.Errorf("admin and member should be mentioned, got %v", notified)
	}
}

func TestMentionOfSenderIsSkipped(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()
	g := seedGroup(t, svc)

	if _, err := svc.SendMessage(ctx, g.ID, admin, "note to self @andy@example.com", nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := notifier.byType(notify.TypeMention); len(got) != 0 {
		t.Errorf("self-mention should not notify, got %v", got)
	}
}

func TestMarkReadIsIdempotentUnderConcurrency(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	g := seedGroup(t, svc)

	var msgIDs []int
	for i := 0; i < 5; i++ {
		m, _ := svc.SendMessage(ctx, g.ID, owner, "msg", nil)
		msgIDs = append(msgIDs, m.ID)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.MarkRead(ctx, g.ID, member); err != nil {
				t.Errorf("concurrent mark read: %v", err)
			}
		}()
	}
	wg.Wait()

	for _, id := range msgIDs {
		receipts, _ := store.ListReadReceipts(ctx, id)
		count := 0
		for _, rr := range receipts {
			if rr.UserID == member {
				count++
			}
		}
		if count != 1 {
			t.Errorf("message %d: expected exactly one receipt for member, got %d", id, count)
		}
	}
}

func TestListMessagesRequiresMembership(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	g := seedGroup(t, svc)
	svc.SendMessage(ctx, g.ID, owner, "hello", nil)

	if _, err := svc.ListMessages(ctx, g.ID, outcast); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("outsider list should be forbidden, got %v", err)
	}
	msgs, err := svc.ListMessages(ctx, g.ID, member)
	if err != nil || len(msgs) != 1 {
		t.Errorf("member list failed: %d msgs, err %v", len(msgs), err)
	}
}

func TestGroupEndToEnd(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	// Admin-level user creates a group with 3 members.
	g, err := svc.CreateGroup(ctx, owner, "launch crew", []int{admin, member, other})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Promotes one member to admin.
	if err := svc.SetMemberRole(ctx, g.ID, owner, admin, RoleAdmin); err != nil {
		t.Fatalf("promote: %v", err)
	}
	m, _ := store.GetMember(ctx, g.ID, admin)
	if m.Role != RoleAdmin {
		t.Fatalf("role not updated: %s", m.Role)
	}

	// Original owner attempts self-removal: rejected.
	if err := svc.RemoveMember(ctx, g.ID, owner, owner); !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("owner self-removal should be invalid state, got %v", err)
	}
}
