package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/totegamma/chatrelay/internal/domain"
)

// --- mocks ---

type mockConnectionRepo struct {
	mu      sync.Mutex
	conns   map[string]domain.Connection
	deleted []string
	listErr error
}

func newMockConnectionRepo(conns ...domain.Connection) *mockConnectionRepo {
	m := &mockConnectionRepo{conns: map[string]domain.Connection{}}
	for _, c := range conns {
		m.conns[c.ConnectionID] = c
	}
	return m
}

func (m *mockConnectionRepo) Put(ctx context.Context, conn domain.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[conn.ConnectionID] = conn
	return nil
}

func (m *mockConnectionRepo) Get(ctx context.Context, connectionID string) (domain.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.conns[connectionID]
	if !ok {
		return domain.Connection{}, domain.NotFoundError{Resource: "connection"}
	}
	return conn, nil
}

func (m *mockConnectionRepo) Delete(ctx context.Context, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, connectionID)
	m.deleted = append(m.deleted, connectionID)
	return nil
}

func (m *mockConnectionRepo) List(ctx context.Context) ([]domain.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	result := make([]domain.Connection, 0, len(m.conns))
	for _, c := range m.conns {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ConnectionID < result[j].ConnectionID })
	return result, nil
}

type mockMappingRepo struct {
	rules    []domain.MappingRule
	replaced int
}

func (m *mockMappingRepo) List(ctx context.Context) ([]domain.MappingRule, error) {
	return append([]domain.MappingRule(nil), m.rules...), nil
}

func (m *mockMappingRepo) Replace(ctx context.Context, rules []domain.MappingRule) error {
	m.rules = append([]domain.MappingRule(nil), rules...)
	m.replaced++
	return nil
}

type mockMappingSource struct {
	rules   []domain.MappingRule
	err     error
	fetched int
}

func (m *mockMappingSource) Fetch(ctx context.Context) ([]domain.MappingRule, error) {
	m.fetched++
	if m.err != nil {
		return nil, m.err
	}
	return m.rules, nil
}

type mockAuth struct {
	emails map[string]string
	err    error
}

func (m *mockAuth) EmailByToken(ctx context.Context, token string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	email, ok := m.emails[token]
	return email, ok, nil
}

type mockPlatform struct {
	mu          sync.Mutex
	users       map[string]domain.User
	delays      map[string]time.Duration
	userCalls   []string
	adminPosts  []string
	posts       []domain.OutgoingMessage
	postChannel string
	history     []domain.PlatformMessage
	replies     []domain.PlatformMessage
	lastLatest  string
	lastLimit   int
	channels    map[string]domain.ChannelInfo
	inFlight    int
	maxInFlight int
}

func newMockPlatform() *mockPlatform {
	return &mockPlatform{
		users:    map[string]domain.User{},
		delays:   map[string]time.Duration{},
		channels: map[string]domain.ChannelInfo{},
	}
}

func (m *mockPlatform) GetUser(ctx context.Context, userID string) (domain.User, error) {
	m.mu.Lock()
	m.userCalls = append(m.userCalls, userID)
	delay := m.delays[userID]
	user, ok := m.users[userID]
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	m.mu.Lock()
	m.inFlight--
	m.mu.Unlock()
	if !ok {
		return domain.User{}, fmt.Errorf("user_not_found")
	}
	return user, nil
}

func (m *mockPlatform) PostMessage(ctx context.Context, channelID string, msg domain.OutgoingMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postChannel = channelID
	m.posts = append(m.posts, msg)
	return "1700000000.000100", nil
}

func (m *mockPlatform) PostToAdminChannel(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adminPosts = append(m.adminPosts, text)
	return nil
}

func (m *mockPlatform) GetChannelInfo(ctx context.Context, channelID string) (domain.ChannelInfo, error) {
	info, ok := m.channels[channelID]
	if !ok {
		return domain.ChannelInfo{ID: channelID, Name: "unknown", TeamID: "unknown"}, nil
	}
	return info, nil
}

func (m *mockPlatform) GetHistory(ctx context.Context, channelID, latest string, limit int) ([]domain.PlatformMessage, error) {
	m.lastLatest = latest
	m.lastLimit = limit
	return m.history, nil
}

func (m *mockPlatform) GetReplies(ctx context.Context, channelID, ts string, limit int) ([]domain.PlatformMessage, error) {
	m.lastLimit = limit
	return m.replies, nil
}

type mockGateway struct {
	mu     sync.Mutex
	stale  map[string]bool
	failOn map[string]error
	pushed map[string][]any
	closed []string
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		stale:  map[string]bool{},
		failOn: map[string]error{},
		pushed: map[string][]any{},
	}
}

func (m *mockGateway) Post(ctx context.Context, connectionID string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stale[connectionID] {
		return domain.ErrStaleConnection
	}
	if err := m.failOn[connectionID]; err != nil {
		return err
	}
	m.pushed[connectionID] = append(m.pushed[connectionID], payload)
	return nil
}

func (m *mockGateway) Close(ctx context.Context, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, connectionID)
	return nil
}

type mockEventLog struct {
	seen map[string]bool
}

func (m *mockEventLog) Seen(ctx context.Context, key string) (bool, error) {
	if m.seen[key] {
		return true, nil
	}
	m.seen[key] = true
	return false, nil
}

func (m *mockEventLog) Forget(ctx context.Context, key string) error {
	delete(m.seen, key)
	return nil
}
