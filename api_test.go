package statsclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/statsclient/internal/backendtest"
	"github.com/MrEthical07/statsclient/session"
)

type backendFixture struct {
	backend *backendtest.Server
	clock   *backendtest.Clock
	url     string
	hits    *atomic.Int32
}

func newBackendFixture(t *testing.T, opts backendtest.Options) *backendFixture {
	t.Helper()
	clock := backendtest.NewClock(time.Now().UTC().Truncate(time.Second))
	if opts.Now == nil {
		opts.Now = clock.Now
	}
	backend, err := backendtest.New(opts)
	if err != nil {
		t.Fatalf("backendtest.New failed: %v", err)
	}
	if _, err := backend.AddUser("alice", "alice@example.com", "goodpass1", RolePlayer); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	if _, err := backend.AddUser("root", "root@example.com", "rootpass1", RoleAdmin); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}

	hits := &atomic.Int32{}
	h := backend.Handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	return &backendFixture{backend: backend, clock: clock, url: srv.URL, hits: hits}
}

func (f *backendFixture) client(t *testing.T, store *session.Store) *Client {
	t.Helper()
	if store == nil {
		store = session.NewMemoryStore()
	}
	c, err := New().WithBaseURL(f.url).WithStore(store).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestPlayerFlowAgainstBackend(t *testing.T) {
	f := newBackendFixture(t, backendtest.Options{})
	_ = f.backend.SetStats("alice", backendtest.Stats{Nickname: "al", Level: 7, Games: 10, Wins: 6, Losses: 4, TotalScore: 900, HighestScore: 150})
	c := f.client(t, nil)
	ctx := context.Background()

	res, err := c.Login(ctx, "alice", "goodpass1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.Role != RolePlayer || res.RateLimit != 5 {
		t.Fatalf("unexpected login result %+v", res)
	}
	loginToken := c.Session().Token

	stats, err := c.PlayerStats(ctx)
	if err != nil {
		t.Fatalf("PlayerStats failed: %v", err)
	}
	if stats.Username != "alice" || stats.Level != 7 || stats.Wins != 6 || stats.WinRate() != 0.6 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	afterStats := c.Session().Token
	if afterStats == loginToken {
		t.Fatal("expected the guarded call to rotate the token")
	}

	info, err := c.UserInfo(ctx)
	if err != nil {
		t.Fatalf("UserInfo failed: %v", err)
	}
	if info.Username != "alice" || info.Email != "alice@example.com" || info.Role != RolePlayer {
		t.Fatalf("unexpected user info %+v", info)
	}
	afterInfo := c.Session().Token

	_, err = c.AdminPanel(ctx)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != backendtest.MsgEndpointForbidden || apiErr.Rotated {
		t.Fatalf("unexpected APIError %#v", err)
	}
	if got := c.Session(); got.Role != RolePlayer || !got.Authenticated() {
		t.Fatalf("role denial must keep the session, got %+v", got)
	}
	if c.Session().Token == afterInfo {
		t.Fatal("role denial must not rotate the token")
	}

	snap := c.MetricsSnapshot()
	if snap.Counters[MetricTokenRotated] != 2 {
		t.Fatalf("expected two rotations, got %d", snap.Counters[MetricTokenRotated])
	}
	if snap.Counters[MetricPermissionDenied] != 1 {
		t.Fatalf("expected one denial, got %d", snap.Counters[MetricPermissionDenied])
	}
}

func TestAdminFlowAgainstBackend(t *testing.T) {
	f := newBackendFixture(t, backendtest.Options{})
	c := f.client(t, nil)
	ctx := context.Background()

	if _, err := c.Login(ctx, "root", "rootpass1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	panel, err := c.AdminPanel(ctx)
	if err != nil {
		t.Fatalf("AdminPanel failed: %v", err)
	}
	if panel.Message != backendtest.MsgAdminWelcome || len(panel.Rows) != 2 {
		t.Fatalf("unexpected panel %+v", panel)
	}
	if panel.Rows[0]["username"] != "alice" {
		t.Fatalf("unexpected first row %v", panel.Rows[0])
	}

	out, err := c.SQLQuery(ctx, "  SELECT * FROM users  ")
	if err != nil {
		t.Fatalf("SQLQuery failed: %v", err)
	}
	if out.Query != "SELECT * FROM users" {
		t.Fatalf("unexpected query %q", out.Query)
	}
	var rows []map[string]any
	if err := json.Unmarshal(out.Result, &rows); err != nil || len(rows) != 2 {
		t.Fatalf("unexpected result %s (%v)", out.Result, err)
	}

	_, err = c.SQLQuery(ctx, "DROP TABLE users")
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != backendtest.MsgSelectOnly {
		t.Fatalf("unexpected APIError %#v", err)
	}
}

func TestSQLQueryRequiresQuery(t *testing.T) {
	f := newBackendFixture(t, backendtest.Options{})
	c := f.client(t, nil)
	if _, err := c.Login(context.Background(), "root", "rootpass1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	before := f.hits.Load()

	_, err := c.SQLQuery(context.Background(), "   ")
	if Classify(err) != OutcomeValidationFailure {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if f.hits.Load() != before {
		t.Fatal("validation failure must not reach the backend")
	}
}

func TestLegacyStatsBody(t *testing.T) {
	f := newBackendFixture(t, backendtest.Options{LegacyStats: true})
	_ = f.backend.SetStats("alice", backendtest.Stats{Games: 4, Wins: 1, Losses: 3, TotalScore: 120, HighestScore: 60})
	c := f.client(t, nil)

	if _, err := c.Login(context.Background(), "alice", "goodpass1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	stats, err := c.PlayerStats(context.Background())
	if err != nil {
		t.Fatalf("PlayerStats failed: %v", err)
	}
	if stats.Games != 4 || stats.Losses != 3 || stats.HighestScore != 60 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.Message != backendtest.MsgStatsOK {
		t.Fatalf("unexpected message %q", stats.Message)
	}
}

func TestLoginRejectedKeepsSession(t *testing.T) {
	f := newBackendFixture(t, backendtest.Options{})
	store := session.NewMemoryStore()
	_ = store.Set(context.Background(), "previous", RolePlayer)
	c := f.client(t, store)

	_, err := c.Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Message != backendtest.MsgBadCredentials {
		t.Fatalf("unexpected APIError %#v", err)
	}
	if got := store.Get(); got.Token != "previous" {
		t.Fatalf("failed login must not touch the session, got %+v", got)
	}
}

func TestLoginValidationMakesNoCall(t *testing.T) {
	f := newBackendFixture(t, backendtest.Options{})
	c := f.client(t, nil)

	_, err := c.Login(context.Background(), " ", "goodpass1")
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "username" {
		t.Fatalf("expected username ValidationError, got %v", err)
	}
	if f.hits.Load() != 0 {
		t.Fatalf("expected no backend call, got %d", f.hits.Load())
	}
}

func TestRegisterValidation(t *testing.T) {
	cases := []struct {
		name  string
		in    Registration
		field string
	}{
		{name: "missing username", in: Registration{Email: "bob@example.com", Password: "pw", ConfirmPassword: "pw"}, field: "username"},
		{name: "missing email", in: Registration{Username: "bob", Password: "pw", ConfirmPassword: "pw"}, field: "email"},
		{name: "bad email", in: Registration{Username: "bob", Email: "bob-at-example", Password: "pw", ConfirmPassword: "pw"}, field: "email"},
		{name: "display name email", in: Registration{Username: "bob", Email: "Bob <bob@example.com>", Password: "pw", ConfirmPassword: "pw"}, field: "email"},
		{name: "missing password", in: Registration{Username: "bob", Email: "bob@example.com"}, field: "password"},
		{name: "mismatch", in: Registration{Username: "bob", Email: "bob@example.com", Password: "pw", ConfirmPassword: "px"}, field: "confirm_password"},
	}

	f := newBackendFixture(t, backendtest.Options{})
	c := f.client(t, nil)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Register(context.Background(), tc.in)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) || vErr.Field != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, err)
			}
		})
	}

	if f.hits.Load() != 0 {
		t.Fatalf("invalid registrations reached the backend %d times", f.hits.Load())
	}
	if got := c.MetricsSnapshot().Counters[MetricValidationFailure]; got != uint64(len(cases)) {
		t.Fatalf("expected %d validation failures, got %d", len(cases), got)
	}
}

func TestRegisterThenLogin(t *testing.T) {
	f := newBackendFixture(t, backendtest.Options{})
	c := f.client(t, nil)
	ctx := context.Background()

	res, err := c.Register(ctx, Registration{Username: "bob", Email: "bob@example.com", Password: "hunter22", ConfirmPassword: "hunter22"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if res.Message != backendtest.MsgUserCreated || res.UserID == 0 {
		t.Fatalf("unexpected register result %+v", res)
	}
	if c.Session().Authenticated() {
		t.Fatal("Register must not log in")
	}

	_, err = c.Register(ctx, Registration{Username: "bob", Email: "bob@example.com", Password: "hunter22", ConfirmPassword: "hunter22"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict || !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected conflict APIError, got %v", err)
	}

	if _, err := c.Login(ctx, "bob", "hunter22"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
}

func TestExpiredTokenClearsSession(t *testing.T) {
	f := newBackendFixture(t, backendtest.Options{TokenTTL: time.Hour})
	c := f.client(t, nil)
	ctx := context.Background()

	if _, err := c.Login(ctx, "alice", "goodpass1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	f.clock.Advance(2 * time.Hour)

	_, err := c.PlayerStats(ctx)
	if !errors.Is(err, ErrExpiredSession) {
		t.Fatalf("expected ErrExpiredSession, got %v", err)
	}
	if c.Session().Authenticated() {
		t.Fatal("expected the session to be cleared")
	}

	before := f.hits.Load()
	if _, err := c.PlayerStats(ctx); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after expiry, got %v", err)
	}
	if f.hits.Load() != before {
		t.Fatal("unauthenticated call reached the backend")
	}
}

func TestForgedTokenClearsSession(t *testing.T) {
	f := newBackendFixture(t, backendtest.Options{})
	store := session.NewMemoryStore()
	_ = store.Set(context.Background(), "not-a-real-token", RolePlayer)
	c := f.client(t, store)

	if _, err := c.UserInfo(context.Background()); !errors.Is(err, ErrExpiredSession) {
		t.Fatalf("expected ErrExpiredSession, got %v", err)
	}
	if store.Get().Authenticated() {
		t.Fatal("expected the session to be cleared")
	}
}

func TestUsageLimitDeniesWithoutRotation(t *testing.T) {
	f := newBackendFixture(t, backendtest.Options{})
	limit := f.backend.UsageLimit(RolePlayer)
	tok, err := f.backend.IssueToken("alice", limit, 0)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	store := session.NewMemoryStore()
	_ = store.Set(context.Background(), tok, RolePlayer)
	c := f.client(t, store)

	_, err = c.PlayerStats(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Rotated || apiErr.Message != backendtest.MsgUsageLimit {
		t.Fatalf("unexpected APIError %#v", err)
	}
	if got := store.Get(); got.Token != tok {
		t.Fatalf("usage denial must keep the token, got %+v", got)
	}
}

func TestUsageCountAdvancesUntilLimit(t *testing.T) {
	f := newBackendFixture(t, backendtest.Options{UsageFactor: 1})
	c := f.client(t, nil)
	ctx := context.Background()

	if _, err := c.Login(ctx, "alice", "goodpass1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	limit := f.backend.UsageLimit(RolePlayer)
	for i := 0; i < limit; i++ {
		if _, err := c.UserInfo(ctx); err != nil {
			t.Fatalf("call %d failed: %v", i+1, err)
		}
	}
	if st := c.Status(); !st.HasClaims || st.UsageCount != limit {
		t.Fatalf("expected usage %d in status, got %+v", limit, st)
	}
	if _, err := c.UserInfo(ctx); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected the cap to deny, got %v", err)
	}
}

func TestStatusReportsClaims(t *testing.T) {
	f := newBackendFixture(t, backendtest.Options{Now: time.Now, TokenTTL: time.Hour})
	c := f.client(t, nil)

	if st := c.Status(); st.State != session.StateAnonymous || st.HasClaims {
		t.Fatalf("unexpected anonymous status %+v", st)
	}

	if _, err := c.Login(context.Background(), "root", "rootpass1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	st := c.Status()
	if st.Role != RoleAdmin || !st.HasClaims || st.UserID != 2 || st.UsageCount != 0 {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.ExpiresIn <= 0 || st.ExpiresIn > time.Hour {
		t.Fatalf("unexpected expiry %s", st.ExpiresIn)
	}
	if !RoleCanAccess(st.Role, EndpointSQLQuery) || len(st.Endpoints) != 4 {
		t.Fatalf("unexpected endpoints %v", st.Endpoints)
	}
}

func TestLogoutClearsWithoutCall(t *testing.T) {
	f := newBackendFixture(t, backendtest.Options{})
	c := f.client(t, nil)
	ctx := context.Background()

	if _, err := c.Login(ctx, "alice", "goodpass1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	before := f.hits.Load()
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if f.hits.Load() != before {
		t.Fatal("Logout must not call the backend")
	}
	if c.Session().Authenticated() {
		t.Fatal("expected anonymous session")
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("second Logout failed: %v", err)
	}
}

func TestSessionSurvivesClientRestart(t *testing.T) {
	f := newBackendFixture(t, backendtest.Options{})
	path := filepath.Join(t.TempDir(), "session.bin")
	ctx := context.Background()

	fs1, err := session.NewFileStore(path, []byte("pass"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	first := f.client(t, session.NewStore(fs1))
	if _, err := first.Login(ctx, "alice", "goodpass1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := first.PlayerStats(ctx); err != nil {
		t.Fatalf("PlayerStats failed: %v", err)
	}
	want := first.Session().Token

	fs2, _ := session.NewFileStore(path, []byte("pass"))
	store := session.NewStore(fs2)
	if err := store.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := store.Get(); got.Token != want || got.Role != RolePlayer {
		t.Fatalf("expected rotated token to be persisted, got %+v", got)
	}

	second := f.client(t, store)
	if _, err := second.UserInfo(ctx); err != nil {
		t.Fatalf("UserInfo with restored session failed: %v", err)
	}
}

type failingPersister struct{}

func (failingPersister) Load(context.Context) (session.Session, error) {
	return session.Session{}, nil
}

func (failingPersister) Save(context.Context, session.Session) error {
	return errors.New("disk full")
}

func (failingPersister) Delete(context.Context) error {
	return errors.New("disk full")
}

func TestLoginPersistFailureKeepsResult(t *testing.T) {
	f := newBackendFixture(t, backendtest.Options{})
	c := f.client(t, session.NewStore(failingPersister{}))

	res, err := c.Login(context.Background(), "alice", "goodpass1")
	if !errors.Is(err, ErrSessionPersist) {
		t.Fatalf("expected ErrSessionPersist, got %v", err)
	}
	if res == nil || res.Token == "" {
		t.Fatalf("expected login result alongside the error, got %+v", res)
	}
	if !c.Session().Authenticated() {
		t.Fatal("in-memory session must still be set")
	}
	if got := c.MetricsSnapshot().Counters[MetricPersistFailure]; got != 1 {
		t.Fatalf("expected one persist failure, got %d", got)
	}
}

func TestClosedClientRejectsCalls(t *testing.T) {
	f := newBackendFixture(t, backendtest.Options{})
	c := f.client(t, nil)
	c.Close()

	if _, err := c.Login(context.Background(), "alice", "goodpass1"); !errors.Is(err, ErrClientNotReady) {
		t.Fatalf("expected ErrClientNotReady, got %v", err)
	}
	if _, err := c.Send(context.Background(), Request{Endpoint: EndpointUserInfo}); !errors.Is(err, ErrClientNotReady) {
		t.Fatalf("expected ErrClientNotReady, got %v", err)
	}
}
