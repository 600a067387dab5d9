// Package backendtest is an in-process stand-in for the statistics backend. It speaks the
// same HTTP contract (bcrypt-hashed users, HS256 tokens re-issued through New-Token on
// every guarded call, per-role usage limits, Turkish messages) and is used by package
// tests and the mock-backend example.
package backendtest

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/statsclient/internal/logging"
	"github.com/MrEthical07/statsclient/token"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

// Backend messages.
const (
	MsgMissingFields      = "Eksik bilgi!"
	MsgBadCredentials     = "Geçersiz kullanıcı adı veya şifre!"
	MsgUserExists         = "Kullanıcı adı zaten kayıtlı!"
	MsgUserCreated        = "Kullanıcı başarıyla oluşturuldu!"
	MsgTokenRequired      = "Token gerekli!"
	MsgTokenExpired       = "Token süresi dolmuş!"
	MsgTokenInvalid       = "Geçersiz token!"
	MsgUsageLimit         = "Token kullanım limiti aşıldı!"
	MsgEndpointForbidden  = "Bu endpoint için yetkiniz yok!"
	MsgStatsOK            = "Oyuncu istatistikleri başarıyla alındı"
	MsgAdminWelcome       = "Admin paneline hoş geldiniz!"
	MsgQueryRequired      = "Sorgu gerekli!"
	MsgSelectOnly         = "Yalnızca SELECT sorguları destekleniyor!"
	defaultTokenTTL       = time.Hour
	defaultUsageFactor    = 5
	defaultIssuer         = "stats-backend"
	defaultBcryptCost     = bcrypt.MinCost
	playerRateLimit       = 5
	adminRateLimit        = 10
	roleAdmin             = "admin"
	rolePlayer            = "player"
	headerNewToken        = "New-Token"
	headerRequestID       = "X-Request-ID"
	maxRequestBody        = 1 << 20
	sqlResultRowsMaxCount = 100
)

// Stats is the per-user statistics row served by /player-stats.
type Stats struct {
	Nickname     string `json:"nickname"`
	Level        int    `json:"level"`
	Games        int    `json:"games"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
	TotalScore   int64  `json:"total_score"`
	HighestScore int64  `json:"highest_score"`
}

type user struct {
	id        int64
	username  string
	email     string
	role      string
	hash      []byte
	createdAt time.Time
	stats     Stats
}

// SQLFunc executes an admin query and returns the value placed under "result".
type SQLFunc func(query string) (any, error)

// Options configures a Server.
type Options struct {
	Secret []byte
	// TokenTTL is the lifetime of every issued token.
	TokenTTL time.Duration
	// UsageFactor multiplies the role rate limit into the per-token usage cap.
	UsageFactor int
	Now         func() time.Time
	Logger      *slog.Logger
	// LegacyStats serves /player-stats as the older flat body.
	LegacyStats bool
	SQL         SQLFunc
	BcryptCost  int
}

// Server is the fake backend.
type Server struct {
	mu     sync.Mutex
	users  map[string]*user
	nextID int64

	signer      *token.Signer
	ttl         time.Duration
	usageFactor int
	now         func() time.Time
	logger      *slog.Logger
	legacyStats bool
	sql         SQLFunc
	cost        int

	router chi.Router
}

// New returns a Server with no users.
func New(opts Options) (*Server, error) {
	if len(opts.Secret) == 0 {
		opts.Secret = []byte("backendtest-secret")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = defaultTokenTTL
	}
	if opts.UsageFactor <= 0 {
		opts.UsageFactor = defaultUsageFactor
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = defaultBcryptCost
	}

	signer, err := token.NewSigner(opts.Secret, defaultIssuer, opts.Now)
	if err != nil {
		return nil, err
	}

	s := &Server{
		users:       make(map[string]*user),
		nextID:      1,
		signer:      signer,
		ttl:         opts.TokenTTL,
		usageFactor: opts.UsageFactor,
		now:         opts.Now,
		logger:      opts.Logger,
		legacyStats: opts.LegacyStats,
		sql:         opts.SQL,
		cost:        opts.BcryptCost,
	}
	if s.sql == nil {
		s.sql = s.selectUsers
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving the backend contract.
func (s *Server) Handler() http.Handler {
	return s.router
}

// AddUser registers a user directly. An unknown role becomes player.
func (s *Server) AddUser(username, email, password, role string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return 0, errors.New(MsgUserExists)
	}
	u := &user{
		id:        s.nextID,
		username:  username,
		email:     email,
		role:      normalizeRole(role),
		hash:      hash,
		createdAt: s.now().UTC(),
		stats:     Stats{Nickname: username, Level: 1},
	}
	s.nextID++
	s.users[username] = u
	return u.id, nil
}

// SetStats replaces the statistics of username.
func (s *Server) SetStats(username string, stats Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return errors.New("unknown user")
	}
	u.stats = stats
	return nil
}

// IssueToken mints a token for username with the given usage count, as if the user had
// already made usage guarded calls. A non-positive ttl uses the server TTL.
func (s *Server) IssueToken(username string, usage int, ttl time.Duration) (string, error) {
	s.mu.Lock()
	u, ok := s.users[username]
	s.mu.Unlock()
	if !ok {
		return "", errors.New("unknown user")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	return s.signer.Sign(u.id, u.role, usage, ttl)
}

// UsageLimit returns the number of guarded calls a token of role may make.
func (s *Server) UsageLimit(role string) int {
	return rateLimitFor(role) * s.usageFactor
}

func (s *Server) lookup(username string) (*user, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	return u, ok
}

func (s *Server) byID(id int64) (*user, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.id == id {
			return u, true
		}
	}
	return nil, false
}

func (s *Server) listUsers() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]map[string]any, 0, len(s.users))
	for _, u := range s.users {
		rows = append(rows, map[string]any{
			"user_id":  u.id,
			"username": u.username,
			"email":    u.email,
			"role":     u.role,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i]["user_id"].(int64) < rows[j]["user_id"].(int64)
	})
	return rows
}

func (s *Server) selectUsers(query string) (any, error) {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(query)), "select") {
		return nil, errors.New(MsgSelectOnly)
	}
	rows := s.listUsers()
	if len(rows) > sqlResultRowsMaxCount {
		rows = rows[:sqlResultRowsMaxCount]
	}
	return rows, nil
}

func normalizeRole(role string) string {
	if role == roleAdmin {
		return roleAdmin
	}
	return rolePlayer
}

func rateLimitFor(role string) int {
	if role == roleAdmin {
		return adminRateLimit
	}
	return playerRateLimit
}

func canAccess(role, path string) bool {
	if role == roleAdmin {
		return true
	}
	switch path {
	case "/player-stats", "/user-info":
		return true
	default:
		return false
	}
}
