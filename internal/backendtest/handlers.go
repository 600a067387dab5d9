package backendtest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"
)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.echoRequestID)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, message("Uygulama çalışıyor!"))
	})
	r.Post("/login", s.handleLogin)
	r.Post("/register", s.handleRegister)

	r.Group(func(r chi.Router) {
		r.Use(s.guard)
		r.Get("/player-stats", s.handlePlayerStats)
		r.Get("/user-info", s.handleUserInfo)
		r.Get("/admin-only", s.handleAdminPanel)
		r.Post("/admin/sql-query", s.handleSQLQuery)
	})

	return r
}

func (s *Server) echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(headerRequestID); id != "" {
			w.Header().Set(headerRequestID, id)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &in) || in.Username == "" || in.Password == "" {
		writeJSON(w, http.StatusBadRequest, message(MsgMissingFields))
		return
	}

	u, ok := s.lookup(in.Username)
	if !ok || bcrypt.CompareHashAndPassword(u.hash, []byte(in.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, message(MsgBadCredentials))
		return
	}

	tok, err := s.signer.Sign(u.id, u.role, 0, s.ttl)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, message("İşlem hatası!"))
		return
	}

	s.logger.Info("login", "user_id", u.id, "role", u.role)
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      tok,
		"role":       u.role,
		"rate_limit": rateLimitFor(u.role),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if !decodeJSON(w, r, &in) || in.Username == "" || in.Email == "" || in.Password == "" {
		writeJSON(w, http.StatusBadRequest, message(MsgMissingFields))
		return
	}

	id, err := s.AddUser(in.Username, in.Email, in.Password, in.Role)
	if err != nil {
		writeJSON(w, http.StatusConflict, message(err.Error()))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": MsgUserCreated,
		"user_id": id,
		"role":    normalizeRole(in.Role),
	})
}

func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	u, ok := s.caller(w, r)
	if !ok {
		return
	}

	if s.legacyStats {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":       MsgStatsOK,
			"games":         u.stats.Games,
			"wins":          u.stats.Wins,
			"losses":        u.stats.Losses,
			"total_score":   u.stats.TotalScore,
			"highest_score": u.stats.HighestScore,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": MsgStatsOK,
		"data": map[string]any{
			"username":      u.username,
			"nickname":      u.stats.Nickname,
			"level":         u.stats.Level,
			"games":         u.stats.Games,
			"wins":          u.stats.Wins,
			"losses":        u.stats.Losses,
			"total_score":   u.stats.TotalScore,
			"highest_score": u.stats.HighestScore,
		},
	})
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	u, ok := s.caller(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"user_id":    u.id,
			"username":   u.username,
			"email":      u.email,
			"role":       u.role,
			"created_at": u.createdAt.Format("2006-01-02T15:04:05Z"),
		},
	})
}

func (s *Server) handleAdminPanel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": MsgAdminWelcome,
		"data":    s.listUsers(),
	})
}

func (s *Server) handleSQLQuery(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Query string `json:"query"`
	}
	if !decodeJSON(w, r, &in) || strings.TrimSpace(in.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": MsgQueryRequired})
		return
	}

	result, err := s.sql(in.Query)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (*user, bool) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, message(MsgTokenRequired))
		return nil, false
	}
	u, ok := s.byID(claims.UserID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Kullanıcı bulunamadı!"})
		return nil, false
	}
	return u, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	return json.NewDecoder(r.Body).Decode(v) == nil
}

func message(msg string) map[string]any {
	return map[string]any{"message": msg}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
