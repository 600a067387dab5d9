package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	statsclient "github.com/MrEthical07/statsclient"
	"github.com/MrEthical07/statsclient/session"
)

func TestCleanStripsMarkupAndControls(t *testing.T) {
	r := New(&bytes.Buffer{})

	cases := []struct {
		in   string
		want string
	}{
		{in: "<b>alice</b>", want: "alice"},
		{in: "Tom & Jerry", want: "Tom & Jerry"},
		{in: "<script>alert(1)</script>ok", want: "ok"},
		{in: "\x1b[31mred", want: "[31mred"},
		{in: "two\tcols\nrow", want: "two cols row"},
		{in: "Token süresi dolmuş!", want: "Token süresi dolmuş!"},
	}
	for _, tc := range cases {
		if got := r.Clean(tc.in); got != tc.want {
			t.Fatalf("Clean(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPlayerStatsTable(t *testing.T) {
	var buf bytes.Buffer
	err := New(&buf).PlayerStats(&statsclient.PlayerStats{
		Username: "<i>alice</i>",
		Level:    7,
		Games:    10,
		Wins:     6,
		Losses:   4,
		Message:  "Oyuncu istatistikleri başarıyla alındı",
	})
	if err != nil {
		t.Fatalf("PlayerStats failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Oyuncu istatistikleri", "Username", "alice", "Win rate", "60.0%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<i>") {
		t.Fatalf("markup leaked into output:\n%s", out)
	}
}

func TestAdminRowsOrderColumns(t *testing.T) {
	var buf bytes.Buffer
	err := New(&buf).AdminPanel(&statsclient.AdminPanel{
		Message: "Admin paneline hoş geldiniz!",
		Rows: []map[string]any{
			{"username": "alice", "user_id": float64(1), "role": "player"},
			{"username": "root", "user_id": float64(2), "role": "admin", "email": nil},
		},
	})
	if err != nil {
		t.Fatalf("AdminPanel failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected message, header, two rows and footer, got:\n%s", buf.String())
	}
	if !strings.HasPrefix(lines[1], "USER_ID") {
		t.Fatalf("id column must come first: %q", lines[1])
	}
	if fields := strings.Fields(lines[3]); fields[0] != "2" || fields[1] != "-" {
		t.Fatalf("unexpected row %q", lines[3])
	}
	if lines[4] != "(2 rows)" {
		t.Fatalf("unexpected footer %q", lines[4])
	}
}

func TestSQLResultShapes(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	if err := r.SQLResult(&statsclient.SQLResult{Result: json.RawMessage(`[{"id":1,"name":"x"}]`)}); err != nil {
		t.Fatalf("SQLResult failed: %v", err)
	}
	if !strings.Contains(buf.String(), "ID") || !strings.Contains(buf.String(), "(1 rows)") {
		t.Fatalf("expected table, got:\n%s", buf.String())
	}

	buf.Reset()
	if err := r.SQLResult(&statsclient.SQLResult{Result: json.RawMessage(`{"affected":"<b>3</b>"}`)}); err != nil {
		t.Fatalf("SQLResult failed: %v", err)
	}
	if strings.Contains(buf.String(), "<b>") || !strings.Contains(buf.String(), `"affected"`) {
		t.Fatalf("expected escaped JSON, got:\n%s", buf.String())
	}

	buf.Reset()
	if err := r.SQLResult(&statsclient.SQLResult{}); err != nil {
		t.Fatalf("SQLResult failed: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "(no result)" {
		t.Fatalf("unexpected empty output %q", buf.String())
	}

	if err := r.SQLResult(&statsclient.SQLResult{Result: json.RawMessage(`{bad`)}); !errors.Is(err, statsclient.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestStatusOutput(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	if err := r.Status(statsclient.Status{State: session.StateAnonymous}); err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if strings.Contains(buf.String(), "Role") || !strings.Contains(buf.String(), "anonymous") {
		t.Fatalf("unexpected anonymous status:\n%s", buf.String())
	}

	buf.Reset()
	err := r.Status(statsclient.Status{
		State:      session.StateAuthenticated,
		Role:       "admin",
		Endpoints:  statsclient.RoleEndpoints("admin"),
		HasClaims:  true,
		UserID:     2,
		UsageCount: 4,
		ExpiresAt:  time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpiresIn:  90 * time.Minute,
	})
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	for _, want := range []string{"authenticated", "admin", "/admin/sql-query", "Calls made", "in 1h30m0s"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("expected %q in status:\n%s", want, buf.String())
		}
	}
}

func TestNoticeAndExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
		code int
	}{
		{name: "ok", err: nil, want: "", code: ExitOK},
		{name: "unauthenticated", err: statsclient.ErrUnauthenticated, want: "not logged in", code: ExitAuthRequired},
		{name: "expired", err: statsclient.ErrExpiredSession, want: "log in again", code: ExitAuthRequired},
		{name: "network", err: fmt.Errorf("%w: GET /x: refused", statsclient.ErrNetworkFailure), want: "still logged in", code: ExitNetwork},
		{name: "denied", err: fmt.Errorf("wrapped: %w", statsclient.ErrPermissionDenied), want: "Access denied", code: ExitDenied},
		{name: "validation", err: &statsclient.ValidationError{Field: "email", Reason: "not a valid address"}, want: "Invalid email: not a valid address", code: ExitValidation},
		{name: "login", err: statsclient.ErrLoginFailed, want: "Login failed", code: ExitUnexpected},
		{name: "other", err: errors.New("<b>boom</b>"), want: "Error: boom", code: ExitUnexpected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			New(&buf).Notice(tc.err)
			if tc.want == "" && buf.Len() != 0 {
				t.Fatalf("expected no output, got %q", buf.String())
			}
			if !strings.Contains(buf.String(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, buf.String())
			}
			if got := ExitCode(tc.err); got != tc.code {
				t.Fatalf("ExitCode = %d, want %d", got, tc.code)
			}
		})
	}
}
