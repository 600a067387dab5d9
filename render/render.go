package render

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
	"unicode"

	statsclient "github.com/MrEthical07/statsclient"
	"github.com/MrEthical07/statsclient/session"
	"github.com/microcosm-cc/bluemonday"
)

// Renderer writes human-readable output to w.
type Renderer struct {
	w      io.Writer
	policy *bluemonday.Policy
}

// New returns a Renderer writing to w.
func New(w io.Writer) *Renderer {
	return &Renderer{w: w, policy: bluemonday.StrictPolicy()}
}

// Clean strips markup and control characters from a backend string.
func (r *Renderer) Clean(s string) string {
	s = html.UnescapeString(r.policy.Sanitize(s))
	return strings.Map(func(c rune) rune {
		if c == '\t' || c == '\n' {
			return ' '
		}
		if unicode.IsControl(c) {
			return -1
		}
		return c
	}, s)
}

func (r *Renderer) table() *tabwriter.Writer {
	return tabwriter.NewWriter(r.w, 0, 4, 2, ' ', 0)
}

func (r *Renderer) message(msg string) {
	if msg = r.Clean(msg); msg != "" {
		fmt.Fprintln(r.w, msg)
	}
}

// Login prints the outcome of a login.
func (r *Renderer) Login(res *statsclient.LoginResult) error {
	if res == nil {
		return nil
	}
	r.message(res.Message)
	tw := r.table()
	fmt.Fprintf(tw, "Logged in as\t%s\n", r.Clean(res.Role))
	if res.RateLimit > 0 {
		fmt.Fprintf(tw, "Rate limit\t%d\n", res.RateLimit)
	}
	return tw.Flush()
}

// Registered prints the outcome of a registration.
func (r *Renderer) Registered(res *statsclient.RegisterResult) error {
	if res == nil {
		return nil
	}
	r.message(res.Message)
	tw := r.table()
	if res.UserID != 0 {
		fmt.Fprintf(tw, "User ID\t%d\n", res.UserID)
	}
	if res.Role != "" {
		fmt.Fprintf(tw, "Role\t%s\n", r.Clean(res.Role))
	}
	return tw.Flush()
}

// PlayerStats prints the statistics table.
func (r *Renderer) PlayerStats(s *statsclient.PlayerStats) error {
	if s == nil {
		return nil
	}
	r.message(s.Message)

	tw := r.table()
	if s.Username != "" {
		fmt.Fprintf(tw, "Username\t%s\n", r.Clean(s.Username))
	}
	if s.Nickname != "" {
		fmt.Fprintf(tw, "Nickname\t%s\n", r.Clean(s.Nickname))
	}
	if s.Level > 0 {
		fmt.Fprintf(tw, "Level\t%d\n", s.Level)
	}
	fmt.Fprintf(tw, "Games\t%d\n", s.Games)
	fmt.Fprintf(tw, "Wins\t%d\n", s.Wins)
	fmt.Fprintf(tw, "Losses\t%d\n", s.Losses)
	fmt.Fprintf(tw, "Win rate\t%.1f%%\n", s.WinRate()*100)
	fmt.Fprintf(tw, "Total score\t%d\n", s.TotalScore)
	fmt.Fprintf(tw, "Highest score\t%d\n", s.HighestScore)
	return tw.Flush()
}

// UserInfo prints the profile table.
func (r *Renderer) UserInfo(u *statsclient.UserInfo) error {
	if u == nil {
		return nil
	}
	tw := r.table()
	fmt.Fprintf(tw, "User ID\t%d\n", u.UserID)
	fmt.Fprintf(tw, "Username\t%s\n", r.Clean(u.Username))
	if u.Email != "" {
		fmt.Fprintf(tw, "Email\t%s\n", r.Clean(u.Email))
	}
	fmt.Fprintf(tw, "Role\t%s\n", r.Clean(u.Role))
	if u.CreatedAt != "" {
		fmt.Fprintf(tw, "Created\t%s\n", r.Clean(u.CreatedAt))
	}
	return tw.Flush()
}

// AdminPanel prints the panel message and its rows.
func (r *Renderer) AdminPanel(p *statsclient.AdminPanel) error {
	if p == nil {
		return nil
	}
	r.message(p.Message)
	return r.rows(p.Rows)
}

// SQLResult prints a list of objects as a table and any other result as indented JSON.
func (r *Renderer) SQLResult(res *statsclient.SQLResult) error {
	if res == nil || len(res.Result) == 0 || string(res.Result) == "null" {
		fmt.Fprintln(r.w, "(no result)")
		return nil
	}

	var rows []map[string]any
	if err := json.Unmarshal(res.Result, &rows); err == nil {
		return r.rows(rows)
	}

	var v any
	if err := json.Unmarshal(res.Result, &v); err != nil {
		return fmt.Errorf("%w: sql result: %v", statsclient.ErrMalformedResponse, err)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	// MarshalIndent escapes markup and control characters itself
	_, err = fmt.Fprintln(r.w, string(out))
	return err
}

// rows prints a table whose columns are the sorted union of the row keys. Columns named
// id or *_id come first.
func (r *Renderer) rows(rows []map[string]any) error {
	if len(rows) == 0 {
		fmt.Fprintln(r.w, "(no rows)")
		return nil
	}

	seen := map[string]bool{}
	var cols []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Slice(cols, func(i, j int) bool {
		ii, ji := isIDColumn(cols[i]), isIDColumn(cols[j])
		if ii != ji {
			return ii
		}
		return cols[i] < cols[j]
	})

	tw := r.table()
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = strings.ToUpper(r.Clean(c))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = r.cell(row[c])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(r.w, "(%d rows)\n", len(rows))
	return nil
}

func isIDColumn(name string) bool {
	return name == "id" || strings.HasSuffix(name, "_id")
}

func (r *Renderer) cell(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case string:
		return r.Clean(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "?"
		}
		return r.Clean(string(b))
	}
}

// Status prints the login state and, when known, the token details.
func (r *Renderer) Status(st statsclient.Status) error {
	tw := r.table()
	fmt.Fprintf(tw, "State\t%s\n", st.State)
	if st.State == session.StateAuthenticated {
		fmt.Fprintf(tw, "Role\t%s\n", r.Clean(st.Role))
		if !st.UpdatedAt.IsZero() {
			fmt.Fprintf(tw, "Updated\t%s\n", st.UpdatedAt.Format(time.RFC3339))
		}
		if len(st.Endpoints) > 0 {
			fmt.Fprintf(tw, "Endpoints\t%s\n", strings.Join(st.Endpoints, ", "))
		}
	}
	if st.HasClaims {
		fmt.Fprintf(tw, "User ID\t%d\n", st.UserID)
		fmt.Fprintf(tw, "Calls made\t%d\n", st.UsageCount)
		if !st.ExpiresAt.IsZero() {
			fmt.Fprintf(tw, "Expires\t%s (%s)\n", st.ExpiresAt.Format(time.RFC3339), describeRemaining(st.ExpiresIn))
		}
	}
	return tw.Flush()
}

func describeRemaining(d time.Duration) string {
	if d <= 0 {
		return "expired"
	}
	return "in " + d.Truncate(time.Second).String()
}
