package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	statsclient "github.com/MrEthical07/statsclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type runFunc func(ctx context.Context, a *app, args []string) error

// run opens the app around fn and maps its error onto an exit status.
func run(cfg *Config, fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := openApp(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return a.finish(fn(cmd.Context(), a, args))
	}
}

type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.ErrOrStderr()}
}

// ask reads one line, returning value unchanged when it is already set.
func (p *prompter) ask(label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLoginCmd(cfg *Config, v *viper.Viper) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login [username]",
		Short: "Log in and keep the session for later commands",
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.Flags().StringVar(&password, "password", "", "password, prompted when empty (env: STATSCTL_PASSWORD)")
	bindEnv(v, cmd.Flags())

	cmd.RunE = run(cfg, func(ctx context.Context, a *app, args []string) error {
		p := newPrompter(cmd)
		var username string
		if len(args) == 1 {
			username = args[0]
		}
		username, err := p.ask("Username", username)
		if err != nil {
			return err
		}
		pw, err := p.ask("Password", password)
		if err != nil {
			return err
		}

		res, err := a.client.Login(ctx, username, pw)
		if res != nil {
			if rerr := a.out.Login(res); rerr != nil {
				return rerr
			}
		}
		return err
	})
	return cmd
}

func newRegisterCmd(cfg *Config, v *viper.Viper) *cobra.Command {
	var r statsclient.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
	}
	fs := cmd.Flags()
	fs.StringVar(&r.Username, "username", "", "account name, prompted when empty")
	fs.StringVar(&r.Email, "email", "", "email address, prompted when empty")
	fs.StringVar(&r.Password, "password", "", "password, prompted when empty (env: STATSCTL_PASSWORD)")
	fs.StringVar(&r.ConfirmPassword, "confirm-password", "", "password again; defaults to --password when that flag is given")
	bindEnv(v, fs)

	cmd.RunE = run(cfg, func(ctx context.Context, a *app, _ []string) error {
		p := newPrompter(cmd)
		in := r
		var err error
		if in.Username, err = p.ask("Username", in.Username); err != nil {
			return err
		}
		if in.Email, err = p.ask("Email", in.Email); err != nil {
			return err
		}
		if in.Password == "" {
			if in.Password, err = p.ask("Password", ""); err != nil {
				return err
			}
			if in.ConfirmPassword, err = p.ask("Confirm password", in.ConfirmPassword); err != nil {
				return err
			}
		} else if in.ConfirmPassword == "" {
			in.ConfirmPassword = in.Password
		}

		res, err := a.client.Register(ctx, in)
		if err != nil {
			return err
		}
		return a.out.Registered(res)
	})
	return cmd
}

func newLogoutCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(cfg, func(ctx context.Context, a *app, _ []string) error {
		if err := a.client.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	})
	return cmd
}

func newStatusCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored session without calling the backend",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(cfg, func(_ context.Context, a *app, _ []string) error {
		return a.out.Status(a.client.Status())
	})
	return cmd
}

func newStatsCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show your player statistics",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(cfg, func(ctx context.Context, a *app, _ []string) error {
		stats, err := a.client.PlayerStats(ctx)
		if err != nil {
			return err
		}
		return a.out.PlayerStats(stats)
	})
	return cmd
}

func newWhoamiCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the profile of the logged-in user",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(cfg, func(ctx context.Context, a *app, _ []string) error {
		info, err := a.client.UserInfo(ctx)
		if err != nil {
			return err
		}
		return a.out.UserInfo(info)
	})
	return cmd
}

func newAdminCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Show the admin panel (admin role only)",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(cfg, func(ctx context.Context, a *app, _ []string) error {
		panel, err := a.client.AdminPanel(ctx)
		if err != nil {
			return err
		}
		return a.out.AdminPanel(panel)
	})
	return cmd
}

func newSQLCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sql <query>",
		Short: "Run a query on the admin SQL endpoint (admin role only)",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.RunE = run(cfg, func(ctx context.Context, a *app, args []string) error {
		res, err := a.client.SQLQuery(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return a.out.SQLResult(res)
	})
	return cmd
}
