package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dmitrijs2005/recordapi/internal/server"
	"github.com/dmitrijs2005/recordapi/internal/server/config"
	"github.com/dmitrijs2005/recordapi/internal/server/models"
	"github.com/dmitrijs2005/recordapi/internal/server/services"
)

// adminService is what the commands need from the application.
type adminService interface {
	Migrate(ctx context.Context) error
	CreateAccount(ctx context.Context, in services.RegisterInput, superuser bool) (*models.User, error)
	RevokeAllTokens(ctx context.Context, userID int64) (int64, error)
	PruneExpiredTokens(ctx context.Context, grace time.Duration) (int64, error)
	Close() error
}

type opener func(ctx context.Context, configPath string) (adminService, error)

// appAdmin adapts *server.App to adminService.
type appAdmin struct {
	*server.App
	*services.AuthService
}

func openApp(ctx context.Context, configPath string) (adminService, error) {
	var args []string
	if configPath != "" {
		args = []string{"-c", configPath}
	}
	cfg, err := config.Load(args)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := server.NewLogger(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}
	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return appAdmin{App: app, AuthService: app.Auth()}, nil
}

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var isTerminal = term.IsTerminal

var errPasswordMismatch = errors.New("passwords do not match")

func newRootCmd(open opener) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "admin",
		Short:        "Maintenance commands for recordapi",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to JSON config file")

	withApp := func(run func(cmd *cobra.Command, svc adminService) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			svc, err := open(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer svc.Close()
			return run(cmd, svc)
		}
	}

	root.AddCommand(
		newMigrateCmd(withApp),
		newCreateUserCmd(withApp),
		newRevokeTokensCmd(withApp),
		newPruneTokensCmd(withApp),
	)
	return root
}

type appRunner func(run func(cmd *cobra.Command, svc adminService) error) func(*cobra.Command, []string) error

func newMigrateCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, svc adminService) error {
			if err := svc.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		}),
	}
}

func newCreateUserCmd(withApp appRunner) *cobra.Command {
	var (
		in            services.RegisterInput
		fullName      string
		superuser     bool
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an active account, optionally a superuser",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, svc adminService) error {
			password, err := promptPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}
			in.Password = password
			if fullName != "" {
				in.FullName = &fullName
			}

			u, err := svc.CreateAccount(cmd.Context(), in, superuser)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %q (id %d, superuser %t)\n", u.Username, u.ID, u.IsSuperuser)
			return nil
		}),
	}

	cmd.Flags().StringVar(&in.Username, "username", "", "login name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&fullName, "full-name", "", "display name")
	cmd.Flags().BoolVar(&superuser, "superuser", false, "grant superuser rights")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// promptPassword reads the password from stdin, or asks twice without echo
// when stdin is a terminal.
func promptPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	in := cmd.InOrStdin()
	f, isFile := in.(*os.File)

	if fromStdin || !isFile || !isTerminal(int(f.Fd())) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	out := cmd.ErrOrStderr()
	fmt.Fprint(out, "Password: ")
	first, err := readPassword(int(f.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(out, "Repeat password: ")
	second, err := readPassword(int(f.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if string(first) != string(second) {
		return "", errPasswordMismatch
	}
	return string(first), nil
}

func newRevokeTokensCmd(withApp appRunner) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "revoke-tokens",
		Short: "Revoke every refresh token of a user",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, svc adminService) error {
			n, err := svc.RevokeAllTokens(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %d tokens\n", n)
			return nil
		}),
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "user id")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func newPruneTokensCmd(withApp appRunner) *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "prune-tokens",
		Short: "Delete refresh tokens that expired more than --grace ago",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, svc adminService) error {
			n, err := svc.PruneExpiredTokens(cmd.Context(), grace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired tokens\n", n)
			return nil
		}),
	}
	cmd.Flags().DurationVar(&grace, "grace", 24*time.Hour, "keep tokens that expired within this window")
	return cmd
}
