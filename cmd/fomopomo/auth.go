package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	authEmail    string
	authPassword string
	authNickname string
)

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and remember its token",
		Args:  cobra.NoArgs,
		RunE:  runRegisterCmd,
	}
	addCredentialFlags(cmd)
	cmd.Flags().StringVar(&authNickname, "nickname", "", "display name (default: email prefix)")
	return cmd
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the token",
		Args:  cobra.NoArgs,
		RunE:  runLoginCmd,
	}
	addCredentialFlags(cmd)
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := loadWorkspace()
			if err != nil {
				return err
			}
			if err := ws.saveToken(""); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := loadWorkspace()
			if err != nil {
				return err
			}
			if err := ws.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			user, err := ws.api.Me(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> on %s\n", user.Nickname, user.Email, ws.cfg.ServerURL())
			return nil
		},
	}
}

func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&authEmail, "email", "", "account email")
	cmd.Flags().StringVar(&authPassword, "password", "", "account password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
}

func runRegisterCmd(cmd *cobra.Command, _ []string) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}
	password, err := readPassword(cmd, authPassword)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd)
	defer cancel()
	result, err := ws.api.Register(ctx, strings.TrimSpace(authEmail), password, authNickname)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if err := ws.saveToken(result.Token); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered as %s\n", result.User.Nickname)
	return nil
}

func runLoginCmd(cmd *cobra.Command, _ []string) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}
	password, err := readPassword(cmd, authPassword)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd)
	defer cancel()
	result, err := ws.api.Login(ctx, strings.TrimSpace(authEmail), password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := ws.saveToken(result.Token); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", result.User.Nickname)
	return nil
}

// readPassword returns value, or prompts without echo when stdin is a terminal.
func readPassword(cmd *cobra.Command, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--password is required when stdin is not a terminal")
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}
