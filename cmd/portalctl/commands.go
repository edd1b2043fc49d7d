package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/umkm-portal/internal/authapi"
	"github.com/spec-kit/umkm-portal/internal/session"
)

var errNotSignedIn = errors.New("not signed in")

func loginCmd(c *cli) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := c.manager.Init(ctx); err != nil {
				c.logger.Debug("previous session not restored", zap.Error(err))
			}

			if password == "" {
				var err error
				if password, err = readLine(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}

			if err := c.manager.Login(ctx, email, password); err != nil {
				if errors.Is(err, authapi.ErrInvalidCredentials) {
					return errors.New("invalid email or password")
				}
				return err
			}

			state := c.manager.Snapshot()
			success(cmd.OutOrStdout(), "Signed in as %s (%s)", state.User.Email, state.User.Role)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func registerCmd(c *cli) *cobra.Command {
	var req authapi.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a business owner account",
		Long:  `Register creates a business owner account. It does not sign in.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.Password == "" {
				var err error
				if req.Password, err = readLine(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}

			resp, err := c.manager.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			success(out, "%s", resp.Message)
			info(out, "user id: %s", resp.UserID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "account password (read from stdin when omitted)")
	cmd.Flags().StringVarP(&req.FullName, "name", "n", "", "full name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func logoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.manager.Logout(cmd.Context()); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func whoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.manager.Init(cmd.Context()); err != nil {
				return err
			}
			return printState(cmd.OutOrStdout(), c.manager.Snapshot())
		},
	}
}

func refreshCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Re-fetch the profile from the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := c.manager.Init(ctx); err != nil {
				return err
			}
			if err := c.manager.RefreshUser(ctx); err != nil {
				if errors.Is(err, session.ErrNoSession) {
					return errNotSignedIn
				}
				return err
			}
			return printState(cmd.OutOrStdout(), c.manager.Snapshot())
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func printState(out io.Writer, state session.State) error {
	if !state.Authenticated() {
		return errNotSignedIn
	}
	info(out, "id:    %s", state.User.ID)
	info(out, "email: %s", state.User.Email)
	info(out, "name:  %s", state.User.FullName)
	info(out, "role:  %s", state.User.Role)
	return nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
