package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/brickplay-core/internal/auth"
	"github.com/nerrad567/brickplay-core/internal/infrastructure/config"
)

type tokenOptions struct {
	subject string
	role    string
	ttl     int // minutes; 0 uses security.jwt.access_token_ttl
}

func newTokenCmd() *cobra.Command {
	var opts tokenOptions
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an API access token",
		Long: `Print an access token signed with the configured JWT secret, for
wiring up a UI or a script.`,
		Example: "  brickplay token --subject ops --role operator --ttl 120",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runToken(opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.subject, "subject", "", "who the token is for")
	f.StringVar(&opts.role, "role", string(auth.RoleOperator), "viewer, operator or admin")
	f.IntVar(&opts.ttl, "ttl", 0, "lifetime in minutes (default security.jwt.access_token_ttl)")
	return cmd
}

func runToken(opts tokenOptions, out io.Writer) error {
	if !auth.IsValidSubject(opts.subject) {
		return fmt.Errorf("invalid subject %q", opts.subject)
	}
	role := auth.Role(opts.role)
	if !auth.IsValidRole(role) {
		return fmt.Errorf("invalid role %q", opts.role)
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	ttl := opts.ttl
	if ttl <= 0 {
		ttl = cfg.Security.JWT.AccessTokenTTL
	}

	token, err := auth.GenerateAccessToken(opts.subject, role, cfg.Security.JWT.Secret, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
