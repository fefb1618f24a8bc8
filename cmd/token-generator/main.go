// Command token-generator issues project access tokens for local development
// and manual testing of the API.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/api/middleware"
	"github.com/phrazzld/scry-studio/internal/config"
	"github.com/spf13/cobra"
)

type options struct {
	secret   string
	issuer   string
	subject  string
	projects []string
	ttl      time.Duration
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "token-generator",
		Short: "Issue a project access token",
		Long: `Issue a signed JWT granting access to one or more projects.

The signing secret defaults to SCRY_AUTH_JWT_SECRET and the issuer to
SCRY_AUTH_ISSUER, matching the server configuration.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := issue(opts)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, token)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.secret, "secret", os.Getenv("SCRY_AUTH_JWT_SECRET"), "HMAC signing secret (at least 32 characters)")
	flags.StringVar(&opts.issuer, "issuer", os.Getenv("SCRY_AUTH_ISSUER"), "token issuer")
	flags.StringVar(&opts.subject, "subject", "developer", "token subject")
	flags.StringSliceVarP(&opts.projects, "project", "p", nil, "project ID the token grants access to (repeatable)")
	flags.DurationVar(&opts.ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func issue(opts options) (string, error) {
	if opts.ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive")
	}

	projectIDs := make([]uuid.UUID, 0, len(opts.projects))
	for _, p := range opts.projects {
		id, err := uuid.Parse(p)
		if err != nil {
			return "", fmt.Errorf("invalid project ID %q: %w", p, err)
		}
		projectIDs = append(projectIDs, id)
	}

	tokens, err := middleware.NewTokenService(config.AuthConfig{JWTSecret: opts.secret, Issuer: opts.issuer})
	if err != nil {
		return "", err
	}
	return tokens.Sign(opts.subject, projectIDs, opts.ttl)
}
