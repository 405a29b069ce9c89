package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	adminservice "ride-booking/cmd/admin_service"
	authservice "ride-booking/cmd/auth_service"
	trackingservice "ride-booking/cmd/tracking_service"
	"ride-booking/internal/general/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/config.yaml"

// runners are swapped in tests.
var (
	runAuth     = authservice.Run
	runTracking = trackingservice.Run
	runAdmin    = adminservice.Run
)

func banner() string {
	title := color.New(color.FgCyan, color.Bold).Sprint("ride-booking")
	return title + ` runs one of the ride booking services.

Services:
  auth-service        phone and password sign-in, profiles, tokens
  tracking-service    bookings, live trip tracking, passenger sockets
  admin-service       overview, active trips, recent trip events

Examples:
  ride-booking auth-service --max-concurrent=100
  ride-booking --mode=tracking --max-concurrent=150
  ride-booking admin-service --prefetch=8
  ride-booking token --user 550e8400-e29b-41d4-a716-446655440001 --role DRIVER`
}

// NewRootCommand builds the command tree. Services stop when ctx is cancelled.
func NewRootCommand(ctx context.Context) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "ride-booking",
		Short:         "Ride booking services",
		Long:          banner(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to the YAML configuration file")

	root.AddCommand(
		newAuthCommand(ctx, &configPath),
		newTrackingCommand(ctx, &configPath),
		newAdminCommand(ctx, &configPath),
		newTokenCommand(&configPath),
	)
	return root
}

func checkMaxConcurrent(n int) error {
	if n < 1 {
		return errors.New("--max-concurrent must be >= 1")
	}
	return nil
}

func newAuthCommand(ctx context.Context, configPath *string) *cobra.Command {
	var (
		maxConc     int
		issueTokens bool
	)
	cmd := &cobra.Command{
		Use:     ModeAuth,
		Aliases: []string{"auth", "a"},
		Short:   "Run the auth service",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkMaxConcurrent(maxConc); err != nil {
				return err
			}
			return runAuth(ctx, *configPath, maxConc, issueTokens)
		},
	}
	cmd.Flags().IntVar(&maxConc, "max-concurrent", 100, "maximum number of concurrent HTTP requests to process")
	cmd.Flags().BoolVar(&issueTokens, "issue-tokens", false, "mount POST /tokens for local testing")
	return cmd
}

func newTrackingCommand(ctx context.Context, configPath *string) *cobra.Command {
	var maxConc int
	cmd := &cobra.Command{
		Use:     ModeTracking,
		Aliases: []string{"tracking", "t"},
		Short:   "Run the booking and tracking service",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkMaxConcurrent(maxConc); err != nil {
				return err
			}
			return runTracking(ctx, *configPath, maxConc)
		},
	}
	cmd.Flags().IntVar(&maxConc, "max-concurrent", 150, "maximum number of concurrent HTTP requests to process")
	return cmd
}

func newAdminCommand(ctx context.Context, configPath *string) *cobra.Command {
	var maxConc, prefetch int
	cmd := &cobra.Command{
		Use:     ModeAdmin,
		Aliases: []string{"admin"},
		Short:   "Run the admin dashboard",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if prefetch <= 0 {
				return errors.New("--prefetch must be > 0")
			}
			if err := checkMaxConcurrent(maxConc); err != nil {
				return err
			}
			return runAdmin(ctx, *configPath, prefetch, maxConc)
		},
	}
	cmd.Flags().IntVar(&maxConc, "max-concurrent", 50, "maximum number of concurrent HTTP requests to process")
	cmd.Flags().IntVar(&prefetch, "prefetch", 8, "RabbitMQ prefetch count for the trip event consumer")
	return cmd
}

func newTokenCommand(configPath *string) *cobra.Command {
	var (
		userID, role, secret string
		ttl                  time.Duration
	)
	cmd := &cobra.Command{
		Use:   ModeToken,
		Short: "Mint an access token for a seeded user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				cfg, err := config.LoadFromFile(*configPath)
				if err != nil {
					return err
				}
				secret = cfg.JWT.SecretKey
			}

			token, claims, err := GenerateUserToken(secret, ttl, userID, role)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, token)
			fmt.Fprintln(cmd.ErrOrStderr(), color.New(color.Faint).Sprintf("role=%s expires=%s",
				claims.Role, claims.ExpiresAt.Time.UTC().Format(time.RFC3339)))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id placed in the subject claim")
	cmd.Flags().StringVar(&role, "role", "PASSENGER", "PASSENGER, DRIVER or ADMIN")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret; defaults to jwt.secret_key from the config")
	cmd.Flags().DurationVar(&ttl, "ttl", 2*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// Execute runs the command tree with args (without the program name) and reports errors
// to stderr. The returned code is suitable for os.Exit.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(ctx)
	root.SetArgs(RewriteMode(args))
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, color.RedString("Error:"), err)
		return 1
	}
	return 0
}
