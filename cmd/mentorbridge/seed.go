package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mentorbridge/mentorbridge"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type seedOptions struct {
	adminName      string
	adminEmail     string
	adminPassword  string
	samples        bool
	samplePassword string
}

func newSeedCmd(configPath *string) *cobra.Command {
	opts := seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the admin account and optional sample users",
		Long: `Create the admin account and, with --samples, a few mentors and students.
Accounts are matched by email, so running seed twice changes nothing.
The admin password may also be given as MB_SEED_ADMIN_PASSWORD.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.adminPassword == "" {
				opts.adminPassword = os.Getenv("MB_SEED_ADMIN_PASSWORD")
			}
			if opts.adminEmail == "" || opts.adminPassword == "" {
				return fmt.Errorf("%w: --admin-email and --admin-password", errMissingFlag)
			}
			if opts.samples && opts.samplePassword == "" {
				return fmt.Errorf("%w: --sample-password with --samples", errMissingFlag)
			}

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return seed(cmd.Context(), a, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.adminName, "admin-name", "Administrator", "admin display name")
	f.StringVar(&opts.adminEmail, "admin-email", "", "admin email")
	f.StringVar(&opts.adminPassword, "admin-password", "", "admin password")
	f.BoolVar(&opts.samples, "samples", false, "also create sample mentors and students")
	f.StringVar(&opts.samplePassword, "sample-password", "", "password for every sample account")
	return cmd
}

func sampleAccounts(password string) []mentorbridge.RegisterRequest {
	return []mentorbridge.RegisterRequest{
		{
			Name: "Maya Chen", Email: "maya.chen@example.com", Password: password, Role: "mentor",
			Bio: "Backend engineer, ten years of distributed systems.", Expertise: []string{"go", "distributed systems"}, YearsExperience: 10,
		},
		{
			Name: "Ravi Patel", Email: "ravi.patel@example.com", Password: password, Role: "mentor",
			Bio: "Frontend lead.", Expertise: []string{"react", "typescript"}, YearsExperience: 6,
		},
		{
			Name: "Sam Okafor", Email: "sam.okafor@example.com", Password: password, Role: "student",
			College: "State University", Skills: []string{"python"},
		},
		{
			Name: "Lena Novak", Email: "lena.novak@example.com", Password: password, Role: "student",
			College: "Tech Institute", Skills: []string{"go", "sql"},
		},
	}
}

func seed(ctx context.Context, a *app, opts seedOptions) error {
	cfg, err := a.settings.EngineConfig()
	if err != nil {
		return err
	}
	// Provisioning touches neither bookings nor rate limits.
	cfg.Booking.Storage = "memory"
	cfg.Revocation.Enabled = false
	cfg.Security.MaxLoginAttempts = 0
	cfg.Security.MaxRegisterAttempts = 0

	engine, err := a.engine(cfg, nil)
	if err != nil {
		return err
	}

	accounts := []mentorbridge.RegisterRequest{{
		Name: opts.adminName, Email: opts.adminEmail, Password: opts.adminPassword, Role: "admin",
	}}
	if opts.samples {
		accounts = append(accounts, sampleAccounts(opts.samplePassword)...)
	}

	for _, req := range accounts {
		user, created, err := engine.Provision(ctx, req)
		if err != nil {
			return fmt.Errorf("seed %s: %w", req.Email, err)
		}
		a.logger.WithFields(logrus.Fields{
			"user_id": user.ID,
			"email":   user.Email,
			"role":    user.Role(),
			"created": created,
		}).Info("seeded account")
	}
	return nil
}
