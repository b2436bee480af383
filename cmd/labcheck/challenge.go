package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tturner/labcheck/internal/challenge"
	"github.com/tturner/labcheck/internal/config"
	"github.com/tturner/labcheck/internal/errors"
)

func newChallengeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Issue, sign and verify challenges",
		Long: `Staff tools for challenge documents. Challenges are signed with
HMAC-SHA256 over their canonical JSON using the shared course secret.`,
	}
	cmd.AddCommand(newChallengeIssueCmd())
	cmd.AddCommand(newChallengeVerifyCmd())
	cmd.AddCommand(newChallengeSignCmd())
	return cmd
}

type challengeIssueFlags struct {
	commonFlags
	week                int
	studentID           string
	ttlMinutes          int
	minHTTPRequests     int
	minDistinctBackends int
	headerName          string
	dnsSuffix           string
	noDNS               bool
	handshake           bool
	requireSignature    bool
	out                 string
	interactive         bool
}

func newChallengeIssueCmd() *cobra.Command {
	flags := &challengeIssueFlags{}

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a new challenge for a student",
		Long: `Issue a challenge with a random token and id. Thresholds default to the
challenge_defaults section of the configuration. The challenge is signed
when a secret is available.`,
		Example: `  # Issue a week 11 challenge for one student
  labcheck challenge issue --student s1234567 --out s1234567/challenge.json

  # Ask for every field interactively
  labcheck challenge issue --interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			flags.applyConfig(cmd, cfg)
			if flags.interactive {
				if err := runIssueForm(flags); err != nil {
					return err
				}
			}
			if flags.studentID == "" {
				return missingFlagError(cmd, "--student")
			}
			return runChallengeIssue(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, flags)
		},
	}

	cmd.Flags().IntVar(&flags.week, "week", 0, "Lab week (default from config, 11)")
	cmd.Flags().StringVar(&flags.studentID, "student", "", "Student identifier (required)")
	cmd.Flags().IntVar(&flags.ttlMinutes, "ttl-minutes", 0, "Minutes until the challenge expires (default from config)")
	cmd.Flags().IntVar(&flags.minHTTPRequests, "min-http-requests", 0, "Minimum token-bearing HTTP requests (default from config)")
	cmd.Flags().IntVar(&flags.minDistinctBackends, "min-distinct-backends", 0, "Minimum distinct backends (default from config)")
	cmd.Flags().StringVar(&flags.headerName, "header", "", "HTTP header carrying the token (default from config)")
	cmd.Flags().StringVar(&flags.dnsSuffix, "dns-suffix", "", "Expected DNS query is <token>.<suffix> (default from config)")
	cmd.Flags().BoolVar(&flags.noDNS, "no-dns", false, "Do not require a DNS query")
	cmd.Flags().BoolVar(&flags.handshake, "require-handshake", false, "Require a TCP three-way handshake in the capture")
	cmd.Flags().BoolVar(&flags.requireSignature, "require-signature", false, "Fail instead of issuing an unsigned challenge")
	cmd.Flags().StringVar(&flags.out, "out", "challenge.json", "Output file, or - for stdout")
	cmd.Flags().BoolVar(&flags.interactive, "interactive", false, "Prompt for the challenge fields")
	flags.commonFlags.register(cmd)

	return cmd
}

// applyConfig fills flags the user did not set from the configuration.
func (f *challengeIssueFlags) applyConfig(cmd *cobra.Command, cfg *config.Config) {
	d := cfg.ChallengeDefaults
	if f.week == 0 {
		f.week = cfg.ExpectedWeek
	}
	if f.ttlMinutes == 0 {
		f.ttlMinutes = d.TTLMinutes
	}
	if !cmd.Flags().Changed("min-http-requests") {
		f.minHTTPRequests = d.MinHTTPRequests
	}
	if !cmd.Flags().Changed("min-distinct-backends") {
		f.minDistinctBackends = d.MinDistinctBackends
	}
	if f.headerName == "" {
		f.headerName = d.HTTPHeaderName
	}
	if f.dnsSuffix == "" {
		f.dnsSuffix = d.DNSSuffix
	}
}

func runChallengeIssue(out, errOut io.Writer, cfg *config.Config, flags *challengeIssueFlags) error {
	secret := flags.resolveSecret(cfg)
	if len(secret) == 0 {
		if flags.requireSignature {
			return errors.WrapSecretError(challenge.ErrNoSecret, cfg.SecretEnv)
		}
		fmt.Fprintf(errOut, "WARNING: no secret in --secret or $%s; issuing an unsigned challenge\n", cfg.SecretEnv)
	}
	opts := challenge.GenerateOptions{
		Week:                flags.week,
		StudentID:           flags.studentID,
		TTL:                 time.Duration(flags.ttlMinutes) * time.Minute,
		MinHTTPRequests:     flags.minHTTPRequests,
		MinDistinctBackends: flags.minDistinctBackends,
		HTTPHeaderName:      flags.headerName,
		RequireTCPHandshake: flags.handshake,
		Secret:              secret,
	}
	if !flags.noDNS {
		opts.DNSSuffix = flags.dnsSuffix
	}
	ch, err := challenge.Generate(opts)
	if err != nil {
		return fmt.Errorf("issue challenge: %w", err)
	}

	if flags.out == "-" {
		data, err := ch.Marshal()
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}
	if err := ch.Save(flags.out); err != nil {
		return err
	}
	state := "unsigned"
	if ch.Signed() {
		state = "signed"
	}
	fmt.Fprintf(out, "Issued %s challenge %s for %s (week %d)\n", state, ch.ChallengeID, ch.StudentID, ch.Week)
	fmt.Fprintf(out, "  token: %s\n  expires: %s\n  written to: %s\n", ch.Token, ch.ExpiresAt, flags.out)
	return nil
}

type challengeFileFlags struct {
	commonFlags
	challenge string
	out       string
}

func newChallengeVerifyCmd() *cobra.Command {
	flags := &challengeFileFlags{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a challenge's signature and expiry",
		Long: `Check that a challenge is signed with the course secret and has not
expired. Exits 2 when the signature is wrong or the challenge has expired.`,
		Example: `  labcheck challenge verify --challenge challenge.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.challenge == "" && len(args) > 0 {
				flags.challenge = args[0]
			}
			if flags.challenge == "" {
				return missingFlagError(cmd, "--challenge")
			}
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			return runChallengeVerify(cmd.OutOrStdout(), cfg, flags, time.Now())
		},
	}

	cmd.Flags().StringVar(&flags.challenge, "challenge", "", "Challenge JSON file (required)")
	flags.commonFlags.register(cmd)
	return cmd
}

func runChallengeVerify(out io.Writer, cfg *config.Config, flags *challengeFileFlags, now time.Time) error {
	ch, err := challenge.Load(flags.challenge)
	if err != nil {
		return errors.WrapInputError(err, "challenge", flags.challenge)
	}
	secret := flags.resolveSecret(cfg)
	if ch.Signed() && len(secret) == 0 {
		return errors.WrapSecretError(challenge.ErrNoSecret, cfg.SecretEnv)
	}

	failed := false
	signature := "unsigned"
	if ch.Signed() {
		signature = "valid"
		if !challenge.VerifySignature(ch, secret) {
			signature = "INVALID"
			failed = true
		}
	}
	expiry := "active"
	expired, err := challenge.IsExpired(ch, now)
	switch {
	case err != nil:
		expiry = "unparseable"
		failed = true
	case expired:
		expiry = "EXPIRED"
		failed = true
	}

	fmt.Fprintf(out, "challenge: %s (%s, week %d)\n", ch.ChallengeID, ch.StudentID, ch.Week)
	fmt.Fprintf(out, "signature: %s\n", signature)
	fmt.Fprintf(out, "expires: %s (%s)\n", ch.ExpiresAt, expiry)
	if failed {
		return errSubmissionFailed
	}
	return nil
}

func newChallengeSignCmd() *cobra.Command {
	flags := &challengeFileFlags{}

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign or re-sign a challenge file",
		Long: `Compute the HMAC-SHA256 signature of a challenge with the course secret.
Fields this version does not know about are kept and covered by the signature.`,
		Example: `  # Re-sign in place after editing a requirement
  labcheck challenge sign --challenge challenge.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.challenge == "" && len(args) > 0 {
				flags.challenge = args[0]
			}
			if flags.challenge == "" {
				return missingFlagError(cmd, "--challenge")
			}
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			return runChallengeSign(cmd.OutOrStdout(), cfg, flags)
		},
	}

	cmd.Flags().StringVar(&flags.challenge, "challenge", "", "Challenge JSON file (required)")
	cmd.Flags().StringVar(&flags.out, "out", "", "Output file (default: overwrite the input)")
	flags.commonFlags.register(cmd)
	return cmd
}

func runChallengeSign(out io.Writer, cfg *config.Config, flags *challengeFileFlags) error {
	secret := flags.resolveSecret(cfg)
	if len(secret) == 0 {
		return errors.WrapSecretError(challenge.ErrNoSecret, cfg.SecretEnv)
	}
	ch, err := challenge.Load(flags.challenge)
	if err != nil {
		return errors.WrapInputError(err, "challenge", flags.challenge)
	}
	if err := challenge.Sign(ch, secret); err != nil {
		return err
	}
	dest := flags.out
	if dest == "" {
		dest = flags.challenge
	}
	if err := ch.Save(dest); err != nil {
		return err
	}
	fmt.Fprintf(out, "Signed %s -> %s\n", flags.challenge, dest)
	return nil
}
