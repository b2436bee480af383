package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
)

func positiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive whole number")
	}
	return nil
}

func nonNegativeInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return fmt.Errorf("enter a whole number, 0 or more")
	}
	return nil
}

// buildIssueForm prompts for the issue flags, prefilled with their current values.
func buildIssueForm(flags *challengeIssueFlags) (*huh.Form, func() error) {
	week := strconv.Itoa(flags.week)
	ttl := strconv.Itoa(flags.ttlMinutes)
	minHTTP := strconv.Itoa(flags.minHTTPRequests)
	minBackends := strconv.Itoa(flags.minDistinctBackends)
	wantDNS := !flags.noDNS

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Student ID").
				Description("Identifier printed on the challenge.").
				Value(&flags.studentID).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("student ID is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Week").
				Value(&week).
				Validate(positiveInt),
			huh.NewInput().
				Title("Lifetime (minutes)").
				Description("10080 is one week.").
				Value(&ttl).
				Validate(positiveInt),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Minimum token HTTP requests").
				Value(&minHTTP).
				Validate(nonNegativeInt),
			huh.NewInput().
				Title("Minimum distinct backends").
				Value(&minBackends).
				Validate(nonNegativeInt),
			huh.NewInput().
				Title("Token header").
				Value(&flags.headerName),
			huh.NewConfirm().
				Title("Require a DNS query for <token>." + flags.dnsSuffix + "?").
				Value(&wantDNS),
			huh.NewConfirm().
				Title("Require a TCP three-way handshake?").
				Value(&flags.handshake),
		),
	)

	apply := func() error {
		var err error
		if flags.week, err = strconv.Atoi(strings.TrimSpace(week)); err != nil {
			return fmt.Errorf("week: %w", err)
		}
		if flags.ttlMinutes, err = strconv.Atoi(strings.TrimSpace(ttl)); err != nil {
			return fmt.Errorf("lifetime: %w", err)
		}
		if flags.minHTTPRequests, err = strconv.Atoi(strings.TrimSpace(minHTTP)); err != nil {
			return fmt.Errorf("minimum requests: %w", err)
		}
		if flags.minDistinctBackends, err = strconv.Atoi(strings.TrimSpace(minBackends)); err != nil {
			return fmt.Errorf("minimum backends: %w", err)
		}
		flags.noDNS = !wantDNS
		flags.studentID = strings.TrimSpace(flags.studentID)
		return nil
	}
	return form, apply
}

func runIssueForm(flags *challengeIssueFlags) error {
	form, apply := buildIssueForm(flags)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive issue: %w", err)
	}
	return apply()
}
