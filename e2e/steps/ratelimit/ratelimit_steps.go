package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, body any) error
	UseActor(actor string) error
	Email(actor string) string
	GetResponseField(path string) (string, error)
	GetLastResponseStatus() int
}

// RegisterSteps registers login throttling and enumeration steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	// Login throttling
	ctx.Step(`^I fail to log in as "([^"]*)" (\d+) times in a row$`, steps.failLoginNTimes)
	ctx.Step(`^the first attempt should return (\d+)$`, steps.firstAttemptShouldReturn)
	ctx.Step(`^a later attempt should return (\d+)$`, steps.laterAttemptShouldReturn)

	// Generic error messages prevent enumeration
	ctx.Step(`^I attempt login with unknown email "([^"]*)"$`, steps.attemptUnknownEmail)
	ctx.Step(`^I attempt login as "([^"]*)" with a wrong password$`, steps.attemptWrongPassword)
	ctx.Step(`^both login errors should carry the same message$`, steps.messagesShouldMatch)
}

type ratelimitSteps struct {
	tc TestContext
	// State for tracking across steps
	statuses []int
	messages []string
}

func (s *ratelimitSteps) failLoginNTimes(ctx context.Context, actor string, times int) error {
	s.statuses = s.statuses[:0]
	for range times {
		if err := s.wrongPassword(s.tc.Email(actor)); err != nil {
			return err
		}
		s.statuses = append(s.statuses, s.tc.GetLastResponseStatus())
	}
	return nil
}

func (s *ratelimitSteps) firstAttemptShouldReturn(ctx context.Context, status int) error {
	if len(s.statuses) == 0 {
		return fmt.Errorf("no login attempts recorded")
	}
	if s.statuses[0] != status {
		return fmt.Errorf("first attempt: expected %d, got %d", status, s.statuses[0])
	}
	return nil
}

func (s *ratelimitSteps) laterAttemptShouldReturn(ctx context.Context, status int) error {
	if len(s.statuses) < 2 || !slices.Contains(s.statuses[1:], status) {
		return fmt.Errorf("expected a later attempt to return %d, got %v", status, s.statuses)
	}
	return nil
}

func (s *ratelimitSteps) attemptUnknownEmail(ctx context.Context, email string) error {
	return s.recordMessage(email)
}

func (s *ratelimitSteps) attemptWrongPassword(ctx context.Context, actor string) error {
	return s.recordMessage(s.tc.Email(actor))
}

func (s *ratelimitSteps) messagesShouldMatch(ctx context.Context) error {
	if len(s.messages) != 2 {
		return fmt.Errorf("expected two login errors, got %d", len(s.messages))
	}
	if s.messages[0] != s.messages[1] {
		return fmt.Errorf("login errors differ: %q vs %q", s.messages[0], s.messages[1])
	}
	return nil
}

func (s *ratelimitSteps) recordMessage(email string) error {
	if err := s.wrongPassword(email); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != http.StatusUnauthorized {
		return fmt.Errorf("expected 401, got %d", status)
	}
	msg, err := s.tc.GetResponseField("error_description")
	if err != nil {
		return err
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *ratelimitSteps) wrongPassword(email string) error {
	if err := s.tc.UseActor(""); err != nil {
		return err
	}
	return s.tc.Do(http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": "definitely-not-it",
	})
}
