package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// Password is shared by every account the scenarios register.
const Password = "correct horse battery"

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, body any) error
	DoWithToken(method, path, token string) error
	ExpectStatus(want int) error
	GetResponseField(path string) (string, error)
	SetToken(actor, token string)
	HasToken(actor string) bool
	UseActor(actor string) error
	CurrentActor() string
	SetEmail(actor, email string)
	Email(actor string) string
	Set(key, value string)
	Get(key string) string
	Unique(s string) string
}

// RegisterSteps registers registration, login and role step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext, adminEmail, adminPassword string) {
	steps := &authSteps{tc: tc, adminEmail: adminEmail, adminPassword: adminPassword}

	// Accounts
	ctx.Step(`^a customer "([^"]*)" has registered$`, steps.customerRegistered)
	ctx.Step(`^I register with email "([^"]*)" and password "([^"]*)"$`, steps.register)
	ctx.Step(`^I log in with email "([^"]*)" and password "([^"]*)"$`, steps.login)
	ctx.Step(`^I am signed in as "([^"]*)"$`, steps.signedInAs)
	ctx.Step(`^the admin is signed in$`, steps.adminSignedIn)

	// Roles
	ctx.Step(`^"([^"]*)" has been given the "([^"]*)" role$`, steps.grantRole)

	// Token validation
	ctx.Step(`^I GET "([^"]*)" with token "([^"]*)"$`, steps.getWithToken)
}

type authSteps struct {
	tc            TestContext
	adminEmail    string
	adminPassword string
}

func (s *authSteps) customerRegistered(ctx context.Context, actor string) error {
	email := s.tc.Unique(actor + "@example.com")
	prev := s.tc.CurrentActor()
	if err := s.tc.UseActor(""); err != nil {
		return err
	}
	if err := s.tc.Do(http.MethodPost, "/auth/register", map[string]string{
		"email":    email,
		"password": Password,
	}); err != nil {
		return err
	}
	if err := s.tc.ExpectStatus(http.StatusCreated); err != nil {
		return err
	}
	if err := s.remember(actor, email); err != nil {
		return err
	}
	userID, err := s.tc.GetResponseField("user.id")
	if err != nil {
		return err
	}
	s.tc.Set(actor+".id", userID)
	if prev != "" {
		return s.tc.UseActor(prev)
	}
	return s.tc.UseActor(actor)
}

func (s *authSteps) register(ctx context.Context, email, password string) error {
	if err := s.tc.UseActor(""); err != nil {
		return err
	}
	return s.tc.Do(http.MethodPost, "/auth/register", map[string]string{
		"email":    s.tc.Unique(email),
		"password": password,
	})
}

func (s *authSteps) login(ctx context.Context, email, password string) error {
	if err := s.tc.UseActor(""); err != nil {
		return err
	}
	return s.tc.Do(http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (s *authSteps) signedInAs(ctx context.Context, actor string) error {
	return s.tc.UseActor(actor)
}

func (s *authSteps) adminSignedIn(ctx context.Context) error {
	if err := s.signIn("admin", s.adminEmail, s.adminPassword); err != nil {
		return fmt.Errorf("admin login (is ADMIN_BOOTSTRAP_EMAIL set on the server?): %w", err)
	}
	return s.tc.UseActor("admin")
}

// grantRole promotes actor as the admin, then signs actor in again because
// the role travels in the token.
func (s *authSteps) grantRole(ctx context.Context, actor, role string) error {
	prev := s.tc.CurrentActor()
	if !s.tc.HasToken("admin") {
		if err := s.signIn("admin", s.adminEmail, s.adminPassword); err != nil {
			return err
		}
	}
	if err := s.tc.UseActor("admin"); err != nil {
		return err
	}
	if err := s.tc.Do(http.MethodPut, "/admin/users/"+s.tc.Get(actor+".id")+"/role", map[string]string{"role": role}); err != nil {
		return err
	}
	if err := s.tc.ExpectStatus(http.StatusOK); err != nil {
		return err
	}
	if err := s.signIn(actor, s.tc.Email(actor), Password); err != nil {
		return err
	}
	return s.tc.UseActor(prev)
}

func (s *authSteps) getWithToken(ctx context.Context, path, token string) error {
	return s.tc.DoWithToken(http.MethodGet, path, token)
}

func (s *authSteps) signIn(actor, email, password string) error {
	if err := s.login(context.Background(), email, password); err != nil {
		return err
	}
	if err := s.tc.ExpectStatus(http.StatusOK); err != nil {
		return err
	}
	return s.remember(actor, email)
}

func (s *authSteps) remember(actor, email string) error {
	token, err := s.tc.GetResponseField("access_token")
	if err != nil {
		return err
	}
	s.tc.SetToken(actor, token)
	s.tc.SetEmail(actor, email)
	return nil
}
