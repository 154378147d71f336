package common

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, body any) error
	ExpectStatus(want int) error
	GetResponseField(path string) (string, error)
	UseActor(actor string) error
	Set(key, value string)
	Expand(s string) string
}

// RegisterSteps registers generic request and assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^I am not signed in$`, steps.anonymous)
	ctx.Step(`^I (GET|POST|PUT|DELETE) "([^"]*)"$`, steps.request)
	ctx.Step(`^I (POST|PUT) "([^"]*)" with body:$`, steps.requestWithBody)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal (-?\d+)$`, steps.fieldShouldEqual)
	ctx.Step(`^the response error should be "([^"]*)"$`, steps.errorShouldBe)
	ctx.Step(`^I save the response field "([^"]*)" as "([^"]*)"$`, steps.saveField)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) anonymous(ctx context.Context) error {
	return s.tc.UseActor("")
}

func (s *commonSteps) request(ctx context.Context, method, path string) error {
	return s.tc.Do(method, path, nil)
}

func (s *commonSteps) requestWithBody(ctx context.Context, method, path string, body *godog.DocString) error {
	return s.tc.Do(method, path, body.Content)
}

func (s *commonSteps) statusShouldBe(ctx context.Context, status int) error {
	return s.tc.ExpectStatus(status)
}

func (s *commonSteps) fieldShouldBe(ctx context.Context, field, want string) error {
	got, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if want = s.tc.Expand(want); got != want {
		return fmt.Errorf("field %q: expected %q, got %q", field, want, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldEqual(ctx context.Context, field string, want int64) error {
	raw, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	got, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("field %q is not an integer: %q", field, raw)
	}
	if got != want {
		return fmt.Errorf("field %q: expected %d, got %d", field, want, got)
	}
	return nil
}

func (s *commonSteps) errorShouldBe(ctx context.Context, code string) error {
	return s.fieldShouldBe(ctx, "error", code)
}

func (s *commonSteps) saveField(ctx context.Context, field, name string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	s.tc.Set(name, value)
	return nil
}
