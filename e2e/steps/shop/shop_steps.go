package shop

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, body any) error
	ExpectStatus(want int) error
	GetResponseField(path string) (string, error)
	HasToken(actor string) bool
	UseActor(actor string) error
	CurrentActor() string
	Set(key, value string)
	Get(key string) string
	Unique(s string) string
}

// RegisterSteps registers catalog, cart, checkout and fulfilment steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &shopSteps{tc: tc}

	// Catalog
	ctx.Step(`^the admin has listed "([^"]*)" priced (\d+) with (\d+) in stock$`, steps.listProduct)
	ctx.Step(`^the stock of "([^"]*)" should be (\d+)$`, steps.stockShouldBe)

	// Cart and checkout
	ctx.Step(`^I have a default shipping address$`, steps.addAddress)
	ctx.Step(`^I add (\d+) of "([^"]*)" to my cart$`, steps.addToCart)
	ctx.Step(`^I check out paying by "([^"]*)"$`, steps.checkout)

	// Fulfilment
	ctx.Step(`^"([^"]*)" moves the order to "([^"]*)"$`, steps.moveOrder)
	ctx.Step(`^the order status should be "([^"]*)"$`, steps.orderStatusShouldBe)
}

type shopSteps struct {
	tc TestContext
}

// listProduct creates the product as the admin. Later steps refer to it by
// name; its ID and slug are saved as {<name>.id} and {<name>.slug}.
func (s *shopSteps) listProduct(ctx context.Context, name string, price, stock int) error {
	if !s.tc.HasToken("admin") {
		return fmt.Errorf("sign the admin in before listing products")
	}
	slug := s.tc.Unique(strings.ToLower(strings.ReplaceAll(name, " ", "-")))
	err := s.as("admin", func() error {
		if err := s.tc.Do(http.MethodPost, "/admin/products", map[string]any{
			"name":  name,
			"slug":  slug,
			"price": price,
			"stock": stock,
		}); err != nil {
			return err
		}
		return s.tc.ExpectStatus(http.StatusCreated)
	})
	if err != nil {
		return err
	}
	productID, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.tc.Set(name+".id", productID)
	s.tc.Set(name+".slug", slug)
	return nil
}

func (s *shopSteps) stockShouldBe(ctx context.Context, name string, want int) error {
	if err := s.tc.Do(http.MethodGet, "/products/"+s.tc.Get(name+".slug"), nil); err != nil {
		return err
	}
	if err := s.tc.ExpectStatus(http.StatusOK); err != nil {
		return err
	}
	got, err := s.tc.GetResponseField("stock")
	if err != nil {
		return err
	}
	if got != fmt.Sprint(want) {
		return fmt.Errorf("stock of %s: expected %d, got %s", name, want, got)
	}
	return nil
}

func (s *shopSteps) addAddress(ctx context.Context) error {
	if err := s.tc.Do(http.MethodPost, "/me/addresses", map[string]any{
		"full_name":   "E2E Shopper",
		"phone":       "+1 555 0100",
		"line1":       "1 Main St",
		"city":        "Springfield",
		"postal_code": "12345",
		"country":     "US",
		"is_default":  true,
	}); err != nil {
		return err
	}
	return s.tc.ExpectStatus(http.StatusCreated)
}

func (s *shopSteps) addToCart(ctx context.Context, qty int, name string) error {
	return s.tc.Do(http.MethodPost, "/cart/items", map[string]any{
		"product_id": s.tc.Get(name + ".id"),
		"quantity":   qty,
	})
}

// checkout saves the new order's ID as {order}.
func (s *shopSteps) checkout(ctx context.Context, method string) error {
	if err := s.tc.Do(http.MethodPost, "/checkout", map[string]string{"payment_method": method}); err != nil {
		return err
	}
	if err := s.tc.ExpectStatus(http.StatusCreated); err != nil {
		return err
	}
	orderID, err := s.tc.GetResponseField("order.id")
	if err != nil {
		return err
	}
	s.tc.Set("order", orderID)
	return nil
}

func (s *shopSteps) moveOrder(ctx context.Context, actor, status string) error {
	return s.as(actor, func() error {
		return s.tc.Do(http.MethodPost, "/orders/{order}/status", map[string]string{"status": status})
	})
}

func (s *shopSteps) orderStatusShouldBe(ctx context.Context, want string) error {
	if err := s.tc.Do(http.MethodGet, "/orders/{order}", nil); err != nil {
		return err
	}
	if err := s.tc.ExpectStatus(http.StatusOK); err != nil {
		return err
	}
	got, err := s.tc.GetResponseField("status")
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("order status: expected %q, got %q", want, got)
	}
	return nil
}

// as runs fn as actor and switches back, keeping the last response.
func (s *shopSteps) as(actor string, fn func() error) error {
	prev := s.tc.CurrentActor()
	if err := s.tc.UseActor(actor); err != nil {
		return err
	}
	err := fn()
	if switchErr := s.tc.UseActor(prev); err == nil {
		err = switchErr
	}
	return err
}
