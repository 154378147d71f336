package e2e

import (
	"github.com/cucumber/godog"

	"storefront/e2e/steps/auth"
	"storefront/e2e/steps/common"
	"storefront/e2e/steps/ratelimit"
	"storefront/e2e/steps/shop"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	adminEmail, adminPassword := AdminCredentials()
	auth.RegisterSteps(ctx, tc, adminEmail, adminPassword)

	shop.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
}
