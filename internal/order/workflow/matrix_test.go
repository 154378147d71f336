package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		name string
		role domain.Role
		from Status
		to   Status
		code dErrors.Code
	}{
		{name: "account confirms pending", role: domain.RoleAccount, from: StatusPending, to: StatusConfirmed},
		{name: "packer starts processing", role: domain.RolePacker, from: StatusConfirmed, to: StatusProcessing},
		{name: "packer packs", role: domain.RolePacker, from: StatusProcessing, to: StatusPacked},
		{name: "deliveryman ships", role: domain.RoleDeliveryman, from: StatusPacked, to: StatusShipped},
		{name: "deliveryman delivers", role: domain.RoleDeliveryman, from: StatusOutForDelivery, to: StatusDelivered},
		{name: "user cancels pending", role: domain.RoleUser, from: StatusPending, to: StatusCancelled},
		{name: "user cannot cancel once processing", role: domain.RoleUser, from: StatusProcessing, to: StatusCancelled, code: dErrors.CodeForbidden},
		{name: "packer cannot ship", role: domain.RolePacker, from: StatusPacked, to: StatusShipped, code: dErrors.CodeForbidden},
		{name: "deliveryman cannot confirm", role: domain.RoleDeliveryman, from: StatusPending, to: StatusConfirmed, code: dErrors.CodeForbidden},
		{name: "skipping steps is not an edge", role: domain.RoleAdmin, from: StatusPending, to: StatusShipped, code: dErrors.CodeInvariantViolation},
		{name: "going backwards is not an edge", role: domain.RoleAdmin, from: StatusPacked, to: StatusProcessing, code: dErrors.CodeInvariantViolation},
		{name: "same status rejected", role: domain.RoleAdmin, from: StatusPacked, to: StatusPacked, code: dErrors.CodeInvariantViolation},
		{name: "cancelled is terminal", role: domain.RoleAdmin, from: StatusCancelled, to: StatusPending, code: dErrors.CodeInvariantViolation},
		{name: "completed is terminal", role: domain.RoleAdmin, from: StatusCompleted, to: StatusCancelled, code: dErrors.CodeInvariantViolation},
		{name: "delivered cannot be cancelled", role: domain.RoleAdmin, from: StatusDelivered, to: StatusCancelled, code: dErrors.CodeInvariantViolation},
		{name: "unknown target", role: domain.RoleAdmin, from: StatusPending, to: Status("lost"), code: dErrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTransition(tt.role, tt.from, tt.to)
			if tt.code == "" {
				require.NoError(t, err)
				assert.True(t, CanTransition(tt.role, tt.from, tt.to))
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, tt.code), "got %v", err)
			assert.False(t, CanTransition(tt.role, tt.from, tt.to))
		})
	}
}

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	for e := range transitions {
		assert.False(t, e.From.IsTerminal(), "edge leaves terminal status %s", e.From)
		assert.NotEqual(t, e.From, e.To)
	}
}

func TestAdminCanWalkTheHappyPath(t *testing.T) {
	path := []Status{
		StatusPending, StatusConfirmed, StatusProcessing, StatusPacked,
		StatusShipped, StatusOutForDelivery, StatusDelivered, StatusCompleted,
	}
	for i := 1; i < len(path); i++ {
		assert.True(t, CanTransition(domain.RoleAdmin, path[i-1], path[i]), "%s -> %s", path[i-1], path[i])
	}
}

func TestCheckOrderTransition_PaymentGuards(t *testing.T) {
	t.Run("unpaid card order cannot be confirmed", func(t *testing.T) {
		err := CheckOrderTransition(domain.RoleAccount, State{Status: StatusPending, Payment: PaymentPending, Method: MethodCard}, StatusConfirmed)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePaymentRequired))
	})

	t.Run("card order past confirmed still needs payment", func(t *testing.T) {
		for _, payment := range []PaymentStatus{PaymentUnpaid, PaymentPending, PaymentFailed} {
			err := CheckOrderTransition(domain.RoleAdmin, State{Status: StatusConfirmed, Payment: payment, Method: MethodCard}, StatusProcessing)
			require.Error(t, err, payment)
			assert.True(t, dErrors.HasCode(err, dErrors.CodePaymentRequired), payment)
		}
		require.NoError(t, CheckOrderTransition(domain.RoleAdmin, State{Status: StatusConfirmed, Payment: PaymentPaid, Method: MethodCard}, StatusProcessing))
	})

	t.Run("unpaid card order can still be cancelled", func(t *testing.T) {
		err := CheckOrderTransition(domain.RoleUser, State{Status: StatusPending, Payment: PaymentUnpaid, Method: MethodCard}, StatusCancelled)
		require.NoError(t, err)
	})

	t.Run("cod order flows unpaid until completion", func(t *testing.T) {
		st := State{Status: StatusPending, Payment: PaymentPending, Method: MethodCOD}
		require.NoError(t, CheckOrderTransition(domain.RoleAccount, st, StatusConfirmed))

		st.Status = StatusDelivered
		err := CheckOrderTransition(domain.RoleAccount, st, StatusCompleted)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePaymentRequired))

		st.Payment = PaymentPaid
		require.NoError(t, CheckOrderTransition(domain.RoleAccount, st, StatusCompleted))
	})
}

func TestVisibility(t *testing.T) {
	assert.True(t, CanView(domain.RolePacker, StatusConfirmed))
	assert.False(t, CanView(domain.RolePacker, StatusPending))
	assert.False(t, CanView(domain.RolePacker, StatusShipped))
	assert.True(t, CanView(domain.RoleDeliveryman, StatusOutForDelivery))
	assert.False(t, CanView(domain.RoleDeliveryman, StatusProcessing))
	assert.True(t, CanView(domain.RoleAccount, StatusCancelled))
	assert.False(t, CanView(RoleSystem, StatusPending))

	visible := VisibleStatuses(domain.RolePacker)
	visible[0] = StatusCancelled
	assert.True(t, CanView(domain.RolePacker, StatusConfirmed), "returned slice must be a copy")

	assert.True(t, SeesAll(domain.RoleAdmin))
	assert.False(t, SeesAll(domain.RoleUser))
}

func TestNextStatuses(t *testing.T) {
	assert.Equal(t, []Status{StatusConfirmed, StatusCancelled}, NextStatuses(domain.RoleAccount, StatusPending))
	assert.Equal(t, []Status{StatusProcessing}, NextStatuses(domain.RolePacker, StatusConfirmed))
	assert.Empty(t, NextStatuses(domain.RolePacker, StatusPending))
	assert.Empty(t, NextStatuses(domain.RoleAdmin, StatusCompleted))
}

func TestCheckPayment(t *testing.T) {
	require.NoError(t, CheckPayment(domain.RoleDeliveryman, MethodCOD, PaymentPending, PaymentPaid))

	err := CheckPayment(domain.RoleDeliveryman, MethodCard, PaymentPending, PaymentPaid)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	err = CheckPayment(domain.RoleAdmin, MethodCOD, PaymentPending, PaymentFailed)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	err = CheckPayment(domain.RoleAdmin, MethodCard, PaymentPaid, PaymentPaid)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	assert.True(t, CanSetPayment(RoleSystem, MethodCard, PaymentUnpaid, PaymentPending))
	assert.False(t, CanSetPayment(domain.RoleUser, MethodCard, PaymentPending, PaymentPaid))
}

func TestInitialPayment(t *testing.T) {
	assert.Equal(t, PaymentUnpaid, MethodCard.InitialPayment())
	assert.Equal(t, PaymentPending, MethodCOD.InitialPayment())
}
