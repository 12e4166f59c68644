package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LeadDesk/internal/constants"
	"LeadDesk/internal/db"
	"LeadDesk/internal/models"
)

func seedAffiliate(f *fakeStore, methods ...models.PaymentMethod) {
	f.users[affiliate.UserID] = models.User{ID: affiliate.UserID, Email: affiliate.Email, PaymentMethods: methods}
}

func seedPayout(f *fakeStore, id, amount string) {
	f.payouts[id] = models.PayoutRequest{
		ID:          id,
		AffiliateID: affiliate.UserID,
		Amount:      decimal.RequireFromString(amount),
		Method:      constants.PAYMENT_METHOD_PAYPAL,
		Status:      constants.PAYOUT_REQUEST_STATUS_REQUESTED,
		CreatedAt:   baseTime,
	}
}

func TestRequestPayoutBelowThreshold(t *testing.T) {
	f := newFakeStore()
	seedAffiliate(f, paypal("pm_1", true))
	seedLead(f, "l-1", affiliate.UserID, constants.LEAD_STATUS_APPROVED, "99.99", false, 5)
	seedLead(f, "l-2", affiliate.UserID, constants.LEAD_STATUS_PENDING, "500", false, 4)
	svc, _ := newTestService(f)

	_, err := svc.RequestPayout(context.Background(), affiliate, RequestPayoutInput{})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "amount", verr.Field)
	assert.Empty(t, f.payouts)
}

func TestRequestPayoutWithoutMethod(t *testing.T) {
	f := newFakeStore()
	seedAffiliate(f)
	seedLead(f, "l-1", affiliate.UserID, constants.LEAD_STATUS_APPROVED, "300", false, 5)
	svc, _ := newTestService(f)

	_, err := svc.RequestPayout(context.Background(), affiliate, RequestPayoutInput{})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "payment_method", verr.Field)
	assert.Empty(t, f.payouts)
}

func TestRequestPayoutSnapshotsMethod(t *testing.T) {
	f := newFakeStore()
	seedAffiliate(f, paypal("pm_1", false), paypal("pm_2", true))
	seedLead(f, "l-1", affiliate.UserID, constants.LEAD_STATUS_APPROVED, "60", false, 5)
	seedLead(f, "l-2", affiliate.UserID, constants.LEAD_STATUS_APPROVED, "40", false, 4)
	seedLead(f, "l-3", affiliate.UserID, constants.LEAD_STATUS_APPROVED, "25", true, 3)
	svc, n := newTestService(f)
	ctx := context.Background()

	p, err := svc.RequestPayout(ctx, affiliate, RequestPayoutInput{})
	require.NoError(t, err)
	assert.Equal(t, constants.PAYOUT_REQUEST_STATUS_REQUESTED, p.Status)
	assert.True(t, decimal.NewFromInt(100).Equal(p.Amount), p.Amount.String())
	assert.Equal(t, constants.PAYMENT_METHOD_PAYPAL, p.Method)
	assert.Equal(t, "pm_2", p.Details.MethodID)
	assert.Equal(t, models.PayPalDetails{Email: "pm_2@pay.io"}, p.Details.Details)
	require.Len(t, n.messages, 1)

	// Editing and then deleting the method leaves the request untouched.
	_, err = svc.UpdatePaymentMethod(ctx, affiliate, "pm_2", models.PaymentMethod{Name: "changed", Details: models.PayPalDetails{Email: "new@pay.io"}})
	require.NoError(t, err)
	_, err = svc.DeletePaymentMethod(ctx, affiliate, "pm_2")
	require.NoError(t, err)

	stored := f.payouts[p.ID]
	assert.Equal(t, models.PayPalDetails{Email: "pm_2@pay.io"}, stored.Details.Details)
	assert.Equal(t, "PP pm_2", stored.Details.Name)
}

func TestRequestPayoutExplicitMethod(t *testing.T) {
	f := newFakeStore()
	seedAffiliate(f, paypal("pm_1", false), paypal("pm_2", true))
	seedLead(f, "l-1", affiliate.UserID, constants.LEAD_STATUS_APPROVED, "150", false, 5)
	svc, _ := newTestService(f)

	p, err := svc.RequestPayout(context.Background(), affiliate, RequestPayoutInput{PaymentMethodID: "pm_1"})
	require.NoError(t, err)
	assert.Equal(t, "pm_1", p.Details.MethodID)

	_, err = svc.RequestPayout(context.Background(), affiliate, RequestPayoutInput{PaymentMethodID: "pm_9"})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestApprovePayoutTransactional(t *testing.T) {
	f := newFakeStore()
	seedAffiliate(f, paypal("pm_1", true))
	seedLead(f, "l-1", affiliate.UserID, constants.LEAD_STATUS_APPROVED, "30", false, 30)
	seedLead(f, "l-2", affiliate.UserID, constants.LEAD_STATUS_APPROVED, "80", false, 20)
	seedLead(f, "l-3", affiliate.UserID, constants.LEAD_STATUS_APPROVED, "10", false, 10)
	seedPayout(f, "p-1", "100")
	store := &txFakeStore{fakeStore: f}
	svc, n := newTestService(store)

	p, alloc, err := svc.ApprovePayout(context.Background(), admin, "p-1", " thanks ")
	require.NoError(t, err)
	assert.Equal(t, constants.PAYOUT_REQUEST_STATUS_APPROVED, p.Status)
	assert.Equal(t, "thanks", p.Note)
	assert.Equal(t, []string{"l-1"}, alloc.PaidLeadIDs)
	assert.True(t, decimal.NewFromInt(70).Equal(alloc.Remaining))
	assert.Equal(t, 1, store.commits)

	assert.True(t, f.leads["l-1"].Paid)
	assert.Equal(t, "p-1", f.leads["l-1"].PayoutRequestID.String)
	assert.False(t, f.leads["l-2"].Paid)
	assert.False(t, f.leads["l-3"].Paid)
	require.Len(t, n.messages, 1)
	assert.Contains(t, n.messages[0], "APPROVED")

	_, _, err = svc.ApprovePayout(context.Background(), admin, "p-1", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApprovePayoutNoUnpaidLeads(t *testing.T) {
	f := newFakeStore()
	seedPayout(f, "p-1", "150")
	svc, _ := newTestService(&txFakeStore{fakeStore: f})

	p, alloc, err := svc.ApprovePayout(context.Background(), admin, "p-1", "")
	require.NoError(t, err)
	assert.Equal(t, constants.PAYOUT_REQUEST_STATUS_APPROVED, p.Status)
	assert.Empty(t, alloc.PaidLeadIDs)
	assert.True(t, decimal.NewFromInt(150).Equal(alloc.Remaining))
}

func TestApprovePayoutTransactionalRollsBack(t *testing.T) {
	f := newFakeStore()
	seedLead(f, "l-1", affiliate.UserID, constants.LEAD_STATUS_APPROVED, "50", false, 10)
	seedPayout(f, "p-1", "100")
	f.errs["MarkLeadsPaid"] = errors.New("connection reset")
	store := &txFakeStore{fakeStore: f}
	svc, _ := newTestService(store)

	_, _, err := svc.ApprovePayout(context.Background(), admin, "p-1", "")
	require.Error(t, err)
	assert.False(t, IsPartialApproval(err))
	assert.Equal(t, 1, store.rollbacks)
	assert.Equal(t, constants.PAYOUT_REQUEST_STATUS_REQUESTED, f.payouts["p-1"].Status)
	assert.False(t, f.leads["l-1"].Paid)
}

func TestApprovePayoutSequentialPartialFailure(t *testing.T) {
	f := newFakeStore()
	seedLead(f, "l-1", affiliate.UserID, constants.LEAD_STATUS_APPROVED, "50", false, 10)
	seedPayout(f, "p-1", "100")
	f.errs["MarkLeadsPaid"] = errors.New("connection reset")
	svc, n := newTestService(f)

	p, _, err := svc.ApprovePayout(context.Background(), admin, "p-1", "")
	var perr *PartialApprovalError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "p-1", perr.PayoutID)
	assert.Equal(t, constants.PAYOUT_REQUEST_STATUS_APPROVED, p.Status)
	assert.Equal(t, constants.PAYOUT_REQUEST_STATUS_APPROVED, f.payouts["p-1"].Status)
	assert.False(t, f.leads["l-1"].Paid)
	require.Len(t, n.messages, 1)
	assert.Contains(t, n.messages[0], "RECONCILIATION")
}

func TestApprovePayoutSequentialSuccess(t *testing.T) {
	f := newFakeStore()
	seedLead(f, "l-1", affiliate.UserID, constants.LEAD_STATUS_APPROVED, "60", false, 10)
	seedLead(f, "l-2", affiliate.UserID, constants.LEAD_STATUS_APPROVED, "40", false, 5)
	seedPayout(f, "p-1", "100")
	svc, _ := newTestService(f)

	_, alloc, err := svc.ApprovePayout(context.Background(), admin, "p-1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"l-1", "l-2"}, alloc.PaidLeadIDs)
	assert.True(t, alloc.Remaining.IsZero())
}

func TestApprovePayoutRaceLostIsConflict(t *testing.T) {
	f := newFakeStore()
	seedPayout(f, "p-1", "100")
	f.errs["TransitionPayoutRequest"] = db.ErrConflict
	svc, _ := newTestService(f)

	_, _, err := svc.ApprovePayout(context.Background(), admin, "p-1", "")
	assert.ErrorIs(t, err, db.ErrConflict)
	assert.False(t, IsPartialApproval(err))
}

func TestApprovePayoutGuards(t *testing.T) {
	f := newFakeStore()
	seedPayout(f, "p-1", "100")
	svc, _ := newTestService(f)

	_, _, err := svc.ApprovePayout(context.Background(), affiliate, "p-1", "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = svc.ApprovePayout(context.Background(), admin, "p-404", "")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestRejectPayout(t *testing.T) {
	f := newFakeStore()
	seedLead(f, "l-1", affiliate.UserID, constants.LEAD_STATUS_APPROVED, "100", false, 10)
	seedPayout(f, "p-1", "100")
	svc, n := newTestService(f)

	p, err := svc.RejectPayout(context.Background(), admin, "p-1", "wrong IBAN")
	require.NoError(t, err)
	assert.Equal(t, constants.PAYOUT_REQUEST_STATUS_REJECTED, p.Status)
	assert.Equal(t, "wrong IBAN", p.Note)
	assert.False(t, f.leads["l-1"].Paid)
	require.Len(t, n.messages, 1)
	assert.Contains(t, n.messages[0], "REJECTED")

	_, err = svc.RejectPayout(context.Background(), admin, "p-1", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, _, err = svc.ApprovePayout(context.Background(), admin, "p-1", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPayoutSummary(t *testing.T) {
	f := newFakeStore()
	seedAffiliate(f, paypal("pm_1", true))
	seedLead(f, "l-1", affiliate.UserID, constants.LEAD_STATUS_APPROVED, "120", false, 10)
	seedPayout(f, "p-1", "50")
	svc, _ := newTestService(f)

	sum, err := svc.PayoutSummary(context.Background(), affiliate)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(120).Equal(sum.UnpaidEarnings))
	assert.True(t, sum.HasPaymentMethod)
	assert.True(t, sum.CanRequestPayout)
	assert.True(t, decimal.NewFromInt(100).Equal(sum.MinimumAmount))
	require.Len(t, sum.Requests, 1)
}

func TestAdminListPayoutsJoinsUsers(t *testing.T) {
	f := newFakeStore()
	seedAffiliate(f)
	seedPayout(f, "p-1", "100")
	f.payouts["p-2"] = models.PayoutRequest{ID: "p-2", AffiliateID: "u-gone", Status: constants.PAYOUT_REQUEST_STATUS_APPROVED, CreatedAt: baseTime}
	svc, _ := newTestService(f)

	out, err := svc.AdminListPayouts(context.Background(), admin, models.PayoutFilter{Status: constants.PAYOUT_REQUEST_STATUS_REQUESTED})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].User)
	assert.Equal(t, affiliate.Email, out[0].User.Email)

	out, err = svc.AdminListPayouts(context.Background(), admin, models.PayoutFilter{})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	_, err = svc.AdminListPayouts(context.Background(), admin, models.PayoutFilter{Status: "paid"})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = svc.AdminListPayouts(context.Background(), affiliate, models.PayoutFilter{})
	assert.ErrorIs(t, err, ErrForbidden)
}
