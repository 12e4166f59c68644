package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LeadDesk/internal/constants"
	"LeadDesk/internal/models"
)

func TestAffiliateDashboard(t *testing.T) {
	f := newFakeStore()
	seedAffiliate(f, paypal("pm_1", true))
	for i := 0; i < 7; i++ {
		seedLead(f, fmt.Sprintf("l-%d", i), affiliate.UserID, constants.LEAD_STATUS_APPROVED, "20", false, 10-i)
	}
	svc, _ := newTestService(f)

	d, err := svc.AffiliateDashboard(context.Background(), affiliate)
	require.NoError(t, err)
	assert.Equal(t, 7, d.Stats.Total)
	assert.Equal(t, "140", d.Stats.UnpaidEarnings.String())
	require.Len(t, d.RecentLeads, constants.RecentLeadsOnDashboard)
	assert.Equal(t, "l-6", d.RecentLeads[0].ID)
	assert.True(t, d.HasPaymentMethod)
	assert.True(t, d.CanRequestPayout)
}

func TestAffiliateDashboardSuspended(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	s := affiliate
	s.IsSuspended = true
	_, err := svc.AffiliateDashboard(context.Background(), s)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAdminOverview(t *testing.T) {
	f := newFakeStore()
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("u-%02d", i)
		f.users[id] = models.User{ID: id, Email: id + "@x.io"}
		seedLead(f, "l-"+id, id, constants.LEAD_STATUS_APPROVED, fmt.Sprintf("%d", 10*(i+1)), i%2 == 0, i)
	}
	f.users["u-idle"] = models.User{ID: "u-idle"}
	seedLead(f, "l-pending", "u-00", constants.LEAD_STATUS_PENDING, "", false, 1)
	seedPayout(f, "p-1", "100")
	svc, _ := newTestService(f)

	_, err := svc.AdminOverview(context.Background(), affiliate)
	assert.ErrorIs(t, err, ErrForbidden)

	ov, err := svc.AdminOverview(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, 13, ov.TotalUsers)
	assert.Equal(t, 13, ov.TotalLeads)
	assert.Equal(t, 1, ov.PendingLeads)
	assert.Equal(t, 12, ov.ApprovedLeads)
	assert.Equal(t, "780", ov.TotalEarnings.String())
	assert.Equal(t, "420", ov.UnpaidEarnings.String())
	assert.Equal(t, 1, ov.TotalPayouts)
	assert.Equal(t, 1, ov.PendingPayouts)

	require.Len(t, ov.TopAffiliates, constants.TopAffiliatesOnOverview)
	assert.Equal(t, "u-11", ov.TopAffiliates[0].UserID)
	assert.Equal(t, "120", ov.TopAffiliates[0].Stats.TotalEarnings.String())
	assert.Equal(t, "u-02", ov.TopAffiliates[9].UserID)
}
