package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/FleetTrack/internal/models"
	"github.com/BearBump/FleetTrack/internal/storage/memfleet"
	"github.com/stretchr/testify/require"
)

var (
	admin  = models.Actor{ID: 1, Role: models.RoleAdmin}
	driver = models.Actor{ID: 2, Role: models.RoleDriver}
	now    = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
)

func km(v float64) *float64 { return &v }
func days(v int) *int       { return &v }
func at(t time.Time) *time.Time {
	return &t
}

func TestEvaluate(t *testing.T) {
	oil := &models.MaintenanceRule{ID: 1, Name: "Oil", Type: models.RuleTypeOil, AppliesTo: models.RuleAppliesToTruck, ThresholdKm: km(10000)}
	rev := &models.MaintenanceRule{ID: 2, Name: "Revision", Type: models.RuleTypeRevision, AppliesTo: models.RuleAppliesToAll, ThresholdDays: days(180)}
	tires := &models.MaintenanceRule{ID: 3, Name: "Trailer tires", Type: models.RuleTypeTire, AppliesTo: models.RuleAppliesToTrailer, ThresholdKm: km(50000)}

	vehicles := []*models.Vehicle{
		// пробег перевалил за порог масла
		{ID: 10, Kind: models.VehicleKindTruck, LicensePlate: "A", Mileage: 10500, CreatedAt: now.AddDate(0, -1, 0)},
		// масло скоро (300 км), ревизия скоро (10 дней)
		{ID: 11, Kind: models.VehicleKindTruck, LicensePlate: "B", Mileage: 29700, LastServiceMileage: 20000,
			LastServiceDate: at(now.AddDate(0, 0, -170)), CreatedAt: now.AddDate(-2, 0, 0)},
		// ничего не нужно
		{ID: 12, Kind: models.VehicleKindTruck, LicensePlate: "C", Mileage: 100, CreatedAt: now},
		// прицеп: ревизия просрочена по дате создания, шины не касаются
		{ID: 13, Kind: models.VehicleKindTrailer, LicensePlate: "T", Mileage: 1000, CreatedAt: now.AddDate(-1, 0, 0)},
		// собственная дата обслуживания через 3 дня
		{ID: 14, Kind: models.VehicleKindTruck, LicensePlate: "D", CreatedAt: now, MaintenanceDueDate: at(now.AddDate(0, 0, 3))},
	}

	alerts := Evaluate(vehicles, []*models.MaintenanceRule{oil, rev, tires}, now, DefaultWindowDays, DefaultWindowKm)

	type key struct {
		asset  uint64
		typ    string
		status string
	}
	got := make([]key, 0, len(alerts))
	for _, a := range alerts {
		got = append(got, key{a.AssetID, a.Type, a.Status})
	}
	require.Equal(t, []key{
		{10, models.RuleTypeOil, models.AlertStatusOverdue},
		{13, models.RuleTypeRevision, models.AlertStatusOverdue},
		{11, models.RuleTypeOil, models.AlertStatusUpcoming},
		{11, models.RuleTypeRevision, models.AlertStatusUpcoming},
		{14, "maintenance_due_date", models.AlertStatusUpcoming},
	}, got)

	require.Equal(t, 10000.0, *alerts[0].DueByKm)
	require.Equal(t, 30000.0, *alerts[2].DueByKm)
	require.Equal(t, now.AddDate(0, 0, 10), *alerts[3].DueByDate)
}

func TestEvaluate_KmOverdueWinsOverDateUpcoming(t *testing.T) {
	r := &models.MaintenanceRule{ID: 1, Name: "Both", Type: models.RuleTypeOil, AppliesTo: models.RuleAppliesToAll, ThresholdKm: km(1000), ThresholdDays: days(20)}
	v := &models.Vehicle{ID: 1, Kind: models.VehicleKindTruck, Mileage: 1200, CreatedAt: now.AddDate(0, 0, -10)}

	alerts := Evaluate([]*models.Vehicle{v}, []*models.MaintenanceRule{r}, now, DefaultWindowDays, DefaultWindowKm)
	require.Len(t, alerts, 1)
	require.Equal(t, models.AlertStatusOverdue, alerts[0].Status)
	require.NotNil(t, alerts[0].DueByDate)
	require.NotNil(t, alerts[0].DueByKm)
}

func TestRulesCRUDAndUpcoming(t *testing.T) {
	ctx := context.Background()
	st := memfleet.New()
	a := New(st, 0, 0)
	a.now = func() time.Time { return now }

	_, err := a.CreateRule(ctx, driver, &models.MaintenanceRule{})
	require.ErrorIs(t, err, models.ErrAccessDenied)

	_, err = a.CreateRule(ctx, admin, &models.MaintenanceRule{Type: "wash", AppliesTo: "boat", ThresholdKm: km(-1)})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 4)

	r, err := a.CreateRule(ctx, admin, &models.MaintenanceRule{Name: " Oil ", Type: models.RuleTypeOil, ThresholdKm: km(1000)})
	require.NoError(t, err)
	require.Equal(t, "Oil", r.Name)
	require.Equal(t, models.RuleAppliesToAll, r.AppliesTo)

	_, err = st.CreateVehicle(ctx, &models.Vehicle{Kind: models.VehicleKindTruck, LicensePlate: "A", Mileage: 900})
	require.NoError(t, err)

	alerts, err := a.Upcoming(ctx, admin)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, models.AlertStatusUpcoming, alerts[0].Status)

	_, err = a.Upcoming(ctx, driver)
	require.ErrorIs(t, err, models.ErrAccessDenied)

	r.ThresholdKm = km(5000)
	_, err = a.UpdateRule(ctx, admin, r)
	require.NoError(t, err)
	alerts, err = a.Scan(ctx)
	require.NoError(t, err)
	require.Empty(t, alerts)

	_, err = a.UpdateRule(ctx, admin, &models.MaintenanceRule{ID: 999, Name: "x", Type: models.RuleTypeOil, ThresholdKm: km(1)})
	require.ErrorIs(t, err, models.ErrNotFound)

	rules, err := a.ListRules(ctx, admin)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	require.NoError(t, a.DeleteRule(ctx, admin, r.ID))
	require.ErrorIs(t, a.DeleteRule(ctx, admin, r.ID), models.ErrNotFound)
}
