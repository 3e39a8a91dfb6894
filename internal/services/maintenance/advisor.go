package maintenance

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/BearBump/FleetTrack/internal/access"
	"github.com/BearBump/FleetTrack/internal/models"
)

const (
	DefaultWindowDays = 14
	DefaultWindowKm   = 500

	dueDateRule = "maintenance due date"
	dueDateType = "maintenance_due_date"
)

type Repository interface {
	CreateRule(ctx context.Context, r *models.MaintenanceRule) (*models.MaintenanceRule, error)
	GetRule(ctx context.Context, id uint64) (*models.MaintenanceRule, error)
	ListRules(ctx context.Context) ([]*models.MaintenanceRule, error)
	UpdateRule(ctx context.Context, r *models.MaintenanceRule) (*models.MaintenanceRule, error)
	DeleteRule(ctx context.Context, id uint64) error
	ListVehicles(ctx context.Context, kind string) ([]*models.Vehicle, error)
}

// Advisor manages maintenance rules and computes due/overdue alerts.
type Advisor struct {
	repo       Repository
	windowDays int
	windowKm   float64
	now        func() time.Time
}

func New(repo Repository, windowDays, windowKm int) *Advisor {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if windowKm <= 0 {
		windowKm = DefaultWindowKm
	}
	return &Advisor{
		repo:       repo,
		windowDays: windowDays,
		windowKm:   float64(windowKm),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (a *Advisor) ListRules(ctx context.Context, actor models.Actor) ([]*models.MaintenanceRule, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	return a.repo.ListRules(ctx)
}

func (a *Advisor) CreateRule(ctx context.Context, actor models.Actor, r *models.MaintenanceRule) (*models.MaintenanceRule, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if err := normalizeRule(r); err != nil {
		return nil, err
	}
	return a.repo.CreateRule(ctx, r)
}

func (a *Advisor) UpdateRule(ctx context.Context, actor models.Actor, r *models.MaintenanceRule) (*models.MaintenanceRule, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := a.repo.GetRule(ctx, r.ID); err != nil {
		return nil, err
	}
	if err := normalizeRule(r); err != nil {
		return nil, err
	}
	return a.repo.UpdateRule(ctx, r)
}

func (a *Advisor) DeleteRule(ctx context.Context, actor models.Actor, id uint64) error {
	if err := access.RequireAdmin(actor); err != nil {
		return err
	}
	return a.repo.DeleteRule(ctx, id)
}

func normalizeRule(r *models.MaintenanceRule) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.AppliesTo == "" {
		r.AppliesTo = models.RuleAppliesToAll
	}

	verr := &models.ValidationError{}
	if r.Name == "" {
		verr.Add("name", "is required")
	}
	switch r.Type {
	case models.RuleTypeTire, models.RuleTypeOil, models.RuleTypeRevision:
	default:
		verr.Add("type", "must be tire, oil or revision")
	}
	switch r.AppliesTo {
	case models.RuleAppliesToTruck, models.RuleAppliesToTrailer, models.RuleAppliesToAll:
	default:
		verr.Add("appliesTo", "must be truck, trailer or all")
	}
	if r.ThresholdKm == nil && r.ThresholdDays == nil {
		verr.Add("threshold", "thresholdKm or thresholdDays is required")
	}
	if r.ThresholdKm != nil && (*r.ThresholdKm <= 0 || math.IsNaN(*r.ThresholdKm) || math.IsInf(*r.ThresholdKm, 0)) {
		verr.Add("thresholdKm", "must be a positive number")
	}
	if r.ThresholdDays != nil && *r.ThresholdDays <= 0 {
		verr.Add("thresholdDays", "must be a positive number")
	}
	return verr.Err()
}

// Upcoming returns every alert that is overdue or falls inside the window.
func (a *Advisor) Upcoming(ctx context.Context, actor models.Actor) ([]models.MaintenanceAlert, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	return a.Scan(ctx)
}

// Scan is Upcoming without the actor check, for the background worker.
func (a *Advisor) Scan(ctx context.Context) ([]models.MaintenanceAlert, error) {
	rules, err := a.repo.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	vehicles, err := a.repo.ListVehicles(ctx, "")
	if err != nil {
		return nil, err
	}
	return Evaluate(vehicles, rules, a.now(), a.windowDays, a.windowKm), nil
}

// Evaluate is the pure part of the scan: overdue alerts come first, then
// upcoming, each ordered by asset.
func Evaluate(vehicles []*models.Vehicle, rules []*models.MaintenanceRule, now time.Time, windowDays int, windowKm float64) []models.MaintenanceAlert {
	window := time.Duration(windowDays) * 24 * time.Hour
	out := make([]models.MaintenanceAlert, 0)

	for _, v := range vehicles {
		if v.MaintenanceDueDate != nil {
			due := *v.MaintenanceDueDate
			if st, ok := dateStatus(now, due, window); ok {
				out = append(out, models.MaintenanceAlert{
					AssetType: v.Kind, AssetID: v.ID, LicensePlate: v.LicensePlate,
					Rule: dueDateRule, Type: dueDateType, DueByDate: &due, Status: st,
				})
			}
		}

		for _, r := range rules {
			if r.AppliesTo != models.RuleAppliesToAll && r.AppliesTo != v.Kind {
				continue
			}
			alert := models.MaintenanceAlert{
				AssetType: v.Kind, AssetID: v.ID, LicensePlate: v.LicensePlate,
				RuleID: r.ID, Rule: r.Name, Type: r.Type,
			}

			status := ""
			if r.ThresholdDays != nil {
				base := v.CreatedAt
				if v.LastServiceDate != nil {
					base = *v.LastServiceDate
				}
				due := base.Add(time.Duration(*r.ThresholdDays) * 24 * time.Hour)
				alert.DueByDate = &due
				if st, ok := dateStatus(now, due, window); ok {
					status = worse(status, st)
				}
			}
			if r.ThresholdKm != nil {
				due := v.LastServiceMileage + *r.ThresholdKm
				alert.DueByKm = &due
				switch {
				case v.Mileage >= due:
					status = worse(status, models.AlertStatusOverdue)
				case due-v.Mileage <= windowKm:
					status = worse(status, models.AlertStatusUpcoming)
				}
			}
			if status == "" {
				continue
			}
			alert.Status = status
			out = append(out, alert)
		}
	}

	sort.SliceStable(out, func(i, k int) bool {
		if out[i].Status != out[k].Status {
			return out[i].Status == models.AlertStatusOverdue
		}
		if out[i].AssetID != out[k].AssetID {
			return out[i].AssetID < out[k].AssetID
		}
		return out[i].RuleID < out[k].RuleID
	})
	return out
}

func dateStatus(now, due time.Time, window time.Duration) (string, bool) {
	switch {
	case now.After(due):
		return models.AlertStatusOverdue, true
	case due.Sub(now) <= window:
		return models.AlertStatusUpcoming, true
	}
	return "", false
}

func worse(cur, next string) string {
	if cur == models.AlertStatusOverdue || next == models.AlertStatusOverdue {
		return models.AlertStatusOverdue
	}
	return next
}
