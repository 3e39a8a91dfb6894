package journeys

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/BearBump/FleetTrack/internal/access"
	"github.com/BearBump/FleetTrack/internal/broker/messages"
	"github.com/BearBump/FleetTrack/internal/cache"
	"github.com/BearBump/FleetTrack/internal/models"
	"github.com/pkg/errors"
)

const (
	createdNote  = "Journey created"
	trackingNote = "Status updated via tracking update"
)

type Repository interface {
	CreateJourney(ctx context.Context, j *models.Journey) (*models.Journey, error)
	GetJourney(ctx context.Context, id uint64) (*models.Journey, error)
	ListJourneys(ctx context.Context, f models.JourneyFilter) ([]*models.Journey, error)
	ApplyJourneyUpdate(ctx context.Context, upd models.JourneyUpdate) (*models.Journey, error)
	DeleteJourney(ctx context.Context, id uint64) error
}

type UserDirectory interface {
	GetUser(ctx context.Context, id uint64) (*models.User, error)
}

type VehicleRegistry interface {
	FindByID(ctx context.Context, id uint64) (*models.Vehicle, error)
	HasActiveJourney(ctx context.Context, truckID, excludingJourneyID uint64, statuses ...string) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Service struct {
	repo     Repository
	users    UserDirectory
	vehicles VehicleRegistry

	cache    cache.VersionedCache
	cacheTTL time.Duration

	events      EventPublisher
	eventsTopic string

	now func() time.Time
}

func New(repo Repository, users UserDirectory, vehicles VehicleRegistry) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		vehicles: vehicles,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithCache включает кэш текущего состояния рейса; ttl <= 0 выключает его.
func (s *Service) WithCache(c cache.VersionedCache, ttl time.Duration) *Service {
	s.cache = c
	s.cacheTTL = ttl
	return s
}

func (s *Service) WithEvents(p EventPublisher, topic string) *Service {
	s.events = p
	s.eventsTopic = topic
	return s
}

func (s *Service) Create(ctx context.Context, actor models.Actor, in models.JourneyCreateInput) (*models.Journey, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	driver, err := s.users.GetUser(ctx, in.DriverID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NotFound("driver", in.DriverID)
		}
		return nil, err
	}
	if driver.Role != models.RoleDriver {
		return nil, errors.Wrapf(models.ErrRoleMismatch, "user %d has role %q, not driver", driver.ID, driver.Role)
	}
	if err := s.requireVehicle(ctx, in.TruckID, models.VehicleKindTruck); err != nil {
		return nil, err
	}
	if in.TrailerID != nil {
		if err := s.requireVehicle(ctx, *in.TrailerID, models.VehicleKindTrailer); err != nil {
			return nil, err
		}
	}

	now := s.now()
	j, err := s.repo.CreateJourney(ctx, &models.Journey{
		DriverID:    in.DriverID,
		TruckID:     in.TruckID,
		TrailerID:   in.TrailerID,
		Origin:      strings.TrimSpace(in.Origin),
		Destination: strings.TrimSpace(in.Destination),
		Status:      models.JourneyStatusToDo,
		TireStatus:  models.DefaultTireStatus,
		Logs:        []models.JourneyLog{{Status: models.JourneyStatusToDo, Note: createdNote, Timestamp: now}},
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, messages.JourneyEventCreated, "", j)
	return j, nil
}

func (s *Service) requireVehicle(ctx context.Context, id uint64, kind string) error {
	v, err := s.vehicles.FindByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) || (err == nil && v.Kind != kind) {
		return models.NotFound(kind, id)
	}
	return err
}

func (s *Service) Get(ctx context.Context, actor models.Actor, id uint64) (*models.Journey, error) {
	j, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireJourney(j, actor); err != nil {
		return nil, err
	}
	return j, nil
}

// load читает через кэш; при любой проблеме с кэшем идём в хранилище.
func (s *Service) load(ctx context.Context, id uint64) (*models.Journey, error) {
	if s.cacheEnabled() {
		b, ok, err := s.cache.Get(ctx, currentKey(id))
		if err == nil && ok {
			var j models.Journey
			// a tombstone is empty and falls through to storage
			if len(b) > 0 && json.Unmarshal(b, &j) == nil && j.ID == id {
				return &j, nil
			}
		}
	}
	j, err := s.repo.GetJourney(ctx, id)
	if err != nil {
		return nil, err
	}
	s.storeCache(ctx, j)
	return j, nil
}

// List: водитель видит только свои рейсы, фильтр по водителю для него игнорируется.
func (s *Service) List(ctx context.Context, actor models.Actor, f models.JourneyFilter) ([]*models.Journey, error) {
	if actor.ID == 0 {
		return nil, models.ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		id := actor.ID
		f.DriverID = &id
	}
	return s.repo.ListJourneys(ctx, f)
}

// TransitionStatus moves a journey along the state machine. expectedVersion,
// when set, must match the stored version.
func (s *Service) TransitionStatus(ctx context.Context, actor models.Actor, id uint64, status, note string, expectedVersion *int64) (*models.Journey, error) {
	j, err := s.loadForUpdate(ctx, actor, id, expectedVersion)
	if err != nil {
		return nil, err
	}

	next := j.Clone()
	if verr := Validate(j, next, &status); verr != nil {
		if verr.Transition != nil && len(verr.Violations) == 1 {
			return nil, verr.Transition
		}
		return nil, verr
	}
	if err := s.guardTruck(ctx, j, status); err != nil {
		return nil, err
	}

	now := s.now()
	enterStatus(next, status, now)
	if strings.TrimSpace(note) == "" {
		note = defaultTransitionNote(j.Status, status)
	}

	out, err := s.repo.ApplyJourneyUpdate(ctx, models.JourneyUpdate{
		Journey:         next,
		ExpectedVersion: j.Version,
		Log:             &models.JourneyLog{Status: status, Note: note, Timestamp: now},
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, messages.JourneyEventStatusChanged, j.Status, out)
	return out, nil
}

// UpdateTracking merges tracking fields into the journey. All violations are
// reported together and nothing is written when any is found.
func (s *Service) UpdateTracking(ctx context.Context, actor models.Actor, id uint64, f models.TrackingFields, expectedVersion *int64) (*models.Journey, error) {
	j, err := s.loadForUpdate(ctx, actor, id, expectedVersion)
	if err != nil {
		return nil, err
	}

	next := mergeTracking(j, f)
	if verr := Validate(j, next, f.Status); verr != nil {
		return nil, verr
	}

	now := s.now()
	var logEntry *models.JourneyLog
	if f.Status != nil {
		if err := s.guardTruck(ctx, j, *f.Status); err != nil {
			return nil, err
		}
		enterStatus(next, *f.Status, now)
		note := trackingNote
		if f.Note != nil && strings.TrimSpace(*f.Note) != "" {
			note = *f.Note
		}
		logEntry = &models.JourneyLog{Status: *f.Status, Note: note, Timestamp: now}
	}

	out, err := s.repo.ApplyJourneyUpdate(ctx, models.JourneyUpdate{
		Journey:         next,
		ExpectedVersion: j.Version,
		Log:             logEntry,
	})
	if err != nil {
		return nil, err
	}

	typ := messages.JourneyEventTracking
	if logEntry != nil {
		typ = messages.JourneyEventStatusChanged
	}
	s.afterMutation(ctx, typ, j.Status, out)
	return out, nil
}

// Delete: проверка роли идёт раньше проверки существования.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id uint64) error {
	if err := access.RequireAdmin(actor); err != nil {
		return err
	}
	j, err := s.repo.GetJourney(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteJourney(ctx, id); err != nil {
		return err
	}

	if s.cacheEnabled() {
		// tombstone: no in-flight read may cache the deleted journey again
		if _, err := s.cache.SetIfNewer(ctx, currentKey(id), nil, math.MaxInt64, s.cacheTTL); err != nil {
			slog.Warn("journey cache tombstone failed", "journey_id", id, "error", err.Error())
		}
	}
	s.publish(ctx, messages.JourneyEventDeleted, j.Status, j)
	return nil
}

// loadForUpdate всегда читает из хранилища: версия нужна свежая.
func (s *Service) loadForUpdate(ctx context.Context, actor models.Actor, id uint64, expectedVersion *int64) (*models.Journey, error) {
	j, err := s.repo.GetJourney(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireJourney(j, actor); err != nil {
		return nil, err
	}
	if expectedVersion != nil && *expectedVersion != j.Version {
		return nil, errors.Wrapf(models.ErrConflict, "journey %d is at version %d, not %d", id, j.Version, *expectedVersion)
	}
	return j, nil
}

// guardTruck is the early double-booking check; storage repeats it under the
// truck lock.
func (s *Service) guardTruck(ctx context.Context, j *models.Journey, status string) error {
	if status != models.JourneyStatusInProgress {
		return nil
	}
	busy, err := s.vehicles.HasActiveJourney(ctx, j.TruckID, j.ID, models.JourneyStatusInProgress)
	if err != nil {
		return err
	}
	if busy {
		return &models.TruckUnavailableError{TruckID: j.TruckID}
	}
	return nil
}

func (s *Service) afterMutation(ctx context.Context, typ, fromStatus string, j *models.Journey) {
	s.storeCache(ctx, j)
	s.publish(ctx, typ, fromStatus, j)
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.cacheTTL > 0
}

func (s *Service) storeCache(ctx context.Context, j *models.Journey) {
	if !s.cacheEnabled() {
		return
	}
	b, err := json.Marshal(j)
	if err != nil {
		return
	}
	if _, err := s.cache.SetIfNewer(ctx, currentKey(j.ID), b, j.Version, s.cacheTTL); err != nil {
		slog.Warn("journey cache set failed", "journey_id", j.ID, "error", err.Error())
	}
}

// publish is best effort: the mutation is already committed.
func (s *Service) publish(ctx context.Context, typ, fromStatus string, j *models.Journey) {
	if s.events == nil || s.eventsTopic == "" {
		return
	}
	ev := messages.NewJourneyEvent(typ, fromStatus, j, s.now())
	b, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal journey event", "journey_id", j.ID, "error", err.Error())
		return
	}
	if err := s.events.Publish(ctx, s.eventsTopic, ev.Key(), b); err != nil {
		slog.Error("publish journey event", "journey_id", j.ID, "type", typ, "error", err.Error())
	}
}

func currentKey(id uint64) string {
	return fmt.Sprintf("journey:%d:current", id)
}
