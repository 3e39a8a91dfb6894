package journeys

import (
	"errors"
	"sync"

	"github.com/BearBump/FleetTrack/internal/broker/messages"
	"github.com/BearBump/FleetTrack/internal/models"
)

func (s *JourneySuite) TestCreate_SeedsLogAndAssignsTruck() {
	j, err := s.svc.Create(s.ctx, s.admin, models.JourneyCreateInput{
		DriverID: s.driver.ID, TruckID: s.truck.ID, TrailerID: &s.trailer.ID,
		Origin: " Moscow ", Destination: "Kazan",
	})
	s.Require().NoError(err)

	s.Equal(models.JourneyStatusToDo, j.Status)
	s.Equal("Moscow", j.Origin)
	s.Equal(models.DefaultTireStatus, j.TireStatus)
	s.Require().Len(j.Logs, 1)
	s.Equal(models.JourneyStatusToDo, j.Logs[0].Status)
	s.Equal("Journey created", j.Logs[0].Note)
	s.Equal(models.VehicleStatusAssigned, s.truckStatus(s.truck))
	s.Equal([]string{messages.JourneyEventCreated}, s.pub.types())
}

func (s *JourneySuite) TestCreate_RoundTrip() {
	j := s.create(s.truck)

	got, err := s.svc.Get(s.ctx, s.driver, j.ID)
	s.Require().NoError(err)
	s.Equal(j.Origin, got.Origin)
	s.Equal(j.Destination, got.Destination)
	s.Equal(j.Status, got.Status)
	s.Equal(s.driver.ID, got.Driver.ID)
	s.Equal("Ivan", got.Driver.Name)
	s.Equal(s.truck.ID, got.Truck.ID)
	s.Equal("A001AA", got.Truck.LicensePlate)
}

func (s *JourneySuite) TestCreate_Errors() {
	in := models.JourneyCreateInput{DriverID: s.driver.ID, TruckID: s.truck.ID, Origin: "A", Destination: "B"}

	_, err := s.svc.Create(s.ctx, s.driver, in)
	s.ErrorIs(err, models.ErrAccessDenied)

	_, err = s.svc.Create(s.ctx, s.admin, models.JourneyCreateInput{})
	var verr *models.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Len(verr.Violations, 4)

	bad := in
	bad.DriverID = 999
	_, err = s.svc.Create(s.ctx, s.admin, bad)
	s.ErrorIs(err, models.ErrNotFound)

	bad = in
	bad.DriverID = s.admin.ID
	_, err = s.svc.Create(s.ctx, s.admin, bad)
	s.ErrorIs(err, models.ErrRoleMismatch)

	bad = in
	bad.TruckID = s.trailer.ID
	_, err = s.svc.Create(s.ctx, s.admin, bad)
	s.ErrorIs(err, models.ErrNotFound)

	bad = in
	bad.TrailerID = &s.truck2.ID
	_, err = s.svc.Create(s.ctx, s.admin, bad)
	s.ErrorIs(err, models.ErrNotFound)

	// ничего не сохранено, грузовик не тронут
	list, err := s.svc.List(s.ctx, s.admin, models.JourneyFilter{})
	s.Require().NoError(err)
	s.Empty(list)
	s.Equal(models.VehicleStatusAvailable, s.truckStatus(s.truck))
	s.Empty(s.pub.types())
}

func (s *JourneySuite) TestGet_NotFoundBeforeAccess() {
	_, err := s.svc.Get(s.ctx, s.other, 12345)
	s.ErrorIs(err, models.ErrNotFound)

	j := s.create(s.truck)
	_, err = s.svc.Get(s.ctx, s.other, j.ID)
	s.ErrorIs(err, models.ErrAccessDenied)
}

func (s *JourneySuite) TestList_DriverSeesOwnOnly() {
	mine := s.create(s.truck)
	_, err := s.svc.Create(s.ctx, s.admin, models.JourneyCreateInput{
		DriverID: s.other.ID, TruckID: s.truck2.ID, Origin: "A", Destination: "B",
	})
	s.Require().NoError(err)

	all, err := s.svc.List(s.ctx, s.admin, models.JourneyFilter{})
	s.Require().NoError(err)
	s.Len(all, 2)

	own, err := s.svc.List(s.ctx, s.driver, models.JourneyFilter{DriverID: &s.other.ID})
	s.Require().NoError(err)
	s.Require().Len(own, 1)
	s.Equal(mine.ID, own[0].ID)

	_, err = s.svc.List(s.ctx, models.Actor{}, models.JourneyFilter{})
	s.ErrorIs(err, models.ErrUnauthenticated)
}

func (s *JourneySuite) TestTransition_FullLifecycle() {
	j := s.create(s.truck)

	started, err := s.svc.TransitionStatus(s.ctx, s.driver, j.ID, models.JourneyStatusInProgress, "", nil)
	s.Require().NoError(err)
	s.Equal(models.JourneyStatusInProgress, started.Status)
	s.Require().NotNil(started.StartDate)
	s.Len(started.Logs, 2)
	s.Equal("Status changed from to_do to in_progress", started.Logs[1].Note)
	s.Equal(models.VehicleStatusInUse, s.truckStatus(s.truck))

	finished, err := s.svc.TransitionStatus(s.ctx, s.admin, j.ID, models.JourneyStatusFinished, "arrived", nil)
	s.Require().NoError(err)
	s.Equal(models.JourneyStatusFinished, finished.Status)
	s.Require().NotNil(finished.EndDate)
	s.Equal(*started.StartDate, *finished.StartDate)
	s.Len(finished.Logs, 3)
	s.Equal("arrived", finished.Logs[2].Note)
	s.Equal(models.VehicleStatusAvailable, s.truckStatus(s.truck))

	s.Equal([]string{
		messages.JourneyEventCreated,
		messages.JourneyEventStatusChanged,
		messages.JourneyEventStatusChanged,
	}, s.pub.types())
}

func (s *JourneySuite) TestTransition_RejectedRegardlessOfActor() {
	todo := s.create(s.truck)
	done := s.create(s.truck2)
	_, err := s.svc.TransitionStatus(s.ctx, s.admin, done.ID, models.JourneyStatusInProgress, "", nil)
	s.Require().NoError(err)
	_, err = s.svc.TransitionStatus(s.ctx, s.admin, done.ID, models.JourneyStatusFinished, "", nil)
	s.Require().NoError(err)

	for _, actor := range []models.Actor{s.admin, s.driver} {
		_, err := s.svc.TransitionStatus(s.ctx, actor, todo.ID, models.JourneyStatusFinished, "", nil)
		var ite *models.InvalidTransitionError
		s.Require().ErrorAs(err, &ite)
		s.Equal(models.JourneyStatusToDo, ite.From)
		s.Equal(models.JourneyStatusFinished, ite.To)

		for _, to := range []string{models.JourneyStatusToDo, models.JourneyStatusInProgress, models.JourneyStatusFinished, "bogus"} {
			_, err := s.svc.TransitionStatus(s.ctx, actor, done.ID, to, "", nil)
			s.ErrorIs(err, models.ErrInvalidTransition)
		}
	}

	got, err := s.svc.Get(s.ctx, s.admin, done.ID)
	s.Require().NoError(err)
	s.Len(got.Logs, 3)
}

func (s *JourneySuite) TestTransition_AccessDenied() {
	j := s.create(s.truck)

	_, err := s.svc.TransitionStatus(s.ctx, s.other, j.ID, models.JourneyStatusInProgress, "", nil)
	s.ErrorIs(err, models.ErrAccessDenied)

	_, err = s.svc.TransitionStatus(s.ctx, s.admin, j.ID, models.JourneyStatusInProgress, "", nil)
	s.NoError(err)
}

func (s *JourneySuite) TestTransition_TruckUnavailable() {
	first := s.create(s.truck)
	second := s.create(s.truck)
	s.Equal(models.VehicleStatusAssigned, s.truckStatus(s.truck))

	_, err := s.svc.TransitionStatus(s.ctx, s.admin, first.ID, models.JourneyStatusInProgress, "", nil)
	s.Require().NoError(err)

	_, err = s.svc.TransitionStatus(s.ctx, s.admin, second.ID, models.JourneyStatusInProgress, "", nil)
	s.ErrorIs(err, models.ErrTruckUnavailable)

	got, err := s.svc.Get(s.ctx, s.admin, second.ID)
	s.Require().NoError(err)
	s.Equal(models.JourneyStatusToDo, got.Status)
	s.Len(got.Logs, 1)
	s.Equal(models.VehicleStatusInUse, s.truckStatus(s.truck))
}

func (s *JourneySuite) TestTransition_FinishFreesTruckEvenWithPending() {
	first := s.create(s.truck)
	second := s.create(s.truck)

	_, err := s.svc.TransitionStatus(s.ctx, s.admin, first.ID, models.JourneyStatusInProgress, "", nil)
	s.Require().NoError(err)
	_, err = s.svc.TransitionStatus(s.ctx, s.admin, first.ID, models.JourneyStatusFinished, "", nil)
	s.Require().NoError(err)
	s.Equal(models.VehicleStatusAvailable, s.truckStatus(s.truck))

	// the pending journey can still start on the freed truck
	_, err = s.svc.TransitionStatus(s.ctx, s.admin, second.ID, models.JourneyStatusInProgress, "", nil)
	s.Require().NoError(err)
	s.Equal(models.VehicleStatusInUse, s.truckStatus(s.truck))
}

func (s *JourneySuite) TestTransition_IfMatch() {
	j := s.create(s.truck)
	stale := j.Version - 1

	_, err := s.svc.TransitionStatus(s.ctx, s.admin, j.ID, models.JourneyStatusInProgress, "", &stale)
	s.ErrorIs(err, models.ErrConflict)

	cur := j.Version
	got, err := s.svc.TransitionStatus(s.ctx, s.admin, j.ID, models.JourneyStatusInProgress, "", &cur)
	s.Require().NoError(err)
	s.Equal(j.Version+1, got.Version)
}

func (s *JourneySuite) TestTracking_MergesAndKeepsLogs() {
	j := s.create(s.truck)

	got, err := s.svc.UpdateTracking(s.ctx, s.driver, j.ID, models.TrackingFields{
		MileageStart: f64(100), FuelVolume: f64(1000), Remarks: str("loaded"),
	}, nil)
	s.Require().NoError(err)
	s.Equal(100.0, *got.MileageStart)
	s.Equal(1000.0, *got.FuelVolume)
	s.Equal("loaded", got.Remarks)
	s.Len(got.Logs, 1)
	s.Equal(models.JourneyStatusToDo, got.Status)
}

func (s *JourneySuite) TestTracking_RejectedWholesale() {
	j := s.create(s.truck)
	_, err := s.svc.UpdateTracking(s.ctx, s.driver, j.ID, models.TrackingFields{MileageStart: f64(100)}, nil)
	s.Require().NoError(err)

	for _, end := range []float64{100, 50} {
		_, err := s.svc.UpdateTracking(s.ctx, s.driver, j.ID, models.TrackingFields{
			MileageEnd: f64(end), Remarks: str("should not stick"), FuelVolume: f64(10),
		}, nil)
		s.Require().ErrorIs(err, models.ErrValidation)
	}

	_, err = s.svc.UpdateTracking(s.ctx, s.driver, j.ID, models.TrackingFields{FuelVolume: f64(1000.01)}, nil)
	s.ErrorIs(err, models.ErrValidation)
	_, err = s.svc.UpdateTracking(s.ctx, s.driver, j.ID, models.TrackingFields{FuelVolume: f64(-1)}, nil)
	s.ErrorIs(err, models.ErrValidation)

	got, err := s.svc.Get(s.ctx, s.admin, j.ID)
	s.Require().NoError(err)
	s.Nil(got.MileageEnd)
	s.Nil(got.FuelVolume)
	s.Empty(got.Remarks)
}

func (s *JourneySuite) TestTracking_AggregatesViolations() {
	j := s.create(s.truck)

	_, err := s.svc.UpdateTracking(s.ctx, s.driver, j.ID, models.TrackingFields{
		MileageStart: f64(-5), FuelVolume: f64(5000), Status: str(models.JourneyStatusFinished),
	}, nil)
	var verr *models.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Len(verr.Violations, 3)
	s.ErrorIs(err, models.ErrInvalidTransition)
}

func (s *JourneySuite) TestTracking_WithStatus() {
	j := s.create(s.truck)

	got, err := s.svc.UpdateTracking(s.ctx, s.driver, j.ID, models.TrackingFields{
		MileageStart: f64(10), Status: str(models.JourneyStatusInProgress),
	}, nil)
	s.Require().NoError(err)
	s.Equal(models.JourneyStatusInProgress, got.Status)
	s.NotNil(got.StartDate)
	s.Require().Len(got.Logs, 2)
	s.Equal("Status updated via tracking update", got.Logs[1].Note)
	s.Equal(models.VehicleStatusInUse, s.truckStatus(s.truck))

	got, err = s.svc.UpdateTracking(s.ctx, s.driver, j.ID, models.TrackingFields{
		MileageEnd: f64(250), Status: str(models.JourneyStatusFinished), Note: str("unloaded"),
	}, nil)
	s.Require().NoError(err)
	s.Equal("unloaded", got.Logs[2].Note)
	s.Equal(models.VehicleStatusAvailable, s.truckStatus(s.truck))

	last := s.pub.events[len(s.pub.events)-1]
	s.True(last.Finished())
	s.Equal(250.0, *last.MileageEnd)
}

func (s *JourneySuite) TestTracking_StatusGuard() {
	first := s.create(s.truck)
	second := s.create(s.truck)
	_, err := s.svc.TransitionStatus(s.ctx, s.admin, first.ID, models.JourneyStatusInProgress, "", nil)
	s.Require().NoError(err)

	_, err = s.svc.UpdateTracking(s.ctx, s.admin, second.ID, models.TrackingFields{
		Remarks: str("go"), Status: str(models.JourneyStatusInProgress),
	}, nil)
	s.ErrorIs(err, models.ErrTruckUnavailable)

	got, err := s.svc.Get(s.ctx, s.admin, second.ID)
	s.Require().NoError(err)
	s.Empty(got.Remarks)
}

func (s *JourneySuite) TestDelete() {
	only := s.create(s.truck)

	s.ErrorIs(s.svc.Delete(s.ctx, s.driver, only.ID), models.ErrAccessDenied)
	s.ErrorIs(s.svc.Delete(s.ctx, s.driver, 999), models.ErrAccessDenied)
	s.ErrorIs(s.svc.Delete(s.ctx, s.admin, 999), models.ErrNotFound)

	s.Require().NoError(s.svc.Delete(s.ctx, s.admin, only.ID))
	s.Equal(models.VehicleStatusAvailable, s.truckStatus(s.truck))

	_, err := s.svc.Get(s.ctx, s.admin, only.ID)
	s.ErrorIs(err, models.ErrNotFound)
	s.Contains(s.pub.types(), messages.JourneyEventDeleted)
}

func (s *JourneySuite) TestDelete_LeavesTruckInUse() {
	first := s.create(s.truck)
	second := s.create(s.truck)
	_, err := s.svc.TransitionStatus(s.ctx, s.admin, second.ID, models.JourneyStatusInProgress, "", nil)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Delete(s.ctx, s.admin, first.ID))
	s.Equal(models.VehicleStatusInUse, s.truckStatus(s.truck))
}

func (s *JourneySuite) TestLogsGrowByOnePerTransition() {
	j := s.create(s.truck)
	s.Len(j.Logs, 1)

	for i, st := range []string{models.JourneyStatusInProgress, models.JourneyStatusFinished} {
		got, err := s.svc.TransitionStatus(s.ctx, s.driver, j.ID, st, "", nil)
		s.Require().NoError(err)
		s.Len(got.Logs, i+2)
	}
}

func (s *JourneySuite) TestPublishFailureDoesNotFailMutation() {
	s.pub.err = errors.New("kafka down")
	j := s.create(s.truck)

	_, err := s.svc.TransitionStatus(s.ctx, s.admin, j.ID, models.JourneyStatusInProgress, "", nil)
	s.NoError(err)
}

func (s *JourneySuite) TestCacheServesReadsAndIsRefreshed() {
	j := s.create(s.truck)
	s.True(s.mr.Exists(currentKey(j.ID)))

	_, err := s.svc.TransitionStatus(s.ctx, s.admin, j.ID, models.JourneyStatusInProgress, "", nil)
	s.Require().NoError(err)

	got, err := s.svc.Get(s.ctx, s.driver, j.ID)
	s.Require().NoError(err)
	s.Equal(models.JourneyStatusInProgress, got.Status)

	// redis недоступен: чтение уходит в хранилище
	s.mr.Close()
	got, err = s.svc.Get(s.ctx, s.driver, j.ID)
	s.Require().NoError(err)
	s.Equal(models.JourneyStatusInProgress, got.Status)
}

func (s *JourneySuite) TestConcurrentStartsOnSameTruck() {
	const n = 10
	ids := make([]uint64, n)
	for i := range ids {
		ids[i] = s.create(s.truck).ID
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		busy int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			_, err := s.svc.TransitionStatus(s.ctx, s.admin, id, models.JourneyStatusInProgress, "", nil)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
			} else if errors.Is(err, models.ErrTruckUnavailable) {
				busy++
			}
		}(id)
	}
	wg.Wait()

	s.Equal(1, oks)
	s.Equal(n-1, busy)
	s.Equal(models.VehicleStatusInUse, s.truckStatus(s.truck))
}

func (s *JourneySuite) TestConcurrentUpdatesOnSameJourney() {
	j := s.create(s.truck)

	const n = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		oks      int
		rejected int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.TransitionStatus(s.ctx, s.admin, j.ID, models.JourneyStatusInProgress, "", nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				oks++
			case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrInvalidTransition):
				rejected++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, oks)
	s.Equal(n-1, rejected)

	got, err := s.svc.Get(s.ctx, s.admin, j.ID)
	s.Require().NoError(err)
	s.Len(got.Logs, 2)
}
