package fleet_api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/BearBump/FleetTrack/internal/cache/rediscache"
	"github.com/BearBump/FleetTrack/internal/models"
	miniredis "github.com/alicebob/miniredis/v2"
)

func (s *APISuite) TestHealthz() {
	r := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, r.status)
	s.JSONEq(`{"status":"ok"}`, string(r.body))

	s.deps.Health = func(ctx context.Context) error { return errors.New("db down") }
	s.start()
	r = s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusServiceUnavailable, r.status)
}

func (s *APISuite) TestAuthRequired() {
	r := s.do(http.MethodGet, "/journeys", "", nil)
	s.Equal(http.StatusUnauthorized, r.status)
	s.Equal(codeUnauthenticated, r.errorCode())

	r = s.do(http.MethodGet, "/journeys", "not-a-jwt", nil)
	s.Equal(http.StatusUnauthorized, r.status)
}

func (s *APISuite) TestLogin() {
	r := s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": adminEmail, "password": "wrong"})
	s.Equal(http.StatusUnauthorized, r.status)
	s.Equal(codeUnauthenticated, r.errorCode())

	r = s.do(http.MethodPost, "/auth/login", "", map[string]string{})
	s.Equal(http.StatusBadRequest, r.status)
	var b errorBody
	s.decode(r, &b)
	s.Len(b.Error.Details, 2)

	r = s.do(http.MethodGet, "/auth/me", s.driver, nil)
	s.Equal(http.StatusOK, r.status)
	var u models.User
	s.decode(r, &u)
	s.Equal(s.driverID, u.ID)
	s.NotContains(string(r.body), "password")
}

func (s *APISuite) TestUsers() {
	r := s.do(http.MethodGet, "/users?role=driver", s.admin, nil)
	s.Equal(http.StatusOK, r.status)
	var us []models.User
	s.decode(r, &us)
	s.Len(us, 2)

	r = s.do(http.MethodGet, "/users", s.driver, nil)
	s.Equal(http.StatusForbidden, r.status)
	s.Equal(codeAccessDenied, r.errorCode())

	r = s.do(http.MethodPost, "/users", s.admin, map[string]string{"name": "Eve", "email": "eve@fleet.test", "password": "123456"})
	s.Equal(http.StatusCreated, r.status)

	r = s.do(http.MethodPost, "/users", s.admin, map[string]string{"name": "Eve2", "email": "eve@fleet.test", "password": "123456"})
	s.Equal(http.StatusConflict, r.status)
	s.Equal(codeConflict, r.errorCode())
}

func (s *APISuite) TestJourneyLifecycle() {
	truck := s.createTruck("AA-001")
	j := s.createJourney(s.driverID, truck)
	s.Equal(models.JourneyStatusToDo, j.Status)
	s.Len(j.Logs, 1)
	s.Equal(models.VehicleStatusAssigned, s.truckStatus(truck))

	path := fmt.Sprintf("/journeys/%d", j.ID)

	r := s.do(http.MethodGet, path, s.driver, nil)
	s.Equal(http.StatusOK, r.status)
	s.Equal(etag(j.Version), r.header.Get("ETag"))

	r = s.do(http.MethodGet, path, s.other, nil)
	s.Equal(http.StatusForbidden, r.status)

	r = s.do(http.MethodPatch, path+"/status", s.driver, map[string]string{"status": models.JourneyStatusInProgress})
	s.Equal(http.StatusOK, r.status, string(r.body))
	var started models.Journey
	s.decode(r, &started)
	s.NotNil(started.StartDate)
	s.Equal(models.VehicleStatusInUse, s.truckStatus(truck))

	r = s.do(http.MethodPatch, path+"/status", s.driver, map[string]string{"status": models.JourneyStatusToDo})
	s.Equal(http.StatusBadRequest, r.status)
	s.Equal(codeInvalidTransition, r.errorCode())

	r = s.do(http.MethodPatch, path+"/tracking", s.driver,
		map[string]any{"mileageStart": 100, "mileageEnd": 50, "fuelVolume": 2000})
	s.Equal(http.StatusBadRequest, r.status)
	var b errorBody
	s.decode(r, &b)
	s.Equal(codeValidation, b.Error.Code)
	s.Len(b.Error.Details, 2)

	r = s.do(http.MethodPatch, path+"/tracking", s.driver,
		map[string]any{"mileageStart": 100, "mileageEnd": 350, "fuelVolume": 80, "status": models.JourneyStatusFinished},
		"If-Match", etag(started.Version))
	s.Equal(http.StatusOK, r.status, string(r.body))
	var finished models.Journey
	s.decode(r, &finished)
	s.Equal(models.JourneyStatusFinished, finished.Status)
	s.NotNil(finished.EndDate)
	s.Equal(models.VehicleStatusAvailable, s.truckStatus(truck))

	r = s.do(http.MethodPatch, path+"/tracking", s.driver, map[string]any{"remarks": "late"}, "If-Match", etag(started.Version))
	s.Equal(http.StatusConflict, r.status)
	s.Equal(codeConflict, r.errorCode())

	r = s.do(http.MethodPatch, path+"/tracking", s.driver, map[string]any{"remarks": "late"}, "If-Match", "abc")
	s.Equal(http.StatusBadRequest, r.status)
}

func (s *APISuite) TestDoubleBooking() {
	truck := s.createTruck("AA-002")
	a := s.createJourney(s.driverID, truck)
	b := s.createJourney(s.otherID, truck)

	r := s.do(http.MethodPatch, fmt.Sprintf("/journeys/%d/status", a.ID), s.driver, map[string]string{"status": models.JourneyStatusInProgress})
	s.Equal(http.StatusOK, r.status)

	r = s.do(http.MethodPatch, fmt.Sprintf("/journeys/%d/status", b.ID), s.other, map[string]string{"status": models.JourneyStatusInProgress})
	s.Equal(http.StatusConflict, r.status)
	s.Equal(codeTruckUnavailable, r.errorCode())
}

func (s *APISuite) TestCreateJourneyErrors() {
	truck := s.createTruck("AA-003")

	r := s.do(http.MethodPost, "/journeys", s.driver, map[string]any{"driverId": s.driverID, "truckId": truck, "origin": "a", "destination": "b"})
	s.Equal(http.StatusForbidden, r.status)

	r = s.do(http.MethodPost, "/journeys", s.admin, map[string]any{"driverId": 1, "truckId": truck, "origin": "a", "destination": "b"})
	s.Equal(http.StatusBadRequest, r.status)
	s.Equal(codeRoleMismatch, r.errorCode())

	r = s.do(http.MethodPost, "/journeys", s.admin, map[string]any{"driverId": s.driverID, "truckId": 9999, "origin": "a", "destination": "b"})
	s.Equal(http.StatusNotFound, r.status)

	r = s.do(http.MethodPost, "/journeys", s.admin, map[string]any{"driverId": s.driverID, "truckId": truck})
	s.Equal(http.StatusBadRequest, r.status)
	s.Equal(codeValidation, r.errorCode())

	r = s.do(http.MethodPost, "/journeys", s.admin, "{broken")
	s.Equal(http.StatusBadRequest, r.status)
}

func (s *APISuite) TestListAndDelete() {
	truck := s.createTruck("AA-004")
	mine := s.createJourney(s.driverID, truck)
	s.createJourney(s.otherID, truck)

	r := s.do(http.MethodGet, "/journeys", s.driver, nil)
	s.Equal(http.StatusOK, r.status)
	var js []models.Journey
	s.decode(r, &js)
	s.Len(js, 1)
	s.Equal(mine.ID, js[0].ID)

	r = s.do(http.MethodGet, "/journeys?status=to_do", s.admin, nil)
	s.decode(r, &js)
	s.Len(js, 2)

	r = s.do(http.MethodDelete, fmt.Sprintf("/journeys/%d", mine.ID), s.driver, nil)
	s.Equal(http.StatusForbidden, r.status)

	r = s.do(http.MethodDelete, fmt.Sprintf("/journeys/%d", mine.ID), s.admin, nil)
	s.Equal(http.StatusOK, r.status)
	s.JSONEq(`{"deleted":true}`, string(r.body))

	r = s.do(http.MethodGet, fmt.Sprintf("/journeys/%d", mine.ID), s.admin, nil)
	s.Equal(http.StatusNotFound, r.status)
	s.Equal(codeNotFound, r.errorCode())

	r = s.do(http.MethodGet, "/journeys/abc", s.admin, nil)
	s.Equal(http.StatusBadRequest, r.status)
}

func (s *APISuite) TestVehicles() {
	truck := s.createTruck("AA-005")

	r := s.do(http.MethodPost, "/trailers", s.admin, map[string]any{"licensePlate": "TR-1", "model": "Krone", "capacity": 30000})
	s.Equal(http.StatusCreated, r.status, string(r.body))
	var trailer models.Vehicle
	s.decode(r, &trailer)
	s.Equal(models.VehicleKindTrailer, trailer.Kind)

	r = s.do(http.MethodGet, fmt.Sprintf("/trucks/%d", trailer.ID), s.driver, nil)
	s.Equal(http.StatusNotFound, r.status)

	r = s.do(http.MethodGet, "/trucks", s.driver, nil)
	s.Equal(http.StatusOK, r.status)

	r = s.do(http.MethodPost, "/trucks", s.driver, map[string]any{"licensePlate": "X"})
	s.Equal(http.StatusForbidden, r.status)

	r = s.do(http.MethodPatch, fmt.Sprintf("/trucks/%d/tracking", truck), s.admin, map[string]any{"mileage": 1200, "fuelLevel": 55})
	s.Equal(http.StatusOK, r.status, string(r.body))
	var v models.Vehicle
	s.decode(r, &v)
	s.Equal(1200.0, v.Mileage)

	r = s.do(http.MethodPatch, fmt.Sprintf("/trailers/%d/tracking", trailer.ID), s.admin, map[string]any{"fuelLevel": 10})
	s.Equal(http.StatusBadRequest, r.status)

	r = s.do(http.MethodPut, fmt.Sprintf("/trucks/%d", truck), s.admin, map[string]any{"licensePlate": "AA-005", "model": "Scania R", "capacity": 18000})
	s.Equal(http.StatusOK, r.status, string(r.body))
	s.decode(r, &v)
	s.Equal("Scania R", v.Model)

	s.createJourney(s.driverID, truck)
	r = s.do(http.MethodDelete, fmt.Sprintf("/trucks/%d", truck), s.admin, nil)
	s.Equal(http.StatusConflict, r.status)

	r = s.do(http.MethodDelete, fmt.Sprintf("/trailers/%d", trailer.ID), s.admin, nil)
	s.Equal(http.StatusOK, r.status)
}

func (s *APISuite) TestListEndpoints() {
	free := s.createTruck("AA-010")
	busy := s.createTruck("AA-011")
	s.createJourney(s.driverID, busy)

	r := s.do(http.MethodGet, "/trucks/available", s.driver, nil)
	s.Equal(http.StatusOK, r.status, string(r.body))
	var vs []models.Vehicle
	s.decode(r, &vs)
	s.Require().Len(vs, 1)
	s.Equal(free, vs[0].ID)

	r = s.do(http.MethodGet, "/users/drivers", s.admin, nil)
	s.Equal(http.StatusOK, r.status, string(r.body))
	var us []models.User
	s.decode(r, &us)
	s.Len(us, 2)
	for _, u := range us {
		s.Equal(models.RoleDriver, u.Role)
	}

	r = s.do(http.MethodGet, "/users/drivers", s.driver, nil)
	s.Equal(http.StatusForbidden, r.status)
}

func (s *APISuite) TestTires() {
	truck := s.createTruck("AA-020")

	r := s.do(http.MethodPost, "/tires", s.driver, map[string]any{"serialNumber": "SN-1"})
	s.Equal(http.StatusForbidden, r.status)

	r = s.do(http.MethodPost, "/tires", s.admin, map[string]any{"serialNumber": "SN-1", "brand": "Michelin", "treadDepth": 14})
	s.Require().Equal(http.StatusCreated, r.status, string(r.body))
	var tire models.Tire
	s.decode(r, &tire)
	s.Equal(models.TireStatusInStock, tire.Status)

	r = s.do(http.MethodPost, "/tires", s.admin, map[string]any{"serialNumber": "SN-1"})
	s.Equal(http.StatusConflict, r.status)

	r = s.do(http.MethodPatch, fmt.Sprintf("/tires/%d/assign", tire.ID), s.admin, map[string]any{"vehicleType": "truck", "vehicleId": truck})
	s.Equal(http.StatusBadRequest, r.status)
	s.Equal(codeValidation, r.errorCode())

	r = s.do(http.MethodPatch, fmt.Sprintf("/tires/%d/assign", tire.ID), s.admin, map[string]any{"vehicleType": "truck", "vehicleId": truck, "position": "front-left"})
	s.Require().Equal(http.StatusOK, r.status, string(r.body))
	s.decode(r, &tire)
	s.Equal(models.TireStatusMounted, tire.Status)
	s.Equal(truck, *tire.AssignedToID)

	r = s.do(http.MethodGet, fmt.Sprintf("/tires?vehicleId=%d", truck), s.admin, nil)
	s.Equal(http.StatusOK, r.status)
	var ts []models.Tire
	s.decode(r, &ts)
	s.Len(ts, 1)

	r = s.do(http.MethodDelete, fmt.Sprintf("/trucks/%d", truck), s.admin, nil)
	s.Equal(http.StatusConflict, r.status)

	r = s.do(http.MethodPatch, fmt.Sprintf("/tires/%d/wear", tire.ID), s.admin, map[string]any{"treadDepth": 8.5, "mileage": 42000})
	s.Require().Equal(http.StatusOK, r.status, string(r.body))
	s.decode(r, &tire)
	s.Equal(8.5, *tire.TreadDepth)

	r = s.do(http.MethodPatch, fmt.Sprintf("/tires/%d/unassign", tire.ID), s.admin, nil)
	s.Require().Equal(http.StatusOK, r.status, string(r.body))
	var stocked models.Tire
	s.decode(r, &stocked)
	s.Equal(models.TireStatusInStock, stocked.Status)
	s.Nil(stocked.AssignedToID)
	s.Len(stocked.History, 4)

	r = s.do(http.MethodPatch, fmt.Sprintf("/tires/%d/unassign", tire.ID), s.admin, nil)
	s.Equal(http.StatusBadRequest, r.status)

	r = s.do(http.MethodPut, fmt.Sprintf("/tires/%d", tire.ID), s.admin, map[string]any{"serialNumber": "SN-1", "brand": "Bridgestone"})
	s.Equal(http.StatusOK, r.status, string(r.body))

	r = s.do(http.MethodGet, "/tires?status=flat", s.admin, nil)
	s.Equal(http.StatusBadRequest, r.status)

	r = s.do(http.MethodDelete, fmt.Sprintf("/tires/%d", tire.ID), s.admin, nil)
	s.Equal(http.StatusOK, r.status)
	r = s.do(http.MethodGet, fmt.Sprintf("/tires/%d", tire.ID), s.admin, nil)
	s.Equal(http.StatusNotFound, r.status)
}

func (s *APISuite) TestMaintenanceRules() {
	s.createTruck("AA-006")

	r := s.do(http.MethodPost, "/maintenance-rules", s.admin, map[string]any{"name": "Revision", "type": "revision", "appliesTo": "all", "thresholdDays": 7})
	s.Equal(http.StatusCreated, r.status, string(r.body))
	var rule models.MaintenanceRule
	s.decode(r, &rule)

	r = s.do(http.MethodGet, "/maintenance-rules/upcoming", s.admin, nil)
	s.Equal(http.StatusOK, r.status)
	var alerts []models.MaintenanceAlert
	s.decode(r, &alerts)
	s.Len(alerts, 1)
	s.Equal(models.AlertStatusUpcoming, alerts[0].Status)

	r = s.do(http.MethodPut, fmt.Sprintf("/maintenance-rules/%d", rule.ID), s.admin, map[string]any{"name": "Revision", "type": "revision", "appliesTo": "trailer", "thresholdDays": 7})
	s.Equal(http.StatusOK, r.status, string(r.body))

	r = s.do(http.MethodGet, "/maintenance-rules/upcoming", s.admin, nil)
	s.decode(r, &alerts)
	s.Empty(alerts)

	r = s.do(http.MethodGet, "/maintenance-rules", s.driver, nil)
	s.Equal(http.StatusForbidden, r.status)

	r = s.do(http.MethodPost, "/maintenance-rules", s.admin, map[string]any{"name": "", "type": "wash"})
	s.Equal(http.StatusBadRequest, r.status)

	r = s.do(http.MethodDelete, fmt.Sprintf("/maintenance-rules/%d", rule.ID), s.admin, nil)
	s.Equal(http.StatusOK, r.status)
	r = s.do(http.MethodDelete, fmt.Sprintf("/maintenance-rules/%d", rule.ID), s.admin, nil)
	s.Equal(http.StatusNotFound, r.status)
}

func (s *APISuite) TestReportSummary() {
	truck := s.createTruck("AA-007")
	j := s.createJourney(s.driverID, truck)
	r := s.do(http.MethodPatch, fmt.Sprintf("/journeys/%d/tracking", j.ID), s.driver, map[string]any{"mileageStart": 10, "mileageEnd": 110, "fuelVolume": 30})
	s.Require().Equal(http.StatusOK, r.status, string(r.body))

	r = s.do(http.MethodGet, "/reports/summary", s.admin, nil)
	s.Equal(http.StatusOK, r.status)
	var sum models.Summary
	s.decode(r, &sum)
	s.Equal(1, sum.JourneysCount)
	s.Equal(100.0, sum.TotalMileage)
	s.Equal(30.0, sum.TotalFuel)
	s.Equal(100.0, sum.PerTruck[truck].Mileage)
	s.Equal(30.0, sum.PerDriver[s.driverID].Fuel)

	r = s.do(http.MethodGet, "/reports/summary", s.driver, nil)
	s.Equal(http.StatusForbidden, r.status)
}

func (s *APISuite) TestRateLimit() {
	mr := miniredis.RunT(s.T())
	rl := rediscache.NewRateLimiter(mr.Addr())
	s.T().Cleanup(func() { _ = rl.Close() })

	s.deps.Limiter = rl
	s.deps.RateLimitPerMinute = 2
	s.start()

	s.Equal(http.StatusOK, s.do(http.MethodGet, "/journeys", s.driver, nil).status)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/journeys", s.driver, nil).status)
	r := s.do(http.MethodGet, "/journeys", s.driver, nil)
	s.Equal(http.StatusTooManyRequests, r.status)
	s.Equal(codeRateLimited, r.errorCode())
	s.Equal("60", r.header.Get("Retry-After"))

	// the limit is per actor
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/journeys", s.admin, nil).status)

	mr.FastForward(2 * time.Minute)
	mr.Close()
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/journeys", s.driver, nil).status)
}

func (s *APISuite) TestCORSPreflight() {
	s.deps.CORSOrigins = []string{"http://localhost:5173"}
	s.start()

	req, err := http.NewRequest(http.MethodOptions, s.srv.URL+"/journeys", nil)
	s.Require().NoError(err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	req.Header.Set("Access-Control-Request-Headers", "authorization,if-match")
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.True(resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK)
	s.Equal("http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}
