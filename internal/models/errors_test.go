package models

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestValidationError_ErrEmpty(t *testing.T) {
	v := &ValidationError{}
	require.NoError(t, v.Err())

	v.Add("mileageEnd", "must be greater than mileageStart")
	err := v.Err()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrValidation)
	require.NotErrorIs(t, err, ErrInvalidTransition)
	require.Contains(t, err.Error(), "mileageEnd")
}

func TestValidationError_CarriesTransition(t *testing.T) {
	v := &ValidationError{Transition: &InvalidTransitionError{From: "finished", To: "to_do"}}
	v.Add("status", "cannot change status from finished to to_do")

	err := pkgerrors.Wrap(v.Err(), "update tracking")
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, ErrInvalidTransition)

	var ite *InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	require.Equal(t, "finished", ite.From)
	require.Equal(t, "to_do", ite.To)
}

func TestTypedErrors_MatchSentinels(t *testing.T) {
	require.ErrorIs(t, &TruckUnavailableError{TruckID: 3}, ErrTruckUnavailable)
	require.ErrorIs(t, NotFound("journey", 7), ErrNotFound)
	require.Equal(t, "journey 7 not found", NotFound("journey", 7).Error())
}

func TestTruckStatusFor(t *testing.T) {
	require.Equal(t, VehicleStatusInUse, TruckStatusFor(JourneyStatusInProgress))
	require.Equal(t, VehicleStatusAssigned, TruckStatusFor(JourneyStatusToDo))
	require.Equal(t, VehicleStatusAvailable, TruckStatusFor(JourneyStatusFinished))
	require.Equal(t, VehicleStatusAvailable, TruckStatusFor("archived"))

	require.Equal(t, VehicleStatusInUse, TruckStatusOnAssign(VehicleStatusInUse))
	require.Equal(t, VehicleStatusAssigned, TruckStatusOnAssign(VehicleStatusAvailable))
	require.Equal(t, VehicleStatusAssigned, TruckStatusOnAssign(VehicleStatusMaintenance))
}

func TestJourneyClone_Independent(t *testing.T) {
	m := 10.0
	j := &Journey{ID: 1, MileageStart: &m, Logs: []JourneyLog{{Status: JourneyStatusToDo}}}
	c := j.Clone()
	*c.MileageStart = 20
	c.Logs = append(c.Logs, JourneyLog{Status: JourneyStatusInProgress})
	c.Logs[0].Note = "x"

	require.Equal(t, 10.0, *j.MileageStart)
	require.Len(t, j.Logs, 1)
	require.Empty(t, j.Logs[0].Note)
}
