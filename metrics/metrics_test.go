// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewIceRegisters(t *testing.T) {
	require := require.New(t)
	reg := prometheus.NewRegistry()
	m, err := NewIce(reg)
	require.NoError(err)
	m.LiveCommitteeSize.Set(3)
	m.Epoch.Set(1)
	m.Decisions.Inc()

	families, err := reg.Gather()
	require.NoError(err)
	require.NotEmpty(families)
}

func TestNewSleetRegisters(t *testing.T) {
	require := require.New(t)
	reg := prometheus.NewRegistry()
	m, err := NewSleet(reg)
	require.NoError(err)
	m.AcceptedCells.Inc()
	m.QueryFailures.Inc()

	families, err := reg.Gather()
	require.NoError(err)
	require.NotEmpty(families)
}

func TestNewHailRegisters(t *testing.T) {
	require := require.New(t)
	reg := prometheus.NewRegistry()
	m, err := NewHail(reg)
	require.NoError(err)
	m.AcceptedBlocks.Inc()
	m.Height.Set(5)

	families, err := reg.Gather()
	require.NoError(err)
	require.NotEmpty(families)
}

func TestDoubleRegisterFails(t *testing.T) {
	require := require.New(t)
	reg := prometheus.NewRegistry()
	_, err := NewIce(reg)
	require.NoError(err)
	_, err = NewIce(reg)
	require.Error(err)
}
