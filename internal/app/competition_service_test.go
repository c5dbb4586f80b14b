package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sciquest/internal/domain"
)

func TestOpenAndCloseRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	round, err := f.competition.OpenRound(ctx, "forces", "8A")
	require.NoError(t, err)
	assert.True(t, round.IsOpen)
	assert.Equal(t, 1, round.RoundNumber)

	closed, err := f.competition.CloseRound(ctx, "forces", "8A")
	require.NoError(t, err)
	assert.False(t, closed.IsOpen)
	assert.Equal(t, 1, closed.RoundNumber, "closing keeps the round number")

	reopened, err := f.competition.OpenRound(ctx, "forces", "8A")
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.RoundNumber)
}

func TestRoundValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.competition.OpenRound(ctx, "forces", "9Z")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.competition.OpenRound(ctx, "nope", "8A")
	assert.ErrorIs(t, err, domain.ErrTopicNotFound)

	_, err = f.competition.CloseRound(ctx, "forces", "8B")
	assert.ErrorIs(t, err, domain.ErrRoundNotFound)
}

func TestOpenAllCloseAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.openRound(t, "forces", "8A")

	opened, err := f.competition.OpenAll(ctx, "forces")
	require.NoError(t, err)
	require.Len(t, opened, len(testSections))
	assert.Equal(t, 2, opened[0].RoundNumber)
	assert.Equal(t, 1, opened[1].RoundNumber)

	closed, err := f.competition.CloseAll(ctx, "cells")
	require.NoError(t, err)
	for _, r := range closed {
		assert.False(t, r.IsOpen)
		assert.Equal(t, 0, r.RoundNumber)
	}

	closed, err = f.competition.CloseAll(ctx, "forces")
	require.NoError(t, err)
	for _, r := range closed {
		assert.False(t, r.IsOpen)
	}

	_, err = f.sessions.StartSession(ctx, "s1", "forces", domain.ModeCompetition)
	assert.ErrorIs(t, err, domain.ErrRoundClosed)
}

func TestRoundsListsEverySection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.openRound(t, "forces", "8B")

	rounds, err := f.competition.Rounds(ctx, "forces")
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, "8A", rounds[0].ClassSection)
	assert.False(t, rounds[0].IsOpen)
	assert.Equal(t, "8B", rounds[1].ClassSection)
	assert.True(t, rounds[1].IsOpen)
}
