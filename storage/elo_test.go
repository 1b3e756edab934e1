package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeEloUpdates(t *testing.T) {
	tests := []struct {
		name   string
		r0, r1 int
		winner int
		want0  int
		want1  int
	}{
		{"player1 beats equal", 1000, 1000, 0, 1016, 984},
		{"player2 beats equal", 1000, 1000, 1, 984, 1016},
		{"draw between equals", 1000, 1000, -1, 1000, 1000},
		{"underdog draw", 800, 1200, -1, 813, 1187},
		{"rating floors at zero", 10, 10, 1, 0, 26},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got0, got1 := computeEloUpdates(tt.r0, tt.r1, tt.winner)
			assert.Equal(t, tt.want0, got0)
			assert.Equal(t, tt.want1, got1)
		})
	}
}

func TestApplyResult(t *testing.T) {
	var a, b tally
	applyResult(&a, &b, 0)
	applyResult(&a, &b, 1)
	applyResult(&a, &b, -1)
	assert.Equal(t, tally{wins: 1, losses: 1, draws: 1}, a)
	assert.Equal(t, tally{wins: 1, losses: 1, draws: 1}, b)
}

func TestIsBot(t *testing.T) {
	assert.True(t, IsBot("ai:Quistis"))
	assert.False(t, IsBot("alice"))
	assert.False(t, IsBot("AI"))
}

func TestClampPage(t *testing.T) {
	limit, offset := clampPage(0, -3)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 0, offset)
	limit, offset = clampPage(1000, 40)
	assert.Equal(t, 200, limit)
	assert.Equal(t, 40, offset)
}
