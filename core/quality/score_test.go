package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransformScore(t *testing.T) {
	tests := []struct {
		name  string
		score float32
		want  float32
	}{
		{"below floor", 3.9, 1.0},
		{"just below floor", 4.09, 1.0},
		{"at floor", 4.1, 0},
		{"default target", DefaultTarget, 1.3333},
		{"top of range", 4.75, 4.3333},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TransformScore(tt.score), 1e-3)
		})
	}
}
