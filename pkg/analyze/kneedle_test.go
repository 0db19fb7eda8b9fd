package analyze

import "testing"

func TestFindKnee(t *testing.T) {
	tests := []struct {
		name   string
		points []Point
		wantX  float64
	}{
		{
			name: "steep drop then plateau",
			points: []Point{
				{X: 1, Y: 100},
				{X: 2, Y: 40},
				{X: 3, Y: 15}, // knee
				{X: 4, Y: 12},
				{X: 5, Y: 11},
			},
			wantX: 3,
		},
		{
			name: "linear decline",
			points: []Point{
				{X: 1, Y: 40},
				{X: 2, Y: 30},
				{X: 3, Y: 20},
				{X: 4, Y: 10},
			},
			wantX: 1,
		},
		{
			name: "plateau",
			points: []Point{
				{X: 1, Y: 100},
				{X: 2, Y: 100},
				{X: 3, Y: 100},
			},
			wantX: 3,
		},
		{
			name: "step drop",
			points: []Point{
				{X: 1, Y: 100},
				{X: 2, Y: 100},
				{X: 3, Y: 0},
				{X: 4, Y: 0},
			},
			wantX: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindKnee(tt.points)
			if got.X != tt.wantX {
				t.Errorf("FindKnee() = %v, want X=%v", got, tt.wantX)
			}
		})
	}
}
