package geo

import "github.com/example/ride-dispatch/internal/models"

// Grid is the square simulation area, valid coordinates are 0 <= x,y < Size.
type Grid struct {
	Size int
}

func (g Grid) Contains(l models.Location) bool {
	return l.X >= 0 && l.Y >= 0 && l.X < g.Size && l.Y < g.Size
}

// Manhattan distance in grid units; it is both the proximity metric and the movement cost.
func Manhattan(a, b models.Location) int {
	return a.DistanceTo(b)
}

// Step moves cur one unit toward target. The horizontal axis is closed first and the
// vertical axis only moves once x matches, so paths are deterministic and never diagonal.
func Step(cur, target models.Location) models.Location {
	switch {
	case cur.X < target.X:
		cur.X++
	case cur.X > target.X:
		cur.X--
	case cur.Y < target.Y:
		cur.Y++
	case cur.Y > target.Y:
		cur.Y--
	}
	return cur
}

// Path returns every location visited walking from a to b with Step, excluding a.
func Path(a, b models.Location) []models.Location {
	out := make([]models.Location, 0, Manhattan(a, b))
	for a != b {
		a = Step(a, b)
		out = append(out, a)
	}
	return out
}
