package spatial

import (
	"testing"
)

func TestGridShape(t *testing.T) {
	cells := Grid(41.68, -82.88, 60, 180, 0, 0)
	if len(cells) != DefaultGridSize*DefaultGridSize {
		t.Fatalf("default grid = %d cells, want %d", len(cells), DefaultGridSize*DefaultGridSize)
	}

	cells = Grid(41.68, -82.88, 60, 180, 5, 0.1)
	if len(cells) != 25 {
		t.Fatalf("5x5 grid = %d cells, want 25", len(cells))
	}
	first, last := cells[0], cells[24]
	if first.Lat != 41.58 || first.Lon != -82.98 {
		t.Errorf("first corner = (%v, %v), want (41.58, -82.98)", first.Lat, first.Lon)
	}
	if last.Lat != 41.78 || last.Lon != -82.78 {
		t.Errorf("last corner = (%v, %v), want (41.78, -82.78)", last.Lat, last.Lon)
	}
}

func TestGridCenterIntensity(t *testing.T) {
	// Odd dimension puts a cell exactly on the center, where decay and
	// bias both vanish and intensity reduces to score/100.
	cells := Grid(41.68, -82.88, 80, 270, 5, 0.1)
	center := cells[2*5+2]
	if center.Lat != 41.68 || center.Lon != -82.88 {
		t.Fatalf("center cell at (%v, %v)", center.Lat, center.Lon)
	}
	if center.Intensity != 0.8 {
		t.Errorf("center intensity = %v, want 0.8", center.Intensity)
	}
}

func TestGridDownwindSkew(t *testing.T) {
	// Wind from the north drifts the bloom south: the cell half a grid
	// radius south of center outweighs its northern mirror 1.35 : 0.65.
	cells := Grid(41.68, -82.88, 100, 0, 5, 0.1)
	south := cells[1*5+2]
	north := cells[3*5+2]

	if south.Intensity != 0.6377 {
		t.Errorf("downwind intensity = %v, want 0.6377", south.Intensity)
	}
	if north.Intensity != 0.3070 {
		t.Errorf("upwind intensity = %v, want 0.3070", north.Intensity)
	}
	if south.Intensity <= north.Intensity {
		t.Errorf("no downwind skew: south %v vs north %v", south.Intensity, north.Intensity)
	}
}

func TestGridIntensityClamped(t *testing.T) {
	cells := Grid(41.68, -82.88, 100, 0, 20, 0.1)

	sawCeiling := false
	for _, c := range cells {
		if c.Intensity < 0 || c.Intensity > 1 {
			t.Fatalf("intensity %v outside [0,1] at (%v, %v)", c.Intensity, c.Lat, c.Lon)
		}
		if c.Intensity == 1 {
			sawCeiling = true
		}
	}
	// Near-center downwind cells exceed raw 1.0 at full score and must
	// land exactly on the ceiling.
	if !sawCeiling {
		t.Error("no cell clamped to 1.0 at score 100")
	}
}

func TestShoreRing(t *testing.T) {
	points := Shore(41.68, -82.88, 50, 0)
	if len(points) != ShorePoints {
		t.Fatalf("ring = %d points, want %d", len(points), ShorePoints)
	}

	north := points[0]
	if north.Lat != 41.72 || north.Lon != -82.88 {
		t.Errorf("north point = (%v, %v), want (41.72, -82.88)", north.Lat, north.Lon)
	}
	if north.Risk != 5.0 {
		t.Errorf("upwind shore risk = %v, want 5.0", north.Risk)
	}

	south := points[8]
	if south.Lat != 41.64 {
		t.Errorf("south point lat = %v, want 41.64", south.Lat)
	}
	if south.Risk != 45.0 {
		t.Errorf("downwind shore risk = %v, want 45.0", south.Risk)
	}

	east := points[4]
	if east.Risk != 25.0 {
		t.Errorf("crosswind shore risk = %v, want 25.0", east.Risk)
	}

	for i, p := range points {
		if p.Risk < 0 || p.Risk > 100 {
			t.Errorf("points[%d].Risk = %v outside [0,100]", i, p.Risk)
		}
	}
}

func TestShoreClamp(t *testing.T) {
	points := Shore(41.68, -82.88, 120, 0)
	if points[8].Risk != 100 {
		t.Errorf("downwind risk = %v, want clamped 100", points[8].Risk)
	}
}

func TestFieldBundle(t *testing.T) {
	field := Field(41.68, -82.88, 60, 225, 0, 0)
	if len(field.Cells) != DefaultGridSize*DefaultGridSize {
		t.Errorf("cells = %d, want default grid", len(field.Cells))
	}
	if len(field.Shore) != ShorePoints {
		t.Errorf("shore = %d, want %d", len(field.Shore), ShorePoints)
	}

	// An undersized dimension falls back rather than degenerating.
	if got := Grid(41.68, -82.88, 60, 0, 1, 0.1); len(got) != DefaultGridSize*DefaultGridSize {
		t.Errorf("n=1 grid = %d cells, want default fallback", len(got))
	}
}
