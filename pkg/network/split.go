package network

import "fmt"

// SplitBranch splits a branch at a per-unit distance measured from the
// "from" bus, inserting a middle bus that carries the given fault impedance.
// The original branch is deactivated and two half-branches are appended.
// Returns the index of the new middle bus.
//
//	Bus_from           Middle_bus            Bus_To
//	o----------------------o--------------------o
//	  >------ position --->|
func (s *Snapshot) SplitBranch(branch int, position, rFault, xFault float64) (int, error) {
	if branch < 0 || branch >= len(s.Branches) {
		return 0, fmt.Errorf("branch index %d out of range", branch)
	}
	if position <= 0.0 || position >= 1.0 {
		return 0, fmt.Errorf("fault position must lie strictly inside (0, 1), got %g", position)
	}

	br := &s.Branches[branch]
	br.Active = false

	mid := Bus{
		Name: fmt.Sprintf("%s@%.3g", br.Name, position),
		Vnom: s.Buses[br.From].Vnom,
		Zf:   complex(rFault, xFault),
	}
	s.Buses = append(s.Buses, mid)
	midIdx := len(s.Buses) - 1

	half := func(name string, from, to int, frac float64) Branch {
		return Branch{
			Name: name,
			From: from, To: to,
			R: br.R * frac, X: br.X * frac, B: br.B * frac,
			R0: br.R0 * frac, X0: br.X0 * frac, B0: br.B0 * frac,
			R2: br.R2 * frac, X2: br.X2 * frac, B2: br.B2 * frac,
			TapModule: 1.0, VtapF: 1.0, VtapT: 1.0,
			Rate:   br.Rate,
			Conn:   br.Conn,
			Active: true,
		}
	}

	s.Branches = append(s.Branches,
		half(br.Name+"/1", br.From, midIdx, position),
		half(br.Name+"/2", midIdx, br.To, 1.0-position),
	)

	return midIdx, nil
}
