// Package gridfile reads the card-based grid description format: one card
// per line, KEY=value fields, "*" comments and "+" continuation lines.
package gridfile

import (
	"bufio"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/gridsolve/faultcalc/pkg/network"
)

var unitMap = map[string]float64{
	"T": 1e12, "G": 1e9, "meg": 1e6, "M": 1e6,
	"k": 1e3, "K": 1e3, "m": 1e-3, "u": 1e-6, "n": 1e-9,
}

var valueRe = regexp.MustCompile(`^([-+]?\d*\.?\d+(?:[eE][-+]?\d+)?)(meg|[TGMKkmun])?$`)

// ParseValue converts a numeric field with an optional engineering suffix.
func ParseValue(val string) (float64, error) {
	matches := valueRe.FindStringSubmatch(strings.TrimSpace(val))
	if matches == nil {
		return 0, fmt.Errorf("invalid value format: %s", val)
	}
	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, err
	}
	if matches[2] != "" {
		num *= unitMap[matches[2]]
	}
	return num, nil
}

// ParseComplex converts "a", "a+bj" or "a-bj".
func ParseComplex(val string) (complex128, error) {
	s := strings.TrimSpace(val)
	if !strings.HasSuffix(s, "j") {
		re, err := ParseValue(s)
		return complex(re, 0), err
	}
	s = strings.TrimSuffix(s, "j")
	split := -1
	for i := 1; i < len(s); i++ {
		if (s[i] == '+' || s[i] == '-') && s[i-1] != 'e' && s[i-1] != 'E' {
			split = i
		}
	}
	if split < 0 {
		im, err := ParseValue(s)
		return complex(0, im), err
	}
	re, err := ParseValue(s[:split])
	if err != nil {
		return 0, err
	}
	im, err := ParseValue(s[split:])
	if err != nil {
		return 0, err
	}
	return complex(re, im), nil
}

type card struct {
	keyword string
	name    string
	fields  map[string]string
	flags   map[string]bool
	line    int
}

func (c *card) value(key string, def float64) (float64, error) {
	raw, ok := c.fields[key]
	if !ok {
		return def, nil
	}
	v, err := ParseValue(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", key, err)
	}
	return v, nil
}

func (c *card) complexValue(key string) (complex128, error) {
	raw, ok := c.fields[key]
	if !ok {
		return 0, nil
	}
	v, err := ParseComplex(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", key, err)
	}
	return v, nil
}

// Parse reads a grid description and returns the snapshot plus the fault
// card, if one is present. The first line is the case title.
func Parse(input string) (*network.Snapshot, *network.FaultSpec, error) {
	scanner := bufio.NewScanner(strings.NewReader(input))
	snap := &network.Snapshot{Sbase: 100.0}

	lineNo := 0
	if scanner.Scan() {
		lineNo++
		snap.Name = strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "*"))
	}

	busIndex := make(map[string]int)
	var spec *network.FaultSpec

	var currentLine string
	currentStart := 0

	flush := func() error {
		if currentLine == "" {
			return nil
		}
		err := parseCard(snap, busIndex, &spec, currentLine, currentStart)
		currentLine = ""
		return err
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if idx := strings.Index(line, "*"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if len(line) == 0 {
			if err := flush(); err != nil {
				return nil, nil, err
			}
			continue
		}

		if strings.HasPrefix(line, "+") {
			if currentLine == "" {
				return nil, nil, fmt.Errorf("line %d: continuation without a card", lineNo)
			}
			currentLine += " " + strings.TrimSpace(strings.TrimPrefix(line, "+"))
			continue
		}

		if err := flush(); err != nil {
			return nil, nil, err
		}
		currentLine = line
		currentStart = lineNo
	}
	if err := flush(); err != nil {
		return nil, nil, err
	}

	if len(snap.Buses) == 0 {
		return nil, nil, fmt.Errorf("grid description has no buses")
	}
	return snap, spec, nil
}

func parseCard(snap *network.Snapshot, busIndex map[string]int,
	spec **network.FaultSpec, line string, lineNo int,
) error {
	c, err := splitCard(line, lineNo)
	if err != nil {
		return fmt.Errorf("line %d: %v", lineNo, err)
	}

	switch c.keyword {
	case "SBASE":
		v, err := ParseValue(c.name)
		if err != nil || v <= 0 {
			return fmt.Errorf("line %d: invalid SBASE %q", lineNo, c.name)
		}
		snap.Sbase = v
		return nil
	case "BUS":
		err = parseBus(snap, busIndex, c)
	case "BRANCH":
		err = parseBranch(snap, busIndex, c)
	case "GEN", "BATTERY":
		err = parseMachine(snap, busIndex, c)
	case "LOAD":
		err = parseLoad(snap, busIndex, c)
	case "SHUNT":
		err = parseShunt(snap, busIndex, c)
	case "FAULT":
		err = parseFault(snap, busIndex, spec, c)
	default:
		err = fmt.Errorf("unknown card %q", c.keyword)
	}
	if err != nil {
		return fmt.Errorf("line %d: %v", lineNo, err)
	}
	return nil
}

func splitCard(line string, lineNo int) (*card, error) {
	fields := strings.Fields(line)
	c := &card{
		keyword: strings.ToUpper(fields[0]),
		fields:  make(map[string]string),
		flags:   make(map[string]bool),
		line:    lineNo,
	}
	for _, f := range fields[1:] {
		if eq := strings.Index(f, "="); eq >= 0 {
			key := strings.ToUpper(f[:eq])
			if _, dup := c.fields[key]; dup {
				return nil, fmt.Errorf("duplicate field %s", key)
			}
			c.fields[key] = f[eq+1:]
			continue
		}
		if c.name == "" && len(c.flags) == 0 {
			c.name = f
			continue
		}
		c.flags[strings.ToUpper(f)] = true
	}
	return c, nil
}

func (c *card) bus(busIndex map[string]int, key string) (int, error) {
	name, ok := c.fields[key]
	if !ok {
		return 0, fmt.Errorf("missing %s field", key)
	}
	idx, ok := busIndex[name]
	if !ok {
		return 0, fmt.Errorf("unknown bus %q", name)
	}
	return idx, nil
}

func parseBus(snap *network.Snapshot, busIndex map[string]int, c *card) error {
	if c.name == "" {
		return fmt.Errorf("bus card without a name")
	}
	if _, dup := busIndex[c.name]; dup {
		return fmt.Errorf("duplicate bus %q", c.name)
	}
	vnom, err := c.value("VNOM", 0)
	if err != nil {
		return err
	}
	rf, err := c.value("RF", 0)
	if err != nil {
		return err
	}
	xf, err := c.value("XF", 0)
	if err != nil {
		return err
	}
	busIndex[c.name] = len(snap.Buses)
	snap.Buses = append(snap.Buses, network.Bus{
		Name:  c.name,
		Vnom:  vnom,
		Zf:    complex(rf, xf),
		Slack: c.flags["SLACK"],
	})
	return nil
}

func parseBranch(snap *network.Snapshot, busIndex map[string]int, c *card) error {
	from, err := c.bus(busIndex, "FROM")
	if err != nil {
		return err
	}
	to, err := c.bus(busIndex, "TO")
	if err != nil {
		return err
	}

	br := network.Branch{
		Name:      c.name,
		From:      from,
		To:        to,
		TapModule: 1.0,
		VtapF:     1.0,
		VtapT:     1.0,
		Conn:      network.ConnGG,
		Active:    !c.flags["OFF"],
	}

	scalars := []struct {
		key string
		dst *float64
		def float64
	}{
		{"R", &br.R, 0}, {"X", &br.X, 0}, {"G", &br.G, 0}, {"B", &br.B, 0},
		{"R0", &br.R0, 0}, {"X0", &br.X0, 0}, {"G0", &br.G0, 0}, {"B0", &br.B0, 0},
		{"R2", &br.R2, 0}, {"X2", &br.X2, 0}, {"G2", &br.G2, 0}, {"B2", &br.B2, 0},
		{"TAP", &br.TapModule, 1.0},
		{"VTAPF", &br.VtapF, 1.0}, {"VTAPT", &br.VtapT, 1.0},
		{"RATE", &br.Rate, 0},
	}
	for _, sc := range scalars {
		if *sc.dst, err = c.value(sc.key, sc.def); err != nil {
			return err
		}
	}

	// negative-sequence series defaults to the positive-sequence values
	if _, ok := c.fields["R2"]; !ok {
		br.R2 = br.R
	}
	if _, ok := c.fields["X2"]; !ok {
		br.X2 = br.X
	}

	angleDeg, err := c.value("ANGLE", 0)
	if err != nil {
		return err
	}
	br.TapAngle = angleDeg * math.Pi / 180.0

	if raw, ok := c.fields["CONN"]; ok {
		if br.Conn, err = network.ParseWindingConnection(raw); err != nil {
			return err
		}
	}

	snap.Branches = append(snap.Branches, br)
	return nil
}

func parseMachine(snap *network.Snapshot, busIndex map[string]int, c *card) error {
	bus, err := c.bus(busIndex, "BUS")
	if err != nil {
		return err
	}
	m := network.Machine{
		Name:   c.name,
		Bus:    bus,
		Vset:   1.0,
		Active: !c.flags["OFF"],
	}
	scalars := []struct {
		key string
		dst *float64
		def float64
	}{
		{"P", &m.P, 0}, {"Q", &m.Q, 0}, {"VSET", &m.Vset, 1.0},
		{"R1", &m.R1, 0}, {"X1", &m.X1, 0},
		{"R0", &m.R0, 0}, {"X0", &m.X0, 0},
		{"R2", &m.R2, 0}, {"X2", &m.X2, 0},
	}
	for _, sc := range scalars {
		if *sc.dst, err = c.value(sc.key, sc.def); err != nil {
			return err
		}
	}

	if c.keyword == "BATTERY" {
		snap.Batteries = append(snap.Batteries, m)
	} else {
		snap.Generators = append(snap.Generators, m)
	}
	return nil
}

func parseLoad(snap *network.Snapshot, busIndex map[string]int, c *card) error {
	bus, err := c.bus(busIndex, "BUS")
	if err != nil {
		return err
	}
	ld := network.Load{
		Name:   c.name,
		Bus:    bus,
		Active: !c.flags["OFF"],
	}

	groups := []struct {
		keys [3]string
		dst  *[3]complex128
	}{
		{[3]string{"SA", "SB", "SC"}, &ld.SStar},
		{[3]string{"SAB", "SBC", "SCA"}, &ld.SDelta},
		{[3]string{"IA", "IB", "IC"}, &ld.IStar},
		{[3]string{"IAB", "IBC", "ICA"}, &ld.IDelta},
		{[3]string{"YA", "YB", "YC"}, &ld.YStar},
		{[3]string{"YAB", "YBC", "YCA"}, &ld.YDelta},
	}
	for _, g := range groups {
		for p, key := range g.keys {
			if g.dst[p], err = c.complexValue(key); err != nil {
				return err
			}
		}
	}

	// "S=" spreads a balanced three-phase demand over the star phases
	if raw, ok := c.fields["S"]; ok {
		total, err := ParseComplex(raw)
		if err != nil {
			return fmt.Errorf("S: %v", err)
		}
		for p := 0; p < 3; p++ {
			ld.SStar[p] += total / 3.0
		}
	}

	snap.Loads = append(snap.Loads, ld)
	return nil
}

func parseShunt(snap *network.Snapshot, busIndex map[string]int, c *card) error {
	bus, err := c.bus(busIndex, "BUS")
	if err != nil {
		return err
	}
	sh := network.Shunt{
		Name:   c.name,
		Bus:    bus,
		Active: !c.flags["OFF"],
	}
	if sh.G, err = c.value("G", 0); err != nil {
		return err
	}
	if sh.B, err = c.value("B", 0); err != nil {
		return err
	}
	snap.Shunts = append(snap.Shunts, sh)
	return nil
}

func parseFault(snap *network.Snapshot, busIndex map[string]int,
	spec **network.FaultSpec, c *card,
) error {
	if *spec != nil {
		return fmt.Errorf("more than one FAULT card")
	}
	bus, err := c.bus(busIndex, "BUS")
	if err != nil {
		return err
	}

	f := &network.FaultSpec{Bus: bus, Type: network.FaultPH3, Phases: network.PhaseABC}
	if raw, ok := c.fields["TYPE"]; ok {
		if f.Type, err = network.ParseFaultType(raw); err != nil {
			return err
		}
	}
	if raw, ok := c.fields["PHASES"]; ok {
		if f.Phases, err = network.ParsePhaseSelection(raw); err != nil {
			return err
		}
	}
	rf, err := c.value("RF", 0)
	if err != nil {
		return err
	}
	xf, err := c.value("XF", 0)
	if err != nil {
		return err
	}
	f.Zf = complex(rf, xf)

	*spec = f
	return nil
}
