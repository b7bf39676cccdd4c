package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gridsolve/faultcalc/pkg/gridfile"
	"github.com/gridsolve/faultcalc/pkg/network"
	"github.com/gridsolve/faultcalc/pkg/shortcircuit"
	"github.com/gridsolve/faultcalc/pkg/util"
)

var rootCmd = &cobra.Command{
	Use:   "faultcalc",
	Short: "Short-circuit analysis of power networks",
	Long: `faultcalc evaluates bolted and impedance faults on a network
snapshot: balanced three-phase, symmetrical-component and direct
per-phase analysis.

The grid is described in a card file:

* three bus example
SBASE 100
BUS b1 VNOM=132 SLACK
BUS b2 VNOM=132
BRANCH l12 FROM=b1 TO=b2 R=0.01 X=0.1 RATE=50
GEN g1 BUS=b1 P=10 X1=0.1 X0=0.05 X2=0.1
LOAD d2 BUS=b2 S=9+3j
FAULT BUS=b2 TYPE=LG PHASES=a XF=0.01`,
}

var runCmd = &cobra.Command{
	Use:   "run <grid_file>",
	Short: "Evaluate one fault on a grid file",
	Args:  cobra.ExactArgs(1),
	RunE:  runStudy,
}

func init() {
	runCmd.Flags().String("method", "sequence", "analysis path: balanced, sequence or phase")
	runCmd.Flags().String("bus", "", "faulted bus (overrides the FAULT card)")
	runCmd.Flags().String("fault-type", "", "fault type: 3x, LG, LL, LLG or LLL")
	runCmd.Flags().String("phases", "", "faulted phases: a, b, c, ab, bc, ca or abc")
	runCmd.Flags().Float64("rf", 0, "fault resistance (p.u.)")
	runCmd.Flags().Float64("xf", 0, "fault reactance (p.u.)")
	runCmd.Flags().String("branch", "", "fault along a branch instead of at a bus")
	runCmd.Flags().Float64("position", 0.5, "fault position along the branch, per unit from the FROM end")

	viper.SetEnvPrefix("FAULTCALC")
	viper.AutomaticEnv()
	if err := viper.BindPFlags(runCmd.Flags()); err != nil {
		log.Fatal(err)
	}

	rootCmd.AddCommand(runCmd)
}

func runStudy(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading grid file: %v", err)
	}

	snap, spec, err := gridfile.Parse(string(content))
	if err != nil {
		return fmt.Errorf("parsing grid file: %v", err)
	}
	if spec == nil {
		spec = &network.FaultSpec{Type: network.FaultPH3, Phases: network.PhaseABC}
	}

	if err := applyOverrides(cmd, snap, spec); err != nil {
		return err
	}

	method, err := parseMethod(viper.GetString("method"))
	if err != nil {
		return err
	}

	study, err := shortcircuit.New(snap, shortcircuit.FlatStart(snap))
	if err != nil {
		return fmt.Errorf("building study: %v", err)
	}

	res, err := study.Run(*spec, method)
	if err != nil {
		return fmt.Errorf("fault evaluation: %v", err)
	}

	printResults(snap, res)
	return nil
}

func applyOverrides(cmd *cobra.Command, snap *network.Snapshot, spec *network.FaultSpec) error {
	if name := viper.GetString("bus"); name != "" {
		found := -1
		for i := range snap.Buses {
			if snap.Buses[i].Name == name {
				found = i
				break
			}
		}
		if found < 0 {
			return fmt.Errorf("unknown bus %q", name)
		}
		spec.Bus = found
	}
	if raw := viper.GetString("fault-type"); raw != "" {
		ftype, err := network.ParseFaultType(raw)
		if err != nil {
			return err
		}
		spec.Type = ftype
	}
	if raw := viper.GetString("phases"); raw != "" {
		phases, err := network.ParsePhaseSelection(raw)
		if err != nil {
			return err
		}
		spec.Phases = phases
	}
	if cmd.Flags().Changed("rf") || cmd.Flags().Changed("xf") {
		spec.Zf = complex(viper.GetFloat64("rf"), viper.GetFloat64("xf"))
	}
	if name := viper.GetString("branch"); name != "" {
		idx := -1
		for i := range snap.Branches {
			if snap.Branches[i].Name == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("unknown branch %q", name)
		}
		mid, err := snap.SplitBranch(idx, viper.GetFloat64("position"), real(spec.Zf), imag(spec.Zf))
		if err != nil {
			return err
		}
		spec.Bus = mid
	}
	return nil
}

func parseMethod(s string) (shortcircuit.Method, error) {
	switch s {
	case "balanced":
		return shortcircuit.MethodBalanced, nil
	case "sequence":
		return shortcircuit.MethodSequence, nil
	case "phase":
		return shortcircuit.MethodPhase, nil
	}
	return 0, fmt.Errorf("unknown method %q", s)
}

func printResults(snap *network.Snapshot, res *shortcircuit.Results) {
	fmt.Printf("\n%s Fault Results (%s path)\n", res.Fault.Type, res.Method)
	fmt.Println("========================================")
	fmt.Printf("Faulted bus:         %s\n", res.BusNames[res.Fault.Bus])
	fmt.Printf("Short-circuit power: %s\n", util.FormatPower(res.SCPower))
	fmt.Printf("Fault current:       %s p.u.\n", util.FormatPhasor(res.SCCurrent))
	fmt.Printf("IEC max initial I\":  %s kA\n", util.FormatMagnitude(res.MaxInitialCurrent))

	for _, w := range res.Warnings {
		fmt.Printf("warning: %s\n", w)
	}

	paths := []struct {
		label string
		pr    *shortcircuit.PathResults
	}{
		{"Sequence 0", res.Seq0},
		{"Sequence 1", res.Seq1},
		{"Sequence 2", res.Seq2},
		{"Phase A", res.PhaseA},
		{"Phase B", res.PhaseB},
		{"Phase C", res.PhaseC},
	}
	for _, p := range paths {
		if p.pr == nil {
			continue
		}
		printPath(p.label, res, p.pr)
	}
}

func printPath(label string, res *shortcircuit.Results, pr *shortcircuit.PathResults) {
	fmt.Printf("\n%s Bus Voltages:\n", label)
	for i, name := range res.BusNames {
		fmt.Printf("  V(%s) = %s\n", name, util.FormatPhasor(pr.Voltage[i]))
	}

	fmt.Printf("\n%s Branch Flows:\n", label)
	fmt.Println("  Branch         Sf                    If                  Loading")
	fmt.Println("  ------------------------------------------------------------------")
	for k, name := range res.BranchNames {
		fmt.Printf("  %-12s %s  %s  %s\n", name,
			util.FormatPower(pr.Sf[k]),
			util.FormatPhasor(pr.If[k]),
			util.FormatLoading(pr.Loading[k]))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
