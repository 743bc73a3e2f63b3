package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evagent/config"
	"github.com/kilianp07/evagent/core/agent"
)

var bidFlags struct {
	urgency  float64
	power    float64
	minPrice float64
	maxPrice float64
	steps    int
}

var bidCmd = &cobra.Command{
	Use:   "bid",
	Short: "Print the bid curve for an urgency ratio and charge power",
	RunE:  runBid,
}

func init() {
	f := bidCmd.Flags()
	f.Float64Var(&bidFlags.urgency, "urgency", 1, "urgency ratio")
	f.Float64Var(&bidFlags.power, "power", 6.6, "requested charge power in kW")
	f.Float64Var(&bidFlags.minPrice, "min-price", config.DefaultLocalBasis.MinimumPrice, "market basis minimum price")
	f.Float64Var(&bidFlags.maxPrice, "max-price", config.DefaultLocalBasis.MaximumPrice, "market basis maximum price")
	f.IntVar(&bidFlags.steps, "steps", config.DefaultLocalBasis.PriceSteps, "market basis price steps")
	rootCmd.AddCommand(bidCmd)
}

func runBid(cmd *cobra.Command, args []string) error {
	basis := config.DefaultLocalBasis
	basis.MinimumPrice = bidFlags.minPrice
	basis.MaximumPrice = bidFlags.maxPrice
	basis.PriceSteps = bidFlags.steps
	if err := basis.Validate(); err != nil {
		return fmt.Errorf("market basis: %w", err)
	}
	bid, ok := agent.BuildBid(basis, bidFlags.urgency, bidFlags.power)
	if !ok {
		return fmt.Errorf("no bid for urgency ratio %v", bidFlags.urgency)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "kind: %s\nthreshold: %.4f\n", bid.Kind(), bid.Threshold())
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRICE\tDEMAND_KW")
	for _, s := range bid.Steps {
		fmt.Fprintf(w, "%.4f\t%.3f\n", s.Price, s.Demand)
	}
	return w.Flush()
}
