package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"FinCast/internal/domain/models"
	"FinCast/pkg/format"
	"FinCast/pkg/util"
)

var predictCmd = &cobra.Command{
	Use:   "predict SYMBOL",
	Short: "Forecast the next session close of one instrument",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, cleanup, err := runtime()
		if err != nil {
			return err
		}
		defer cleanup()

		view, err := rt.Forecast.Forecast(cmd.Context(), util.NormalizeSymbol(args[0]))
		if err != nil {
			return fmt.Errorf("predict %s (%s): %w", args[0], models.KindOf(err), err)
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view.Record)
		}
		printForecast(cmd.OutOrStdout(), view, format.IDR)
		return nil
	},
}

func printForecast(w io.Writer, view models.ForecastView, spec format.Spec) {
	r := view.Record
	session := "closed"
	if r.SessionOpen {
		session = "open"
	}
	fmt.Fprintf(w, "%s (%s)\n", view.Name, r.Instrument)
	fmt.Fprintf(w, "  applicable date : %s (session %s)\n", r.ApplicableDate, session)
	fmt.Fprintf(w, "  predicted close : %s\n", format.Currency(r.PredictedClose, spec))
	fmt.Fprintf(w, "  reference close : %s\n", format.Currency(r.ReferenceClose, spec))
	fmt.Fprintf(w, "  change          : %s\n", format.Percent(r.PercentageChange, spec))
	fmt.Fprintf(w, "  MAPE            : %s\n", format.Percent(r.AccuracyMAPE, spec))
}

func init() {
	predictCmd.Flags().Bool("json", false, "print the raw forecast record as JSON")
	rootCmd.AddCommand(predictCmd)
}
