package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"FinCast/internal/domain/models"
	"FinCast/pkg/util"
)

var trainCmd = &cobra.Command{
	Use:   "train [SYMBOL...]",
	Short: "Train instrument models",
	Long:  "Fetch a year of history and (re)train the model of each given symbol, or of every catalog instrument when none is given",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, cleanup, err := runtime()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := cmd.Context()
		var reports []models.TrainingReport
		if len(args) == 0 {
			reports, err = rt.Trainer.TrainAll(ctx)
		} else {
			var errs []error
			for _, arg := range args {
				rep, terr := rt.Trainer.TrainInstrument(ctx, util.NormalizeSymbol(arg))
				if terr != nil {
					errs = append(errs, terr)
					continue
				}
				reports = append(reports, rep)
			}
			err = errors.Join(errs...)
		}

		printReports(cmd.OutOrStdout(), reports)
		if err != nil {
			return fmt.Errorf("training finished with errors: %w", err)
		}
		return nil
	},
}

func printReports(w io.Writer, reports []models.TrainingReport) {
	fmt.Fprintf(w, "%-10s %-9s %-7s %-8s %-10s %s\n", "Symbol", "Examples", "Train", "Holdout", "MAPE", "Artifact")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, r := range reports {
		mape := "-"
		if r.HoldoutMAPE != nil {
			mape = fmt.Sprintf("%.2f%%", *r.HoldoutMAPE)
		}
		fmt.Fprintf(w, "%-10s %-9d %-7d %-8d %-10s %s\n",
			r.Instrument, r.Examples, r.TrainExamples, r.HoldoutExamples, mape, r.ArtifactID)
	}
	fmt.Fprintf(w, "\n%d model(s) trained\n", len(reports))
}

func init() {
	rootCmd.AddCommand(trainCmd)
}
