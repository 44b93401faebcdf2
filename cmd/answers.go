package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/spigell/autofill/internal/logger"
	"github.com/spigell/autofill/internal/tracker"
	"github.com/spigell/autofill/internal/utils"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var answersCmd = &cobra.Command{
	Use:   "answers",
	Short: "Inspect answers remembered from earlier forms",
}

var answersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remembered answers, newest first",
	Run: func(_ *cobra.Command, _ []string) {
		withTracker(func(t *tracker.Tracker) error {
			if viper.GetBool("json") {
				return writeJSON(os.Stdout, t.Entries())
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RECORDED\tPLATFORM\tSOURCE\tQUESTION\tANSWER")
			for _, e := range t.Entries() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					e.Timestamp.Format("2006-01-02 15:04"), e.Platform, e.Source,
					utils.TruncateForLog(e.Question, 60), utils.TruncateForLog(e.Answer, 60))
			}
			return tw.Flush()
		})
	},
}

var answersExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export captured question and answer pairs as json",
	Run: func(cmd *cobra.Command, _ []string) {
		out, _ := cmd.Flags().GetString("out")
		withTracker(func(t *tracker.Tracker) error {
			if out == "" {
				return writeJSON(os.Stdout, t.Export())
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			return writeJSON(f, t.Export())
		})
	},
}

func init() {
	rootCmd.AddCommand(answersCmd)
	answersCmd.AddCommand(answersListCmd, answersExportCmd)

	answersExportCmd.Flags().StringP("out", "o", "", "write the export to this file instead of stdout")
}

func withTracker(fn func(t *tracker.Tracker) error) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	t, cleanup, err := newTracker(context.Background(), config.Tracker, logger)
	if err != nil {
		logger.Fatal("opening the answer tracker", zap.Error(err))
	}
	defer cleanup()

	if err := fn(t); err != nil {
		logger.Fatal("reading answers", zap.Error(err))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
