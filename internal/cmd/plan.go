package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/3leaps/perfgate/pkg/gate"
	"github.com/3leaps/perfgate/pkg/gateconfig"
)

// printPlan displays what a run would do without contacting the service.
func printPlan(w io.Writer, s *gateconfig.Settings, cfg *gate.ThresholdConfig) {
	_, _ = fmt.Fprintln(w, "=== Gate Plan (dry-run) ===")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Build:            %s\n", cfg.Build().Label())
	_, _ = fmt.Fprintf(w, "Tests:            %s\n", gateconfig.FormatIDList(cfg.TestIDs()))
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "Thresholds:")
	if v, ok := cfg.ScoreFloor(); ok {
		_, _ = fmt.Fprintf(w, "  Score floor:    %d\n", v)
	} else {
		_, _ = fmt.Fprintln(w, "  Score floor:    (none)")
	}
	if v, ok := cfg.MaxCriticalDefects(); ok {
		_, _ = fmt.Fprintf(w, "  Max critical:   %d\n", v)
	} else {
		_, _ = fmt.Fprintln(w, "  Max critical:   (none)")
	}
	if ids := cfg.WatchedDefectIDs(); len(ids) > 0 {
		_, _ = fmt.Fprintf(w, "  Defect IDs:     %s\n", gateconfig.FormatIDList(ids))
	} else {
		_, _ = fmt.Fprintln(w, "  Defect IDs:     (none)")
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "Behavior:")
	_, _ = fmt.Fprintf(w, "  Wait for results: %s\n", yesNo(cfg.WaitForResults()))
	_, _ = fmt.Fprintf(w, "  Timeout:          %s seconds\n", strconv.Itoa(int(cfg.PollTimeout().Seconds())))
	_, _ = fmt.Fprintf(w, "  Fail on error:    %s\n", yesNo(cfg.FailOnError()))
	_, _ = fmt.Fprintf(w, "  Fail on results:  %s\n", yesNo(cfg.FailOnResults()))

	if s.Report != "" || s.Records != "" || s.MetricsTextfile != "" {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "Output:")
		if s.Report != "" {
			_, _ = fmt.Fprintf(w, "  Report:           %s\n", s.Report)
		}
		if s.Records != "" {
			_, _ = fmt.Fprintf(w, "  Records:          %s\n", s.Records)
		}
		if s.MetricsTextfile != "" {
			_, _ = fmt.Fprintf(w, "  Metrics textfile: %s\n", s.MetricsTextfile)
		}
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
