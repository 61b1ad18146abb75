package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yanizio/agriportal/internal/calendar"
	"github.com/yanizio/agriportal/internal/form"
)

// errInvalid makes the process exit non-zero after the report is printed.
var errInvalid = errors.New("submission rejected")

/*──────────────────────────── check ───────────────────────────────────────*/

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load every definition and list them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := opts.registry()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFIELDS\tENCODING\tENDPOINT")
			for _, id := range reg.IDs() {
				d, _ := reg.Get(id)
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", d.ID, len(d.Fields), d.Encoding, d.Endpoint)
			}
			return tw.Flush()
		},
	}
}

/*──────────────────────────── validate ────────────────────────────────────*/

func newValidateCmd(opts *options) *cobra.Command {
	var (
		sets []string
		year int
	)
	cmd := &cobra.Command{
		Use:   "validate <form-id>",
		Short: "Validate values against a form without submitting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := opts.definition(args[0])
			if err != nil {
				return err
			}
			vals, err := parseSets(sets)
			if err != nil {
				return err
			}
			anchor := form.AnchorAt(time.Now())
			if year > 0 {
				anchor = form.Anchor{Year: year}
			}

			res := form.Validate(vals, def.Fields, anchor)
			out := cmd.OutOrStdout()
			if !res.Valid() {
				printErrors(out, res)
				return errInvalid
			}
			return printJSON(out, form.Payload(vals, def.Fields))
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field value as name=value (repeatable)")
	cmd.Flags().IntVar(&year, "year", 0, "anchor year for year-relative bounds (default: this year)")
	return cmd
}

/*──────────────────────────── submit ──────────────────────────────────────*/

func newSubmitCmd(opts *options) *cobra.Command {
	var (
		sets    []string
		baseURL string
		timeout time.Duration
		retries int
	)
	cmd := &cobra.Command{
		Use:   "submit <form-id>",
		Short: "Validate and submit values, printing the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := opts.definition(args[0])
			if err != nil {
				return err
			}
			vals, err := parseSets(sets)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			st := form.NewState(def)
			sub := form.NewSubmitter(form.WithTimeout(timeout), form.WithRetry(retries, 0, 0))
			ctrl := form.NewController(def, st, sub,
				form.WithBaseURL(baseURL),
				form.WithTransitionHook(func(from, to form.Phase) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s → %s\n", from, to)
				}),
			)

			att, err := ctrl.Submit(cmd.Context(), vals)
			if err != nil {
				return err
			}
			snap := st.Snapshot()
			switch att.Phase {
			case form.PhaseSuccess:
				if snap.NoticeText != "" {
					fmt.Fprintln(out, snap.NoticeText)
				}
				return printJSON(out, snap.Result)
			case form.PhaseInvalid, form.PhaseServerRejected:
				printErrors(out, att.Result)
				return errInvalid
			default:
				return fmt.Errorf("%s", snap.NoticeText)
			}
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field value as name=value (repeatable)")
	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8080", "resolves relative endpoints")
	cmd.Flags().DurationVar(&timeout, "timeout", form.DefaultSubmitTimeout, "deadline for the whole submission")
	cmd.Flags().IntVar(&retries, "retries", form.DefaultRetryMax, "retries after HTTP 429")
	return cmd
}

/*──────────────────────────── calendar ────────────────────────────────────*/

func newCalendarCmd() *cobra.Command {
	var crop, season string
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Print the crop calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rows []calendar.Row
			if season != "" {
				s := calendar.Season(season)
				if s.SowingMonths() == nil {
					return fmt.Errorf("unknown season %q", season)
				}
				for _, c := range calendar.Default.ForSeason(s) {
					rows = append(rows, c.Row())
				}
			} else {
				rows = calendar.Default.Rows(crop)
				if len(rows) == 0 {
					return fmt.Errorf("unknown crop %q", crop)
				}
			}
			return printCalendar(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringVar(&crop, "crop", "", `one crop, or "all"`)
	cmd.Flags().StringVar(&season, "season", "", "Kharif, Rabi, or Zaid")
	return cmd
}

var stageMark = map[calendar.Stage]string{
	calendar.StageSow:     "S",
	calendar.StageGrow:    "g",
	calendar.StageHarvest: "H",
	calendar.StageNone:    ".",
}

func printCalendar(w io.Writer, rows []calendar.Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	var head strings.Builder
	head.WriteString("CROP")
	for m := time.January; m <= time.December; m++ {
		head.WriteString("\t" + m.String()[:3])
	}
	fmt.Fprintln(tw, head.String())
	for _, r := range rows {
		line := r.Crop
		for _, s := range r.Months {
			line += "\t" + stageMark[s]
		}
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}

/*──────────────────────────── output ──────────────────────────────────────*/

func printErrors(w io.Writer, res form.Result) {
	for _, f := range res.Fields() {
		msg, _ := res.Message(f)
		fmt.Fprintf(w, "%s: %s\n", f, msg)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
