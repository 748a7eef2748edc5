package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"thinkstudio/internal/catalog"
	"thinkstudio/internal/config"
	"thinkstudio/internal/diagnostic"
	"thinkstudio/internal/guide"
	"thinkstudio/internal/ledger"
	"thinkstudio/internal/linkcheck"
	"thinkstudio/internal/tension"
)

// --- catalog ---

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse and search the strategy catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog records",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCatalogQuery(cmd, "")
	},
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCatalogQuery(cmd, args[0])
	},
}

// catalogQueryParams turns the shared catalog filter flags into query
// parameters understood by /catalog and /catalog/export.csv.
func catalogQueryParams(cmd *cobra.Command, query string) []string {
	params := []string{}
	if query != "" {
		params = append(params, "q="+url.QueryEscape(query))
	}
	for _, flag := range []string{"country", "org-type", "scope", "archetype"} {
		vals, _ := cmd.Flags().GetStringSlice(flag)
		name := strings.ReplaceAll(flag, "-", "_")
		for _, v := range vals {
			params = append(params, name+"="+url.QueryEscape(v))
		}
	}
	if y, _ := cmd.Flags().GetInt("year-min"); y > 0 {
		params = append(params, fmt.Sprintf("year_min=%d", y))
	}
	if y, _ := cmd.Flags().GetInt("year-max"); y > 0 {
		params = append(params, fmt.Sprintf("year_max=%d", y))
	}
	return params
}

func runCatalogQuery(cmd *cobra.Command, query string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	path := "/catalog"
	if params := catalogQueryParams(cmd, query); len(params) > 0 {
		path += "?" + strings.Join(params, "&")
	}

	resp, err := client.get(cmd.Context(), path)
	if err != nil {
		return err
	}
	var records []catalog.Record
	if err := decodeJSON(resp, &records); err != nil {
		return err
	}

	if len(records) == 0 {
		printWarning("No records matched")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tYEAR\tORGANISATION\tTITLE")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.ID, r.Year, r.Organisation, r.Title)
	}
	return w.Flush()
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one catalog record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/catalog/"+args[0])
		if err != nil {
			return err
		}
		var rec catalog.Record
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}

		fmt.Printf("%s\n", colorize(colorBold, rec.Title))
		printStatus("Organisation", "%s (%s)", rec.Organisation, rec.OrgType)
		printStatus("Country", "%s", rec.Country)
		printStatus("Year", "%d", rec.Year)
		printStatus("Scope", "%s", rec.Scope)
		printStatus("Archetypes", "%s", strings.Join(rec.Archetypes, ", "))
		printStatus("Link", "%s", rec.URL)
		if rec.Summary != "" {
			fmt.Printf("\n%s\n", rec.Summary)
		}
		return nil
	},
}

var catalogStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog KPI snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/catalog/stats")
		if err != nil {
			return err
		}
		var stats catalog.Stats
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		printStatus("Records", "%d", stats.Records)
		printStatus("Org types", "%d", stats.OrgTypes)
		printStatus("Countries", "%d", stats.Countries)
		printStatus("Years", "%d to %d", stats.YearMin, stats.YearMax)
		for a, n := range stats.Archetypes {
			printStatus("  "+a, "%d", n)
		}
		return nil
	},
}

var catalogExportCmd = &cobra.Command{
	Use:   "export [query]",
	Short: "Export matching catalog records as CSV",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) == 1 {
			query = args[0]
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/catalog/export.csv"
		if params := catalogQueryParams(cmd, query); len(params) > 0 {
			path += "?" + strings.Join(params, "&")
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		return streamCSV(resp, output)
	},
}

var catalogCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that catalog links still resolve",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		var store *catalog.Store
		if cfg.Catalog.Path != "" {
			store, err = catalog.Load(cfg.Catalog.Path)
		} else {
			store, err = catalog.LoadEmbedded()
		}
		if err != nil {
			return err
		}

		printStep("Checking %d links...", store.Len())
		results := linkcheck.NewChecker().Check(cmd.Context(), store.All())

		broken := 0
		for _, res := range results {
			if res.OK() {
				title := res.Title
				if title == "" {
					title = res.URL
				}
				printSuccess("%s (%d) %s", res.ID, res.Status, title)
				continue
			}
			broken++
			if res.Error != "" {
				printError("%s %s: %s", res.ID, res.URL, res.Error)
			} else {
				printError("%s %s: HTTP %d", res.ID, res.URL, res.Status)
			}
		}
		if broken > 0 {
			return fmt.Errorf("%d of %d links broken", broken, len(results))
		}
		printSuccess("All %d links resolve", len(results))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{catalogListCmd, catalogSearchCmd, catalogExportCmd} {
		c.Flags().StringSlice("country", nil, "filter by country (repeatable)")
		c.Flags().StringSlice("org-type", nil, "filter by organisation type (repeatable)")
		c.Flags().StringSlice("scope", nil, "filter by scope (repeatable)")
		c.Flags().StringSlice("archetype", nil, "require an archetype tag (repeatable)")
		c.Flags().Int("year-min", 0, "earliest publication year")
		c.Flags().Int("year-max", 0, "latest publication year")
	}
	catalogExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogSearchCmd)
	catalogCmd.AddCommand(catalogShowCmd)
	catalogCmd.AddCommand(catalogStatsCmd)
	catalogCmd.AddCommand(catalogExportCmd)
	catalogCmd.AddCommand(catalogCheckCmd)
}

// --- diagnose ---

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Self-assess data maturity",
}

var diagnoseScoreCmd = &cobra.Command{
	Use:   "score <theme> <prompt-id> <score>",
	Short: "Record a maturity score (1-5) for a prompt",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("score must be an integer 1-5: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := sessionPath("/diagnostic/" + url.PathEscape(args[0]) + "/" + url.PathEscape(args[1]))
		resp, err := client.put(cmd.Context(), path, map[string]int{"score": score})
		if err != nil {
			return err
		}
		var summary diagnostic.Summary
		if err := decodeJSON(resp, &summary); err != nil {
			return err
		}

		printSuccess("Recorded %s/%s = %d", args[0], args[1], score)
		printThemeSummary(summary)
		return nil
	},
}

var diagnoseSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the per-theme maturity summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), sessionPath("/diagnostic"))
		if err != nil {
			return err
		}
		var summaries []diagnostic.Summary
		if err := decodeJSON(resp, &summaries); err != nil {
			return err
		}

		for _, s := range summaries {
			printThemeSummary(s)
		}
		return nil
	},
}

func printThemeSummary(s diagnostic.Summary) {
	if s.Mean == nil {
		printStatus(s.Theme, "no data (%d/%d answered)", s.CountAnswered, s.CountTotal)
		return
	}
	printStatus(s.Theme, "%.1f %s (%d/%d answered)", *s.Mean, s.Level, s.CountAnswered, s.CountTotal)
}

func init() {
	diagnoseCmd.AddCommand(diagnoseScoreCmd)
	diagnoseCmd.AddCommand(diagnoseSummaryCmd)
}

// --- lenses ---

var lensesCmd = &cobra.Command{
	Use:   "lenses",
	Short: "Map strategic tensions across the ten lenses",
}

var lensesSetCmd = &cobra.Command{
	Use:   "set <axis>",
	Short: "Set current and/or desired position (0-10) on an axis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{}
		if cmd.Flags().Changed("current") {
			v, _ := cmd.Flags().GetFloat64("current")
			body["current"] = v
		}
		if cmd.Flags().Changed("desired") {
			v, _ := cmd.Flags().GetFloat64("desired")
			body["desired"] = v
		}
		if len(body) == 0 {
			return fmt.Errorf("at least one of --current or --desired is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.put(cmd.Context(), sessionPath("/tensions/"+url.PathEscape(args[0])), body)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Updated %s", args[0])
		return nil
	},
}

var lensesGapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Show the gap between current and desired on every axis",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), sessionPath("/tensions"))
		if err != nil {
			return err
		}
		var gaps []tension.Gap
		if err := decodeJSON(resp, &gaps); err != nil {
			return err
		}

		printGaps(gaps)
		return nil
	},
}

var lensesShiftsCmd = &cobra.Command{
	Use:   "shifts",
	Short: "Show the largest moves the strategy requires",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		top, _ := cmd.Flags().GetInt("top")
		path := sessionPath("/shifts")
		if top > 0 {
			path += fmt.Sprintf("?top=%d", top)
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var shifts []tension.Gap
		if err := decodeJSON(resp, &shifts); err != nil {
			return err
		}

		printGaps(shifts)
		return nil
	},
}

func printGaps(gaps []tension.Gap) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AXIS\tCURRENT\tDESIRED\tGAP\tDIRECTION")
	for _, g := range gaps {
		fmt.Fprintf(w, "%s\t%.1f\t%.1f\t%+.1f\t%s\n", g.Axis, g.Current, g.Desired, g.Gap, g.Direction)
	}
	w.Flush()
}

func init() {
	lensesSetCmd.Flags().Float64("current", 0, "where the organisation is today (0-10)")
	lensesSetCmd.Flags().Float64("desired", 0, "where the strategy should take it (0-10)")
	lensesShiftsCmd.Flags().Int("top", 0, "number of shifts to show")
	lensesCmd.AddCommand(lensesSetCmd)
	lensesCmd.AddCommand(lensesGapsCmd)
	lensesCmd.AddCommand(lensesShiftsCmd)
}

// --- actions ---

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Track delivery actions",
}

var actionsAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add an action item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		item := map[string]any{"title": args[0]}
		if v, _ := cmd.Flags().GetString("owner"); v != "" {
			item["owner"] = v
		}
		if v, _ := cmd.Flags().GetString("theme"); v != "" {
			item["theme"] = v
		}
		if v, _ := cmd.Flags().GetString("target-date"); v != "" {
			item["target_date"] = v
		}
		if v, _ := cmd.Flags().GetString("status"); v != "" {
			item["status"] = v
		}
		if cmd.Flags().Changed("impact") {
			v, _ := cmd.Flags().GetFloat64("impact")
			item["impact_score"] = v
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), sessionPath("/actions"), item)
		if err != nil {
			return err
		}
		var created ledger.Item
		if err := decodeJSON(resp, &created); err != nil {
			return err
		}

		printSuccess("Added action %s", created.ID)
		return nil
	},
}

var actionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List action items",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		params := []string{}
		if v, _ := cmd.Flags().GetString("status"); v != "" {
			params = append(params, "status="+url.QueryEscape(v))
		}
		if v, _ := cmd.Flags().GetString("theme"); v != "" {
			params = append(params, "theme="+url.QueryEscape(v))
		}
		path := sessionPath("/actions")
		if len(params) > 0 {
			path += "?" + strings.Join(params, "&")
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var items []ledger.Item
		if err := decodeJSON(resp, &items); err != nil {
			return err
		}

		if len(items) == 0 {
			printWarning("No actions recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tTHEME\tOWNER\tTARGET\tTITLE")
		for _, item := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				item.ID, item.Status, item.Theme, item.Owner, item.TargetDate, item.Title)
		}
		return w.Flush()
	},
}

var actionsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields of an action item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch := map[string]any{}
		for flag, field := range map[string]string{
			"title": "title", "owner": "owner", "theme": "theme",
			"target-date": "target_date", "status": "status",
		} {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetString(flag)
				patch[field] = v
			}
		}
		if cmd.Flags().Changed("impact") {
			v, _ := cmd.Flags().GetFloat64("impact")
			patch["impact_score"] = v
		}
		if len(patch) == 0 {
			return fmt.Errorf("nothing to update; pass at least one field flag")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), sessionPath("/actions/"+args[0]), patch)
		if err != nil {
			return err
		}
		var item ledger.Item
		if err := decodeJSON(resp, &item); err != nil {
			return err
		}

		printSuccess("Updated action %s", item.ID)
		return nil
	},
}

var actionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an action item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), sessionPath("/actions/"+args[0]))
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted action %s", args[0])
		return nil
	},
}

var actionsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export action items as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), sessionPath("/actions/export.csv"))
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		return streamCSV(resp, output)
	},
}

// streamCSV copies a CSV response body to output, or stdout when
// output is empty.
func streamCSV(resp *http.Response, output string) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var writer io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		writer = f
	}

	if _, err := io.Copy(writer, resp.Body); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	if output != "" {
		printSuccess("Exported to %s", output)
	}
	return nil
}

var actionsImpactCmd = &cobra.Command{
	Use:   "impact",
	Short: "Show summed impact of completed actions by theme",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), sessionPath("/impact"))
		if err != nil {
			return err
		}
		var impact []ledger.ThemeImpact
		if err := decodeJSON(resp, &impact); err != nil {
			return err
		}

		if len(impact) == 0 {
			printWarning("No completed actions yet")
			return nil
		}
		for _, ti := range impact {
			theme := ti.Theme
			if theme == "" {
				theme = "(no theme)"
			}
			printStatus(theme, "%.1f across %d actions", ti.Impact, ti.Count)
		}
		return nil
	},
}

func init() {
	actionsAddCmd.Flags().String("owner", "", "who owns the action")
	actionsAddCmd.Flags().String("theme", "", "diagnostic theme the action supports")
	actionsAddCmd.Flags().String("target-date", "", "target date, YYYY-MM-DD")
	actionsAddCmd.Flags().String("status", "", "initial status (default not_started)")
	actionsAddCmd.Flags().Float64("impact", 0, "expected impact score")

	actionsListCmd.Flags().String("status", "", "filter by status")
	actionsListCmd.Flags().String("theme", "", "filter by theme")

	actionsUpdateCmd.Flags().String("title", "", "new title")
	actionsUpdateCmd.Flags().String("owner", "", "new owner")
	actionsUpdateCmd.Flags().String("theme", "", "new theme")
	actionsUpdateCmd.Flags().String("target-date", "", "new target date, YYYY-MM-DD")
	actionsUpdateCmd.Flags().String("status", "", "new status")
	actionsUpdateCmd.Flags().Float64("impact", 0, "new impact score")

	actionsExportCmd.Flags().String("output", "", "output file path (default: stdout)")

	actionsCmd.AddCommand(actionsAddCmd)
	actionsCmd.AddCommand(actionsListCmd)
	actionsCmd.AddCommand(actionsUpdateCmd)
	actionsCmd.AddCommand(actionsDeleteCmd)
	actionsCmd.AddCommand(actionsExportCmd)
	actionsCmd.AddCommand(actionsImpactCmd)
}

// --- guide ---

var guideCmd = &cobra.Command{
	Use:   "guide [path]",
	Short: "Print the user guide PDF as text",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "docs/user-guide.pdf"
		if len(args) == 1 {
			path = args[0]
		}

		text, err := guide.ExtractText(path)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
