package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/limitx/guardian/internal/devicekey"
	"github.com/limitx/guardian/internal/ledger"
	"github.com/limitx/guardian/pkg/client"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "guardianctl",
	Short: "Guardian monitoring CLI",
	Long: `guardianctl is the command-line interface for a guardian server.

It can generate device keys, mine and verify violation chains locally, and
exercise the full REST API: sync, dashboards, statistics, reports, and
screen-time policies.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.guardian")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.guardian/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "guardian server URL (default http://localhost:8080)")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(mineCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() *client.Client {
	return client.New(serverURL)
}

// chainFile is guardianctl's on-disk chain format, shared by mine, verify,
// and sync.
type chainFile struct {
	DeviceID string         `json:"device_id"`
	Blocks   []ledger.Block `json:"blocks"`
}

func readChainFile(path string) (*chainFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chain file: %w", err)
	}
	var cf chainFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse chain file %q: %w", path, err)
	}
	return &cf, nil
}

// ── keygen ───────────────────────────────────────────────────────────────────

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new device key",
	Long: `Keygen prints a freshly generated device key: 18 segments of 8 hex
characters joined by dashes. Install the key on the device and use it with
every other command.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		segments := make([]string, devicekey.SegmentCount)
		buf := make([]byte, 4)
		for i := range segments {
			if _, err := rand.Read(buf); err != nil {
				return fmt.Errorf("generate key material: %w", err)
			}
			segments[i] = fmt.Sprintf("%02x%02x%02x%02x", buf[0], buf[1], buf[2], buf[3])
		}
		fmt.Println(strings.Join(segments, "-"))
		return nil
	},
}

// ── mine ─────────────────────────────────────────────────────────────────────

var (
	mineDeviceID   string
	mineDifficulty int
	mineOut        string
)

var mineCmd = &cobra.Command{
	Use:   "mine <events.json>",
	Short: "Mine a violation chain from an events file",
	Long: `Mine reads a JSON array of events and produces a complete chain,
genesis block included, with proof of work at the requested difficulty:

  [
    {"app_name": "TikTok", "keyword": "gambling", "timestamp": 1700000000000},
    {"app_name": "Chrome", "keyword": "violence"}
  ]

Events without a timestamp are stamped at mining time. The chain is written
as JSON to --out, or stdout when --out is empty.`,
	Args: cobra.ExactArgs(1),
	RunE: runMine,
}

func init() {
	mineCmd.Flags().StringVar(&mineDeviceID, "device-id", "guardianctl", "Device identifier recorded in each block")
	mineCmd.Flags().IntVar(&mineDifficulty, "difficulty", ledger.DefaultDifficulty, "Proof-of-work difficulty (leading zero hex digits)")
	mineCmd.Flags().StringVar(&mineOut, "out", "", "Output file (default stdout)")
}

type mineEvent struct {
	AppName   string `json:"app_name"`
	Keyword   string `json:"keyword"`
	Timestamp int64  `json:"timestamp"`
}

func runMine(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read events file: %w", err)
	}
	var events []mineEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("parse events file %q: %w", args[0], err)
	}

	miner := ledger.NewMiner(mineDifficulty)
	chain := []ledger.Block{miner.Mine(nil, mineDeviceID, "SYSTEM", "GENESIS", time.Now().UnixMilli())}
	for _, ev := range events {
		ts := ev.Timestamp
		if ts == 0 {
			ts = time.Now().UnixMilli()
		}
		prev := &chain[len(chain)-1]
		chain = append(chain, miner.Mine(prev, mineDeviceID, ev.AppName, ev.Keyword, ts))
	}

	out, err := json.MarshalIndent(chainFile{DeviceID: mineDeviceID, Blocks: chain}, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')
	if mineOut == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(mineOut, out, 0o644); err != nil {
		return fmt.Errorf("write chain file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "mined %d blocks into %s\n", len(chain), mineOut)
	return nil
}

// ── verify ───────────────────────────────────────────────────────────────────

var (
	verifyFile       string
	verifyDifficulty int
)

var verifyCmd = &cobra.Command{
	Use:   "verify [device-key]",
	Short: "Verify a chain locally or on the server",
	Long: `Verify checks chain integrity.

With --file it verifies a local chain file without contacting a server.
With a device key argument it asks the server to re-verify its stored copy:

  guardianctl verify --file chain.json
  guardianctl verify 0a1b2c3d-...-0a1b2c3d`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyFile, "file", "", "Verify this local chain file instead of a server-side chain")
	verifyCmd.Flags().IntVar(&verifyDifficulty, "difficulty", ledger.DefaultDifficulty, "Expected proof-of-work difficulty for --file verification")
}

func runVerify(cmd *cobra.Command, args []string) error {
	if verifyFile != "" {
		cf, err := readChainFile(verifyFile)
		if err != nil {
			return err
		}
		verifier := ledger.NewVerifier(verifyDifficulty)
		if err := verifier.Verify(cf.Blocks); err != nil {
			var integrityErr *ledger.IntegrityError
			if errors.As(err, &integrityErr) {
				return fmt.Errorf("chain INVALID: %s at block %d", integrityErr.Code, integrityErr.Index)
			}
			return err
		}
		fmt.Printf("chain OK: %d blocks\n", len(cf.Blocks))
		return nil
	}

	if len(args) != 1 {
		return errors.New("provide a device key, or --file for local verification")
	}
	result, err := newClient().Verify(context.Background(), args[0])
	if err != nil {
		return err
	}
	if result.Valid {
		fmt.Printf("chain OK: %d blocks\n", result.TotalBlocks)
		return nil
	}
	return fmt.Errorf("chain INVALID: %s at block %d", result.FailureCode, result.FailedIndex)
}

// ── sync ─────────────────────────────────────────────────────────────────────

var (
	syncKey     string
	syncVersion string
)

var syncCmd = &cobra.Command{
	Use:   "sync <chain.json>",
	Short: "Submit a chain file to the server",
	Args:  cobra.ExactArgs(1),
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncKey, "key", "", "Device key (required)")
	syncCmd.Flags().StringVar(&syncVersion, "client-version", "guardianctl/"+version, "Client version reported to the server")
	_ = syncCmd.MarkFlagRequired("key")
}

func runSync(cmd *cobra.Command, args []string) error {
	cf, err := readChainFile(args[0])
	if err != nil {
		return err
	}

	blocks := make([]client.Block, len(cf.Blocks))
	for i, b := range cf.Blocks {
		blocks[i] = client.Block{
			Index:        b.Index,
			DeviceID:     b.DeviceID,
			AppName:      b.AppName,
			Keyword:      b.Keyword,
			Timestamp:    b.Timestamp,
			PreviousHash: b.PreviousHash,
			Hash:         b.Hash,
			Nonce:        b.Nonce,
		}
	}

	result, err := newClient().Sync(context.Background(), &client.SyncRequest{
		DeviceKey: syncKey,
		Ledger: client.LedgerPayload{
			DeviceID: cf.DeviceID,
			Blocks:   blocks,
		},
		ClientVersion: syncVersion,
	})
	if err != nil {
		return err
	}
	fmt.Printf("synced: %d violations accepted at %s\n",
		result.ViolationsCount, result.Timestamp.Format(time.RFC3339))
	return nil
}

// ── dashboard ────────────────────────────────────────────────────────────────

var dashboardFormat string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard <device-key>",
	Short: "Show recent violations for a device",
	Args:  cobra.ExactArgs(1),
	RunE:  runDashboard,
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardFormat, "format", "text", "Output format: text or json")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	dash, err := newClient().Dashboard(context.Background(), args[0])
	if err != nil {
		return err
	}
	if dashboardFormat == "json" {
		return printJSON(dash)
	}

	fmt.Printf("Device:     %s\n", dash.DeviceID)
	fmt.Printf("Violations: %d\n", dash.TotalViolations)
	fmt.Printf("Last sync:  %s\n", dash.LastSync.Format(time.RFC3339))
	intact := "yes"
	if !dash.ChainIntact {
		intact = "NO - stored chain fails verification"
	}
	fmt.Printf("Intact:     %s\n\n", intact)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tAPP\tKEYWORD")
	for _, v := range dash.Violations {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", v.ID, v.Date, v.AppName, v.Keyword)
	}
	return w.Flush()
}

// ── stats ────────────────────────────────────────────────────────────────────

var statsFormat string

var statsCmd = &cobra.Command{
	Use:   "stats <device-key>",
	Short: "Show per-app and per-keyword counters for a device",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", "text", "Output format: text or json")
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := newClient().Stats(context.Background(), args[0])
	if err != nil {
		return err
	}
	if statsFormat == "json" {
		return printJSON(stats)
	}

	fmt.Printf("Total violations: %d\n\n", stats.TotalViolations)
	printBreakdown("APP", stats.AppBreakdown)
	fmt.Println()
	printBreakdown("KEYWORD", stats.KeywordBreakdown)
	return nil
}

func printBreakdown(header string, counts map[string]int) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tCOUNT\n", header)
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%d\n", name, counts[name])
	}
	w.Flush()
}

// ── report ───────────────────────────────────────────────────────────────────

var reportGenerate bool

var reportCmd = &cobra.Command{
	Use:   "report <device-key>",
	Short: "Fetch or generate a narrative report",
	Long: `Report prints the latest stored narrative report as JSON. With
--generate it asks the server to build a fresh one first.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportGenerate, "generate", false, "Generate a new report instead of fetching the latest")
}

func runReport(cmd *cobra.Command, args []string) error {
	c := newClient()
	ctx := context.Background()

	var report *client.Report
	var err error
	if reportGenerate {
		report, err = c.GenerateReport(ctx, args[0])
	} else {
		report, err = c.LatestReport(ctx, args[0])
	}
	if err != nil {
		return err
	}
	return printJSON(report.Raw)
}

// ── policy ───────────────────────────────────────────────────────────────────

var (
	policyDaily   int
	policyWeekend int
	policyBedtime string
)

var policyCmd = &cobra.Command{
	Use:   "policy <device-key>",
	Short: "Show or update the screen-time policy",
	Long: `Policy prints the current policy and its history. Supplying any of
--daily, --weekend, or --bedtime appends a new policy version built from the
current one plus the given overrides.`,
	Args: cobra.ExactArgs(1),
	RunE: runPolicy,
}

func init() {
	policyCmd.Flags().IntVar(&policyDaily, "daily", -1, "Daily screen-time limit in minutes")
	policyCmd.Flags().IntVar(&policyWeekend, "weekend", -1, "Weekend screen-time limit in minutes")
	policyCmd.Flags().StringVar(&policyBedtime, "bedtime", "", "Bedtime in HH:MM")
}

func runPolicy(cmd *cobra.Command, args []string) error {
	c := newClient()
	ctx := context.Background()

	view, err := c.Policy(ctx, args[0])
	if err != nil {
		return err
	}

	if policyDaily < 0 && policyWeekend < 0 && policyBedtime == "" {
		return printJSON(view)
	}

	next := view.CurrentPolicy
	next.ID = 0
	if policyDaily >= 0 {
		next.DailyLimitMinutes = policyDaily
	}
	if policyWeekend >= 0 {
		next.WeekendLimitMinutes = policyWeekend
	}
	if policyBedtime != "" {
		next.Bedtime = policyBedtime
	}
	if err := c.SetPolicy(ctx, args[0], &next); err != nil {
		return err
	}
	fmt.Printf("policy updated: %d min daily, %d min weekend, bedtime %s\n",
		next.DailyLimitMinutes, next.WeekendLimitMinutes, next.Bedtime)
	return nil
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print guardianctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("guardianctl %s\n", version)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
