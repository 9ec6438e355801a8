package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amaizfinance/redis-rebalance/internal/checks"
	"github.com/amaizfinance/redis-rebalance/internal/config"
	"github.com/amaizfinance/redis-rebalance/internal/executor"
	"github.com/amaizfinance/redis-rebalance/internal/inventory"
	"github.com/amaizfinance/redis-rebalance/internal/logging"
	"github.com/amaizfinance/redis-rebalance/internal/planner"
	"github.com/amaizfinance/redis-rebalance/internal/rebalance"
	"github.com/amaizfinance/redis-rebalance/internal/snapshot"
	"github.com/amaizfinance/redis-rebalance/internal/topology"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

var opts config.Options

var rootCmd = &cobra.Command{
	Use:     "redis-rebalance",
	Short:   "Plan and optionally execute a Redis Cluster topology rebalance",
	Version: Version,
	RunE:    run,
}

func init() {
	flags := rootCmd.Flags()

	// connect
	flags.StringVar(&opts.Host, "host", "127.0.0.1", "address of one cluster node to query")
	flags.IntVar(&opts.Port, "port", 6379, "port of that node")
	flags.StringVar(&opts.Password, "password", "", "cluster auth password (overrides --credentials-file)")

	// optional
	flags.IntVar(&opts.PortReductionTarget, "port-reduction-target", 0, "retire masters above this port (0 disables)")
	flags.IntVar(&opts.Replicas, "replicas", 0, "desired replicas per master (inferred as floor(slaves/masters) when not given)")
	flags.Float64Var(&opts.Skew, "skew", 10, "max allowed master-count skew across groups, percent")
	flags.Float64Var(&opts.GroupSkew, "group-skew", 10, "max allowed master-count skew across subgroups, percent (DC-aware mode)")
	flags.DurationVar(&opts.InterStepTimeout, "inter-step-timeout", 90*time.Second, "pause between executed commands")
	flags.BoolVar(&opts.FixOnly, "fix-only", false, "repair defects only, skip the full balancer")
	flags.BoolVar(&opts.Force, "force", false, "skip the confirmation prompt")
	flags.BoolVar(&opts.AliveOnly, "alive-only", false, "exclude nodes flagged fail from planning")
	flags.StringVar(&opts.CredentialsFile, "credentials-file", "", "INI file with a [default] redis_password key")
	modeFlag := flags.String("mode", string(config.ModeSimple), "grouping mode: simple or dc-aware")
	flags.BoolVar(&opts.AllowMastersWithoutSlots, "allow-masters-without-slots", false, "waive the mastersWithoutSlots check")
	flags.StringVar(&opts.DatacentersFile, "datacenters-file", "", "INI file with a [datacenters] ip=datacenter[/hostname] map (required for --mode dc-aware)")

	// monitoring
	flags.BoolVar(&opts.DryRun, "dry-run", false, "print the plan without executing it")
	flags.BoolVar(&opts.NagiosShort, "nagios-short", false, "print a one-line Nagios-style status and exit")

	// debug
	flags.StringVar(&opts.SaveSnapshot, "save-snapshot", "", "write the enriched node list to this path instead of planning")
	flags.StringVar(&opts.LoadSnapshot, "load-snapshot", "", "plan against this snapshot file instead of a live cluster")

	// supplemented (§9)
	flags.BoolVar(&opts.List, "list", false, "print every node's role and group, then exit")

	verbose := flags.Bool("verbose", false, "debug-level logging")
	jsonLog := flags.Bool("json-log", false, "log in JSON instead of console format")

	cobra.OnInitialize(func() {
		level := logging.InfoLevel
		if *verbose {
			level = logging.DebugLevel
		}
		logging.Init(logging.Config{Level: level, JSON: *jsonLog})
		opts.Mode = config.Mode(*modeFlag)
	})
}

func run(cmd *cobra.Command, _ []string) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	password, err := config.ResolvePassword(opts.Password, opts.CredentialsFile)
	if err != nil {
		return err
	}
	opts.Password = password

	ctx := context.Background()
	log := logging.Default().With("host", opts.Host, "port", opts.Port)

	nodes, err := loadNodes(ctx, opts)
	if err != nil {
		return err
	}

	mode := topology.GroupByHost
	if opts.Mode == config.ModeDCAware {
		mode = topology.GroupByDatacenter
	}
	topo := topology.New(mode, nodes)

	if opts.AliveOnly {
		topo = excludeFailed(topo)
	}

	if !cmd.Flags().Changed("replicas") {
		if masters := len(topo.Masters()); masters > 0 {
			opts.Replicas = len(topo.Slaves()) / masters
		}
	}

	if opts.List {
		printList(cmd, topo)
		return nil
	}

	if opts.SaveSnapshot != "" {
		if err := snapshot.Save(opts.SaveSnapshot, topo.Nodes()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d nodes to %s\n", topo.Len(), opts.SaveSnapshot)
		return nil
	}

	result, err := rebalance.Run(topo, opts)
	if err != nil {
		if err == rebalance.ErrInfeasible {
			fmt.Fprintln(cmd.OutOrStdout(), "distribution is not feasible with the current topology and replica count")
			os.Exit(checks.Warning.ExitCode())
		}
		return err
	}

	if opts.NagiosShort {
		printNagios(cmd, result.After)
		os.Exit(result.After.Severity().ExitCode())
	}

	printReport(cmd, "before", result.Before)
	printPlan(cmd, result.Plan)
	printReport(cmd, "after", result.After)

	if result.Plan.Len() == 0 {
		os.Exit(result.After.Severity().ExitCode())
	}

	if opts.DryRun {
		os.Exit(result.After.Severity().ExitCode())
	}

	eta := time.Duration(result.Plan.Len()) * opts.InterStepTimeout
	fmt.Fprintf(cmd.OutOrStdout(), "estimated time to completion: %s\n", eta)

	if !opts.Force && !confirm(cmd) {
		fmt.Fprintln(cmd.OutOrStdout(), "aborted")
		return nil
	}

	ex, err := newExecutor(opts, topo)
	if err != nil {
		return err
	}
	defer ex.Close()

	err = executor.Apply(ctx, ex, result.Plan, opts.ExecutorPolicy(), func(s planner.Step) {
		log.Info("executing step", "step", s.String())
	})
	if err != nil {
		return err
	}

	os.Exit(result.After.Severity().ExitCode())
	return nil
}

func loadNodes(ctx context.Context, opts config.Options) ([]topology.Node, error) {
	if opts.LoadSnapshot != "" {
		return snapshot.Load(opts.LoadSnapshot)
	}
	inv, err := buildInventory(opts)
	if err != nil {
		return nil, err
	}
	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	return snapshot.Fetch(ctx, addr, opts.Password, inv)
}

// buildInventory resolves the Inventory a live fetch enriches nodes with:
// Simple in host-grouping mode, or a Static inventory loaded from
// --datacenters-file in DC-aware mode. A node whose IP is absent from that
// file still gets planned, downgraded to its own datacenter, but is logged
// so the operator notices the gap.
func buildInventory(opts config.Options) (inventory.Inventory, error) {
	if opts.Mode != config.ModeDCAware {
		return inventory.Simple{}, nil
	}
	entries, err := config.LoadDatacenters(opts.DatacentersFile)
	if err != nil {
		return nil, err
	}
	log := logging.With("component", "inventory")
	return inventory.NewStatic(entries, func(ip string) {
		log.Warn("no datacenter mapping for node, falling back to simple mode", "ip", ip)
	}), nil
}

func newExecutor(opts config.Options, topo topology.Topology) (executor.Executor, error) {
	if opts.DryRun {
		return executor.NewMemoryExecutor(topo), nil
	}
	return executor.NewRedisExecutor(opts.Password, opts.ExecutorPolicy()), nil
}

func excludeFailed(topo topology.Topology) topology.Topology {
	var kept []topology.Node
	for _, n := range topo.Nodes() {
		if !n.Has(topology.FlagFail) {
			kept = append(kept, n)
		}
	}
	return topology.New(topo.Mode(), kept)
}

func printList(cmd *cobra.Command, topo topology.Topology) {
	w := cmd.OutOrStdout()
	for _, n := range topo.Nodes() {
		role := "slave"
		if n.IsMaster() {
			role = "master"
		}
		fmt.Fprintf(w, "%-40s %-7s %-20s %s\n", n.Address(), role, topo.GroupOf(n), n.ID)
	}
}

func printReport(cmd *cobra.Command, label string, r checks.Report) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "--- %s: %s ---\n", label, r.Severity())
	if len(r.SlaveOfSlave) > 0 {
		fmt.Fprintf(w, "  slaveOfSlave: %d\n", len(r.SlaveOfSlave))
	}
	if len(r.MasterSlaveInGroup) > 0 {
		fmt.Fprintf(w, "  coLocation: %d groups\n", len(r.MasterSlaveInGroup))
	}
	if len(r.SlavesOfMasterInGroup) > 0 {
		fmt.Fprintf(w, "  replicaConcentration: %d groups\n", len(r.SlavesOfMasterInGroup))
	}
	if len(r.MasterMissingReplicas) > 0 {
		fmt.Fprintf(w, "  missingReplicas: %d masters\n", len(r.MasterMissingReplicas))
	}
	if len(r.MasterWithoutSlaves) > 0 {
		fmt.Fprintf(w, "  noReplicas: %d masters\n", len(r.MasterWithoutSlaves))
	}
	if len(r.GroupMasterSkew) > 0 {
		fmt.Fprintf(w, "  groupSkew: %d groups over threshold\n", len(r.GroupMasterSkew))
	}
	if len(r.InGroupMasterSkew) > 0 {
		fmt.Fprintf(w, "  subgroupSkew: %d groups over threshold\n", len(r.InGroupMasterSkew))
	}
	if len(r.MastersWithoutSlots) > 0 {
		fmt.Fprintf(w, "  mastersWithoutSlots: %d\n", len(r.MastersWithoutSlots))
	}
	if len(r.FailedNodes) > 0 {
		fmt.Fprintf(w, "  failedNodes: %d\n", len(r.FailedNodes))
	}
}

func printPlan(cmd *cobra.Command, plan *planner.Plan) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "--- plan: %d step(s) ---\n", plan.Len())
	for i, s := range plan.Steps {
		fmt.Fprintf(w, "%3d. %s\n", i+1, s.String())
	}
}

func printNagios(cmd *cobra.Command, r checks.Report) {
	fmt.Fprintf(cmd.OutOrStdout(), "REDIS %s\n", r.Severity())
}

func confirm(cmd *cobra.Command) bool {
	fmt.Fprint(cmd.OutOrStdout(), "apply this plan? [y/N] ")
	reader := bufio.NewReader(cmd.InOrStdin())
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}
