// CLI client for automesh coordinator sessions.
//
// Sub-commands:
//
//	start        Start a coordinator session, print its workflow ID
//	ask          Send a user_request Update and print the reply
//	delegations  List the session's delegation log
//	history      Dump the coordinator's conversation history as JSON
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"github.com/qaforge/automesh/internal/config"
	"github.com/qaforge/automesh/internal/models"
	"github.com/qaforge/automesh/internal/temporalclient"
	"github.com/qaforge/automesh/internal/workflow"
)

var (
	replyStyle   = lipgloss.NewStyle().Bold(true)
	agentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // yellow
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // green
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4")) // blue
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		cmdStart(os.Args[2:])
	case "ask":
		cmdAsk(os.Args[2:])
	case "delegations":
		cmdDelegations(os.Args[2:])
	case "history":
		cmdHistory(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown sub-command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: client <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  start        Start a coordinator session")
	fmt.Fprintln(os.Stderr, "  ask          Send a request to a running session")
	fmt.Fprintln(os.Stderr, "  delegations  List delegated subtasks")
	fmt.Fprintln(os.Stderr, "  history      Dump conversation history as JSON")
}

func dialTemporal() client.Client {
	c, err := client.Dial(temporalclient.MustLoadClientOptions("", ""))
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	return c
}

func loadConfig(path string) *config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// cmdStart starts a new coordinator session.
func cmdStart(args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the agents YAML config")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	c := dialTemporal()
	defer c.Close()

	workflowID := fmt.Sprintf("automesh-%s", uuid.New().String()[:8])

	run, err := c.ExecuteWorkflow(context.Background(), client.StartWorkflowOptions{
		ID:                    workflowID,
		TaskQueue:             cfg.TaskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}, workflow.CoordinatorWorkflow, workflow.CoordinatorInput{
		CoordinatorID: workflowID,
		Agents:        cfg.Agents,
		Pipelines:     cfg.Pipelines,
		Toolsets:      cfg.Toolsets,
		Limits:        cfg.Limits,
	})
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}

	log.Printf("Session started")
	log.Printf("Workflow ID: %s", workflowID)
	log.Printf("Run ID: %s", run.GetRunID())

	// Print workflow ID on stdout for scripting.
	fmt.Println(workflowID)
}

// cmdAsk sends a user_request Update and prints the coordinator's reply.
func cmdAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	workflowID := fs.String("workflow-id", "", "Session workflow ID (required)")
	text := fs.String("text", "", "The request (required)")
	timeout := fs.Duration("timeout", 10*time.Minute, "How long to wait for the reply")
	fs.Parse(args)

	if *workflowID == "" || *text == "" {
		log.Fatal("Error: --workflow-id and --text are required")
	}

	c := dialTemporal()
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	handle, err := c.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		WorkflowID:   *workflowID,
		UpdateName:   workflow.UpdateUserRequest,
		Args:         []interface{}{workflow.UserRequest{Text: *text}},
		WaitForStage: client.WorkflowUpdateStageCompleted,
	})
	if err != nil {
		log.Fatalf("Failed to send request: %v", err)
	}

	var resp workflow.UserRequestResponse
	if err := handle.Get(ctx, &resp); err != nil {
		log.Fatalf("Request failed: %v", err)
	}

	fmt.Println(replyStyle.Render(resp.Reply))
	if len(resp.Delegations) > 0 {
		fmt.Println()
		for _, d := range resp.Delegations {
			printDelegation(d)
		}
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("(%d tokens this session)", resp.TotalTokens)))
}

// cmdDelegations lists the session's delegation log.
func cmdDelegations(args []string) {
	fs := flag.NewFlagSet("delegations", flag.ExitOnError)
	workflowID := fs.String("workflow-id", "", "Session workflow ID (required)")
	fs.Parse(args)

	if *workflowID == "" {
		log.Fatal("Error: --workflow-id is required")
	}

	c := dialTemporal()
	defer c.Close()

	resp, err := c.QueryWorkflow(context.Background(), *workflowID, "", workflow.QueryGetDelegations)
	if err != nil {
		log.Fatalf("Failed to query delegations: %v", err)
	}

	var delegations []workflow.DelegationEntry
	if err := resp.Get(&delegations); err != nil {
		log.Fatalf("Failed to decode delegations: %v", err)
	}

	if len(delegations) == 0 {
		fmt.Println(dimStyle.Render("no delegations yet"))
		return
	}
	for _, d := range delegations {
		printDelegation(d)
	}
}

func printDelegation(d workflow.DelegationEntry) {
	var status string
	switch d.Status {
	case workflow.DelegationCompleted:
		status = okStyle.Render(string(d.Status))
	case workflow.DelegationFailed:
		status = failStyle.Render(string(d.Status))
	default:
		status = runningStyle.Render(string(d.Status))
	}
	fmt.Printf("%s %s %s\n", agentStyle.Render(d.Agent), status, dimStyle.Render(d.WorkflowID))
	fmt.Printf("  %s\n", d.Request)
	if d.Summary != "" {
		fmt.Printf("  %s\n", dimStyle.Render(d.Summary))
	}
}

// cmdHistory dumps the coordinator's conversation history.
func cmdHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	workflowID := fs.String("workflow-id", "", "Session workflow ID (required)")
	fs.Parse(args)

	if *workflowID == "" {
		log.Fatal("Error: --workflow-id is required")
	}

	c := dialTemporal()
	defer c.Close()

	resp, err := c.QueryWorkflow(context.Background(), *workflowID, "", workflow.QueryGetHistory)
	if err != nil {
		log.Fatalf("Failed to query history: %v", err)
	}

	var items []models.ConversationItem
	if err := resp.Get(&items); err != nil {
		log.Fatalf("Failed to decode history: %v", err)
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal history: %v", err)
	}
	fmt.Println(string(data))
}
