// Worker executable for automesh.
//
// Starts a Temporal worker hosting the coordinator and specialist workflows
// plus the model and toolset activities.
package main

import (
	"flag"
	"log"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/qaforge/automesh/internal/activities"
	"github.com/qaforge/automesh/internal/config"
	"github.com/qaforge/automesh/internal/llm"
	"github.com/qaforge/automesh/internal/mcp"
	"github.com/qaforge/automesh/internal/temporalclient"
	"github.com/qaforge/automesh/internal/version"
	"github.com/qaforge/automesh/internal/workflow"
)

func main() {
	configPath := flag.String("config", "", "Path to the agents YAML config (built-in topology when empty)")
	flag.Parse()

	// Check for at least one LLM provider API key.
	hasGemini := os.Getenv("GEMINI_API_KEY") != ""
	hasAnthropic := os.Getenv("ANTHROPIC_API_KEY") != ""
	hasOpenAI := os.Getenv("OPENAI_API_KEY") != ""

	if !hasGemini && !hasAnthropic && !hasOpenAI {
		log.Fatal("At least one LLM provider API key is required: GEMINI_API_KEY, ANTHROPIC_API_KEY, or OPENAI_API_KEY")
	}
	if hasGemini {
		log.Println("Gemini provider available")
	}
	if hasAnthropic {
		log.Println("Anthropic provider available")
	}
	if hasOpenAI {
		log.Println("OpenAI provider available")
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
		log.Printf("Loaded config from %s", *configPath)
	}

	opts := temporalclient.MustLoadClientOptions("", "")

	c, err := client.Dial(opts)
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.TaskQueue, worker.Options{})

	w.RegisterWorkflow(workflow.CoordinatorWorkflow)
	w.RegisterWorkflow(workflow.CoordinatorWorkflowContinued)
	w.RegisterWorkflow(workflow.SpecialistWorkflow)
	w.RegisterWorkflow(workflow.SpecialistWorkflowContinued)

	llmActivities := activities.NewLLMActivities(llm.NewMultiProviderClient())
	w.RegisterActivity(llmActivities.ExecuteLLMCall)

	// Toolset connections are worker-scoped; specialists key into the store
	// by session ID and the store survives across their activities.
	toolsetActivities := activities.NewToolsetActivities(mcp.NewStore())
	w.RegisterActivity(toolsetActivities.InitializeToolsets)
	w.RegisterActivity(toolsetActivities.CallToolsetTool)
	w.RegisterActivity(toolsetActivities.CleanupToolsets)

	log.Printf("Worker version: %s", version.GitCommit)
	log.Printf("Starting worker on task queue: %s", cfg.TaskQueue)
	if opts.HostPort != "" {
		log.Printf("Temporal server: %s", opts.HostPort)
	}

	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.Println("Worker stopped")
}
