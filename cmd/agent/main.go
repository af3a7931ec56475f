package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/tmkoski/powertrim/internal/actuator"
	"github.com/tmkoski/powertrim/internal/config"
	"github.com/tmkoski/powertrim/internal/controller"
	"github.com/tmkoski/powertrim/internal/decision"
	"github.com/tmkoski/powertrim/internal/learner"
	"github.com/tmkoski/powertrim/internal/metrics"
	"github.com/tmkoski/powertrim/internal/policy"
	"github.com/tmkoski/powertrim/internal/store"
)

// #region main
func main() {
	cfg := config.FromFlags(os.Args[1:])

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	lrn, err := learner.New(cfg.Learner, st)
	if err != nil {
		log.Fatalf("failed to initialize learner: %v", err)
	}

	engine := decision.NewEngine(lrn, lrn, cfg.Tunables)
	filter := policy.New(cfg.MaxActionsPerCycle, cfg.MaxPerformanceImpact)
	registry := actuator.NewSimRegistry()
	monitor := metrics.NewMonitor(cfg.SampleInterval, cfg.TargetProcess)

	ctrl, err := controller.New(cfg, monitor, registry, engine, filter, lrn, st)
	if err != nil {
		log.Fatalf("failed to build controller: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Run(ctx)
	go lrn.Run(ctx)
	if err := ctrl.Start(ctx); err != nil {
		log.Fatalf("failed to start controller: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nshutting down...")
		ctrl.Stop()
		cancel()
		os.Exit(0)
	}()

	fmt.Println("powertrim agent ready.")
	fmt.Printf("  DB: %s | mode: %s | tick: %s\n", cfg.DBPath, cfg.Mode, cfg.DecisionInterval)
	fmt.Println("Commands: status, actions, mode <name>, pause, resume, revert, feedback <0-1> [comment], quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "quit", "exit":
			ctrl.Stop()
			return
		case "status":
			printStatus(ctrl.Status())
		case "actions":
			printActions(ctrl.ActiveActions())
		case "mode":
			if len(fields) < 2 {
				fmt.Println("usage: mode conservative|balanced|aggressive")
				continue
			}
			if err := ctrl.SetMode(fields[1]); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		case "pause":
			ctrl.Pause()
		case "resume":
			ctrl.Resume()
		case "revert":
			ctrl.RevertAll()
		case "feedback":
			if len(fields) < 2 {
				fmt.Println("usage: feedback <satisfaction 0-1> [comment]")
				continue
			}
			sat, err := strconv.ParseFloat(fields[1], 64)
			if err != nil || sat < 0 || sat > 1 {
				fmt.Println("satisfaction must be a number in [0,1]")
				continue
			}
			ctrl.SubmitFeedback(learner.FeedbackRecord{
				Satisfaction:          sat,
				PerformanceAcceptable: sat >= 0.5,
				BatteryImprovement:    sat >= 0.5,
				Comments:              strings.Join(fields[2:], " "),
			})
			fmt.Println("feedback recorded")
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
	ctrl.Stop()
}

func printStatus(s controller.Status) {
	fmt.Printf("state=%s mode=%s active=%d stuck=%d est_savings=%.1f%% satisfaction=%.2f\n",
		s.State, s.Mode, s.ActiveActions, s.StuckActions, s.EstimatedSavings, s.Satisfaction)
	fmt.Printf("ticks=%d skipped_stale=%d emergencies=%d last_decision=%s\n",
		s.Ticks, s.SkippedStale, s.EmergencyEntries, s.LastDecisionID)
}

func printActions(actions []controller.ActionView) {
	if len(actions) == 0 {
		fmt.Println("no active actions")
		return
	}
	for _, a := range actions {
		flag := ""
		if a.Stuck {
			flag = " [stuck]"
		}
		fmt.Printf("%s  %s on %s  intensity=%.2f savings=%.1f%% conf=%.2f%s\n",
			a.ID[:8], a.Type, a.TargetComponent, a.Intensity, a.EstimatedSavings, a.Confidence, flag)
	}
}

// #endregion main
