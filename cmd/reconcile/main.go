// Command reconcile brings project records forward to the state their escrow
// contracts show. It either drains the pending journal or handles one project.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/app"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/config"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/logger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/services/lifecycle"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs before exit.
func run() int {
	var (
		projectID  = flag.String("project", "", "project id to reconcile")
		contract   = flag.String("contract", "", "escrow contract address (required when the project has none recorded)")
		freelancer = flag.String("freelancer", "", "freelancer id (required when the project is still open)")
		drain      = flag.Bool("drain", false, "reconcile every record in the pending journal")
	)
	flag.Parse()

	if (*projectID == "") == !*drain {
		fmt.Fprintln(os.Stderr, "exactly one of -project or -drain is required")
		flag.Usage()
		return 2
	}

	rec := lifecycle.PendingReconciliation{}
	if !*drain {
		var err error
		if rec, err = singleRecord(*projectID, *contract, *freelancer); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	c, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("startup failed", nil)
		return 1
	}
	defer c.Close()

	if *drain {
		return drainJournal(ctx, c, log)
	}

	res, err := c.Projects.Reconcile(ctx, rec)
	if err != nil {
		log.WithError(err).Error("reconcile failed", map[string]interface{}{"projectId": *projectID})
		return 1
	}
	printResult(res)
	return 0
}

func singleRecord(project, contract, freelancer string) (lifecycle.PendingReconciliation, error) {
	id, err := uuid.Parse(project)
	if err != nil {
		return lifecycle.PendingReconciliation{}, fmt.Errorf("invalid -project: %w", err)
	}
	rec := lifecycle.PendingReconciliation{ProjectID: id, ContractAddress: contract}
	if freelancer != "" {
		fid, err := uuid.Parse(freelancer)
		if err != nil {
			return rec, fmt.Errorf("invalid -freelancer: %w", err)
		}
		rec.FreelancerID = &fid
	}
	return rec, nil
}

// drainJournal reconciles pending records oldest first. Failed records are
// pushed back so a later run can retry them; it returns the exit code.
func drainJournal(ctx context.Context, c *app.Components, log logger.Logger) int {
	pending, err := c.Journal.Len(ctx)
	if err != nil {
		log.WithError(err).Error("read journal", nil)
		return 1
	}

	var failed []lifecycle.PendingReconciliation
	for i := int64(0); i < pending; i++ {
		rec, ok, err := c.Journal.Pop(ctx)
		if err != nil {
			log.WithError(err).Error("pop journal", nil)
			return 1
		}
		if !ok {
			break
		}
		res, err := c.Projects.Reconcile(ctx, rec)
		if err != nil {
			log.WithError(err).Warn("reconcile failed, keeping record", map[string]interface{}{
				"projectId": rec.ProjectID.String(), "transition": rec.Transition,
			})
			failed = append(failed, rec)
			continue
		}
		printResult(res)
	}

	for _, rec := range failed {
		if err := c.Journal.Push(ctx, rec); err != nil {
			log.WithError(err).Error("requeue pending record", map[string]interface{}{"projectId": rec.ProjectID.String()})
		}
	}
	log.Info("journal drained", map[string]interface{}{"processed": pending, "failed": len(failed)})
	if len(failed) > 0 {
		return 1
	}
	return 0
}

func printResult(res lifecycle.ReconcileResult) {
	b, _ := json.Marshal(res)
	fmt.Println(string(b))
}
