package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/alecgard/tasker/internal/apperr"
	"github.com/alecgard/tasker/internal/authz"
	"github.com/alecgard/tasker/internal/config"
	"github.com/alecgard/tasker/internal/db"
	"github.com/alecgard/tasker/internal/group"
	"github.com/alecgard/tasker/internal/invitation"
	"github.com/alecgard/tasker/internal/session"
	"github.com/alecgard/tasker/internal/task"
	"github.com/alecgard/tasker/internal/user"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo users, a shared group and tasks",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

const demoPassword = "secret1"

var demoUsers = []user.RegisterInput{
	{Email: "alice@example.com", Password: demoPassword, Name: "alice"},
	{Email: "bob@example.com", Password: demoPassword, Name: "bob"},
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	userStore := user.NewStore(pool)
	groupStore := group.NewStore(pool)
	gate := authz.NewGate(groupStore)

	users := user.NewService(userStore, session.NewMemoryStore(time.Minute, false), cfg.Auth.MinPasswordLength, cfg.Auth.BcryptCost)
	groups := group.NewService(groupStore, gate)
	tasks := task.NewService(task.NewStore(pool), groupStore, gate)
	invitations := invitation.NewService(invitation.NewStore(pool), userStore, gate)

	// Check if seed has already run.
	if _, err := userStore.GetByName(ctx, demoUsers[0].Name); err == nil {
		slog.Info("demo data already exists, skipping seed")
		return nil
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return fmt.Errorf("checking existing users: %w", err)
	}

	regs := make([]*user.Registration, 0, len(demoUsers))
	for _, in := range demoUsers {
		reg, err := users.Register(ctx, in)
		if err != nil {
			return fmt.Errorf("registering %q: %w", in.Name, err)
		}
		slog.Info("created user", "name", reg.User.Name, "id", reg.User.ID)
		regs = append(regs, reg)
	}
	alice, bob := regs[0].User, regs[1].User

	work, err := groups.Create(ctx, alice.ID, "Work")
	if err != nil {
		return fmt.Errorf("creating group: %w", err)
	}

	deadline := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	demoTasks := []task.AddInput{
		{Name: "Write quarterly report", Notes: "Numbers from finance", Deadline: deadline, GroupID: work.ID},
		{Name: "Book team offsite", Deadline: deadline, GroupID: work.ID},
		{Name: "Buy milk", Deadline: deadline},
	}
	for _, in := range demoTasks {
		if _, err := tasks.Add(ctx, alice.ID, in); err != nil {
			return fmt.Errorf("adding task %q: %w", in.Name, err)
		}
	}

	inv, err := invitations.Invite(ctx, alice.ID, work.ID, bob.Name)
	if err != nil {
		return fmt.Errorf("inviting %s: %w", bob.Name, err)
	}

	fmt.Printf("\n=== Demo Data Seeded ===\n")
	fmt.Printf("Users:      alice, bob (password %q)\n", demoPassword)
	fmt.Printf("Group:      %s (%s)\n", work.Name, work.ID)
	fmt.Printf("Tasks:      %d\n", len(demoTasks))
	fmt.Printf("Invitation: %s -> %s (%s)\n", alice.Name, bob.Name, inv.ID)
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  curl -c jar -X POST -d '{\"email\":\"bob\",\"password\":\"%s\"}' http://localhost:8080/api/v1/login\n", demoPassword)
	fmt.Printf("  curl -b jar http://localhost:8080/api/v1/notifications\n")

	return nil
}
