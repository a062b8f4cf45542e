// Command seed fills a running blog service with demo users, todos and
// posts through its public API. Completing todos exercises the XP ledger,
// so the leaderboard is populated afterwards.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkgconfig "github.com/Lv-up-Planner/initRepo/pkg/config"
	"github.com/Lv-up-Planner/initRepo/pkg/logger"
)

// Config controls the size of the seed.
type Config struct {
	BaseURL       string        `env:"SEED_BASE_URL" envDefault:"http://localhost:8003"`
	Users         int           `env:"SEED_USERS" envDefault:"20"`
	TodosPerUser  int           `env:"SEED_TODOS_PER_USER" envDefault:"8"`
	PostsPerUser  int           `env:"SEED_POSTS_PER_USER" envDefault:"2"`
	CompleteRatio float64       `env:"SEED_COMPLETE_RATIO" envDefault:"0.6"`
	Password      string        `env:"SEED_PASSWORD" envDefault:"seed-password-1"`
	Timeout       time.Duration `env:"SEED_TIMEOUT" envDefault:"10s"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Validate checks the seed configuration.
func (c *Config) Validate() error {
	if c.Users < 1 {
		return fmt.Errorf("SEED_USERS must be at least 1, got %d", c.Users)
	}
	if c.TodosPerUser < 0 || c.PostsPerUser < 0 {
		return fmt.Errorf("SEED_TODOS_PER_USER and SEED_POSTS_PER_USER must not be negative")
	}
	if c.CompleteRatio < 0 || c.CompleteRatio > 1 {
		return fmt.Errorf("SEED_COMPLETE_RATIO must be within [0,1], got %g", c.CompleteRatio)
	}
	if len(c.Password) < 8 {
		return fmt.Errorf("SEED_PASSWORD must be at least 8 characters")
	}
	return nil
}

var todoTitles = []string{
	"Read a chapter", "Morning run", "Refactor the parser", "Write unit tests",
	"Plan the sprint", "Review pull requests", "Stretch for ten minutes",
	"Clean the inbox", "Practice guitar", "Cook dinner", "Learn ten new words",
}

var postTitles = []string{
	"What I learned this week", "Small habits add up", "Leveling up",
	"Notes on focus", "A quiet productive day",
}

func main() {
	if err := run(); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return fmt.Errorf("load seed config: %w", err)
	}
	log := logger.New("seed", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s := &seeder{
		client: newAPIClient(cfg.BaseURL, cfg.Timeout),
		cfg:    cfg,
		logger: log,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		runID:  time.Now().UTC().Format("0102150405"),
	}
	sum, err := s.run(ctx)
	if err != nil {
		return err
	}

	log.Info("seed complete",
		slog.Int("users", sum.Users),
		slog.Int("todos", sum.Todos),
		slog.Int("completed", sum.Completed),
		slog.Int("posts", sum.Posts),
	)
	return nil
}

type summary struct {
	Users, Todos, Completed, Posts int
}

type seeder struct {
	client *apiClient
	cfg    *Config
	logger *slog.Logger
	rng    *rand.Rand
	runID  string
}

func (s *seeder) run(ctx context.Context) (summary, error) {
	var sum summary
	for i := 0; i < s.cfg.Users; i++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		username := fmt.Sprintf("seed%s_%03d", s.runID, i)
		if err := s.client.register(ctx, username, s.cfg.Password, fmt.Sprintf("Seed User %d", i)); err != nil {
			return sum, fmt.Errorf("register %s: %w", username, err)
		}
		token, err := s.client.login(ctx, username, s.cfg.Password)
		if err != nil {
			return sum, fmt.Errorf("login %s: %w", username, err)
		}
		sum.Users++

		for j := 0; j < s.cfg.TodosPerUser; j++ {
			title := todoTitles[s.rng.IntN(len(todoTitles))]
			xp := 10 * (1 + s.rng.IntN(10))
			id, err := s.client.createTodo(ctx, token, title, xp)
			if err != nil {
				return sum, fmt.Errorf("create todo for %s: %w", username, err)
			}
			sum.Todos++

			if s.rng.Float64() < s.cfg.CompleteRatio {
				if err := s.client.completeTodo(ctx, token, id); err != nil {
					return sum, fmt.Errorf("complete todo %s: %w", id, err)
				}
				sum.Completed++
			}
		}

		for j := 0; j < s.cfg.PostsPerUser; j++ {
			title := postTitles[s.rng.IntN(len(postTitles))]
			if err := s.client.createPost(ctx, token, title, "Posted by "+username+"."); err != nil {
				return sum, fmt.Errorf("create post for %s: %w", username, err)
			}
			sum.Posts++
		}

		s.logger.Debug("user seeded", slog.String("username", username))
	}
	return sum, nil
}
