package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_login_attempts_total",
			Help: "Login attempts by result (success, rejected, error).",
		},
		[]string{"result"},
	)

	xpAwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blog_xp_awarded_total",
		Help: "Experience points awarded by completed todos.",
	})

	levelUps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blog_level_ups_total",
		Help: "Levels gained across all profiles.",
	})

	todoCompletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_todo_completions_total",
			Help: "Todo completion requests by result (awarded, noop, error).",
		},
		[]string{"result"},
	)
)
