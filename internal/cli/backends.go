package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"trivia-service/internal/app"
	"trivia-service/internal/config"
	"trivia-service/internal/infra/memory"
	natsbus "trivia-service/internal/infra/nats"
	pgstore "trivia-service/internal/infra/postgres"
	rediscache "trivia-service/internal/infra/redis"
)

// backends bundles the adapters selected by config. Postgres, Redis and NATS are each
// optional; without them the in-memory implementations are used.
type backends struct {
	sessions  app.SessionStore
	profiles  app.ProfileStore
	questions app.QuestionSource
	mirror    app.RoomMirror
	publisher app.EventPublisher
	closers   []func()
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(app.FallbackQuestions())
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		store := pgstore.NewStore(pool)
		b.sessions, b.profiles = store, store
		loader = pgstore.NewQuestionLoader(pool)
		log.Info().Msg("using postgres persistence")
	} else {
		store := memory.NewStore()
		b.sessions, b.profiles = store, store
		log.Info().Msg("postgres not configured, using in-memory persistence")
	}

	questionTTL := config.Duration(cfg.Questions.TTL, 10*time.Minute)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = client.Close() })
		b.questions = rediscache.NewQuestionRepository(client, loader, questionTTL)
		b.mirror = rediscache.NewRoomMirror(client, config.Duration(cfg.Redis.TTL, 10*time.Minute))
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis question cache and room mirror")
	} else {
		b.questions = memory.NewQuestionRepository(loader, questionTTL)
	}

	if cfg.NATS.URL != "" {
		nc, err := natsbus.Connect(cfg.NATS.URL)
		if err != nil {
			// Events are best-effort; the game runs without them.
			log.Warn().Err(err).Msg("NATS unavailable, game events disabled")
		} else {
			b.closers = append(b.closers, func() { _ = nc.Drain() })
			b.publisher = natsbus.NewPublisher(nc, cfg.NATS.Subject)
		}
	}
	return b, nil
}

// Close releases connections in reverse order of opening.
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func newTasks(cfg config.Config) *app.Tasks {
	return app.NewTasks(cfg.Tasks.Limit, config.Duration(cfg.Tasks.Timeout, 5*time.Second))
}
