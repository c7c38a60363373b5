package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/option"

	"github.com/kirillkom/tutorial-pipeline/internal/config"
	"github.com/kirillkom/tutorial-pipeline/internal/core/failure"
	"github.com/kirillkom/tutorial-pipeline/internal/core/ports"
	"github.com/kirillkom/tutorial-pipeline/internal/core/usecase"
	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/extractor"
	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/llm"
	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/lock/redis"
	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/openai"
	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/queue/nats"
	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/resilience"
	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/storage/gcs"
	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/tutorial-pipeline/internal/infrastructure/textproc"
)

type App struct {
	Config config.Config

	Queue       ports.MessageQueue
	Submissions ports.SubmissionRepository

	// Engine is exposed so binaries can attach a step observer.
	Engine   *usecase.PipelineEngine
	Advancer ports.SubmissionAdvancer
	IngestUC ports.SubmissionIngestor
	RetryUC  ports.SubmissionRetrier
	ReportUC ports.SubmissionReporter

	// Media is set when media is stored on the local filesystem.
	Media http.FileSystem

	closers []func()
}

func New(ctx context.Context, cfg config.Config) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.onClose(func() { _ = db.Close() })
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	submissions := postgres.NewSubmissionRepository(db)
	tutorials := postgres.NewTutorialRepository(db)
	sources := postgres.NewSourceRepository(db)

	retryCfg := resilience.DefaultConfig()
	retryCfg.Retry.MaxAttempts = cfg.ResilienceRetryMaxAttempts
	retryCfg.Retry.InitialBackoff = cfg.ResilienceRetryInitialDelay
	retryCfg.Breaker.Enabled = cfg.ResilienceBreakerEnabled
	executor := resilience.NewExecutor(retryCfg)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.onClose(queue.Close)

	completer, err := newCompleter(ctx, cfg, executor, app)
	if err != nil {
		return nil, err
	}
	llmService := llm.NewService(completer)

	var (
		transcriber extractor.Transcriber
		images      ports.ImageGenerator
		speech      ports.SpeechSynthesizer
	)
	if cfg.OpenAIAPIKey != "" {
		media := openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, openai.Options{
			TranscribeModel:    cfg.OpenAITranscribeModel,
			SpeechModel:        cfg.OpenAISpeechModel,
			Voice:              cfg.OpenAIVoice,
			ImageModel:         cfg.OpenAIImageModel,
			ResilienceExecutor: executor,
		})
		transcriber = media
		if cfg.MediaImagesEnabled {
			images = media.Images()
		}
		if cfg.MediaAudioEnabled {
			speech = media
		}
	} else {
		slog.Warn("openai_disabled", "reason", "OPENAI_API_KEY is empty; transcription, images and audio are off")
	}

	storage, err := newMediaStorage(ctx, cfg, app)
	if err != nil {
		return nil, err
	}

	var graph ports.TopicGraph
	if cfg.Neo4jURI != "" {
		g, err := neo4j.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
		if err != nil {
			slog.Warn("topic_graph_disabled", "error", err)
		} else {
			graph = g
			app.onClose(func() { _ = g.Close(context.Background()) })
		}
	}

	var locker ports.SubmissionLocker
	if cfg.RedisAddr != "" {
		l, rdb, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("init submission locker: %w", err)
		}
		locker = l
		app.onClose(func() { _ = rdb.Close() })
	} else {
		slog.Warn("submission_lease_disabled", "reason", "REDIS_ADDR is empty; run a single worker")
	}

	var extraRules []failure.Rule
	if cfg.ErrorRulesPath != "" {
		extraRules, err = failure.LoadRules(cfg.ErrorRulesPath)
		if err != nil {
			return nil, fmt.Errorf("load error rules: %w", err)
		}
	}

	dispatcher := extractor.New(extractor.Config{
		ReaderBaseURL:     cfg.ReaderBaseURL,
		ReaderAPIKey:      cfg.ReaderAPIKey,
		TikTokResolverURL: cfg.TikTokResolverURL,
		TranscriptBaseURL: cfg.TranscriptBaseURL,
		TweetMirrorHost:   cfg.TweetMirrorHost,
		WebCacheURL:       cfg.WebCacheURL,
		Timeout:           cfg.ExtractorTimeout,
	}, transcriber, executor)

	mediaGen := usecase.NewMediaGenerator(images, llmService, speech, textproc.NewSplitter(cfg.TTSMaxChars), storage)
	publisher := usecase.NewPublisher(tutorials, sources, llmService, mediaGen, graph, usecase.PublishConfig{
		MinSharedTopics: cfg.MergeMinSharedTopics,
	})
	steps := usecase.NewPipelineSteps(dispatcher, sources, llmService, llmService, publisher)
	engine := usecase.NewPipelineEngine(submissions, steps.StepSet(), failure.NewClassifier(extraRules...), usecase.PipelineConfig{
		Budget:         cfg.PipelineBudget,
		MaxStepRetries: cfg.PipelineMaxStepRetries,
		MaxRetries:     cfg.PipelineMaxRetries,
	})

	app.Queue = queue
	app.Submissions = submissions
	app.Engine = engine
	app.Advancer = usecase.NewLeasedAdvancer(engine, locker, cfg.LeaseTTL)
	app.IngestUC = usecase.NewIngestSubmissionUseCase(submissions, queue, cfg.PipelineMaxRetries)
	// A row untouched for longer than any live lease or advance is stalled.
	app.RetryUC = usecase.NewRetrySubmissionUseCase(submissions, queue, max(cfg.LeaseTTL, cfg.WorkerAdvanceTimeout)+time.Minute)
	app.ReportUC = usecase.NewReportUseCase(submissions, xlsx.New())
	return app, nil
}

func newCompleter(ctx context.Context, cfg config.Config, executor *resilience.Executor, app *App) (llm.Completer, error) {
	switch cfg.LLMProvider {
	case "gemini":
		client, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, executor)
		if err != nil {
			return nil, fmt.Errorf("init gemini: %w", err)
		}
		app.onClose(func() { _ = client.Close() })
		return client, nil
	case "", "ollama":
		return ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaModel, ollama.Options{ResilienceExecutor: executor}), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func newMediaStorage(ctx context.Context, cfg config.Config, app *App) (ports.MediaStorage, error) {
	switch cfg.MediaStorage {
	case "gcs":
		var opts []option.ClientOption
		if cfg.GCSCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
		}
		store, err := gcs.New(ctx, cfg.GCSBucket, cfg.GCSCDNDomain, opts...)
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		app.onClose(func() { _ = store.Close() })
		return store, nil
	case "", "local":
		store, err := localfs.New(cfg.MediaPath, cfg.MediaPublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("init local media storage: %w", err)
		}
		app.Media = store.Dir()
		return store, nil
	default:
		return nil, fmt.Errorf("unknown MEDIA_STORAGE %q", cfg.MediaStorage)
	}
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
