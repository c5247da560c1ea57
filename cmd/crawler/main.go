package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path"
	"runtime"
	"strings"
	"time"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/afero"

	"opdsgrab/internal/crawler"
	"opdsgrab/internal/logger"
	"opdsgrab/internal/opds"
	"opdsgrab/internal/storage/authors"
	"opdsgrab/internal/storage/books"
	"opdsgrab/internal/storage/fails"
	"opdsgrab/internal/storage/genres"
)

func getEnvOrDefault(key, default_ string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}

	return default_
}

var (
	rootFeed       = getEnvOrDefault("ROOT_URL", "https://api.digitallibrary.io/book-api/opds/v1/root.xml")
	languages      = getEnvOrDefault("LANGUAGES", "en:English,fr:French")
	author         = getEnvOrDefault("AUTHOR", "Rohini Nilekani")
	authorLanguage = getEnvOrDefault("AUTHOR_LANGUAGE", "en")
	outputDir      = getEnvOrDefault("OUTPUT_DIR", "/tmp")
	logLevel       = getEnvOrDefault("LOG_LEVEL", "info")
	dbConnStr      = os.Getenv("DATABASE_URL")
)

func main() {
	_, thisFile, _, _ := runtime.Caller(0)

	lvl, lvlErr := logger.ParseLevel(logLevel)
	logger.SetupSLog(lvl, path.Dir(path.Dir(path.Dir(thisFile))), nil)

	if lvlErr != nil {
		slog.Error(lvlErr.Error())
		os.Exit(1)
	}

	rootUrl, err := url.Parse(rootFeed)
	if err != nil || !rootUrl.IsAbs() {
		slog.Error("ROOT_URL must be an absolute URL: " + rootFeed)
		os.Exit(1)
	}

	langs, err := parseLanguages(languages)
	if err != nil {
		slog.Error("Invalid LANGUAGES: " + err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cr := &crawler.Crawler{
		Fetcher: &opds.HTTPFetcher{
			Client: http.DefaultClient,
			Logger: slog.Default(),
			Base:   rootUrl,
		},
		Fs:        afero.NewOsFs(),
		OutputDir: outputDir,
		Logger:    slog.Default(),
		Consumer:  &crawler.LoggerConsumer{Logger: slog.Default()},
		Errors:    &crawler.LoggingHandler{Logger: slog.Default()},
	}

	if dbConnStr != "" {
		cfg, err := pgxpool.ParseConfig(dbConnStr)
		if err != nil {
			slog.Error("Failed to parse DATABASE_URL: " + err.Error())
			os.Exit(1)
		}

		cfg.ConnConfig.Tracer = logger.NewPGXTracer(slog.Default())

		pg, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			slog.Error("failed to create postgres pool: " + err.Error())
			os.Exit(1)
		}
		defer pg.Close()

		startTime := time.Now()
		runId := uuid.New()

		slog.Info("Indexing catalog into database", slog.String("run_id", runId.String()))

		cr.Consumer = &crawler.StoringConsumer{
			Logger:  slog.Default(),
			Books:   books.NewPGXRepository(pg, slog.Default()),
			Authors: authors.NewPGXRepository(pg, slog.Default()),
			Genres:  genres.NewPGXRepository(pg, slog.Default()),
		}

		cr.Errors = &crawler.StoringHandler{
			RunId:     runId,
			StartTime: &startTime,
			Logger:    slog.Default(),
			Fails:     fails.NewPGXRepository(pg, slog.Default()),
		}
	}

	err = cr.Crawl(ctx, rootUrl, crawler.Plan{
		Languages:      langs,
		Author:         author,
		AuthorLanguage: authorLanguage,
	})
	if err != nil {
		slog.Error("Crawl failed: " + err.Error())
		stop()
		os.Exit(1)
	}
}
