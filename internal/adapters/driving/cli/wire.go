package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/tidemark/internal/adapters/driven/archive/s3"
	configfile "github.com/custodia-labs/tidemark/internal/adapters/driven/config/file"
	"github.com/custodia-labs/tidemark/internal/adapters/driven/inference/openai"
	itemdynamo "github.com/custodia-labs/tidemark/internal/adapters/driven/itemstore/dynamo"
	ledgerdynamo "github.com/custodia-labs/tidemark/internal/adapters/driven/ledger/dynamo"
	ledgersqlite "github.com/custodia-labs/tidemark/internal/adapters/driven/ledger/sqlite"
	storagefile "github.com/custodia-labs/tidemark/internal/adapters/driven/storage/file"
	"github.com/custodia-labs/tidemark/internal/core/domain"
	"github.com/custodia-labs/tidemark/internal/core/ports/driven"
	"github.com/custodia-labs/tidemark/internal/core/ports/driving"
	"github.com/custodia-labs/tidemark/internal/core/services"
	"github.com/custodia-labs/tidemark/internal/logger"
)

// initServices builds the production service graph. Local pieces are
// mandatory; cloud-backed pieces degrade to nil and are reported by
// the commands that need them.
func initServices() error {
	// A .env file is a development convenience; absence is normal.
	_ = godotenv.Load() //nolint:errcheck

	store, err := configfile.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("initialise config store: %w", err)
	}
	configStore = store
	configWatcher = store

	prompts, err := configfile.NewPromptStore("")
	if err != nil {
		return fmt.Errorf("initialise prompt store: %w", err)
	}
	promptStore = prompts

	parserService = services.NewParser()

	items, err := itemdynamo.New(context.Background(), resolveRegion(), configStore.GetFloat("aws.scan_rps"))
	if err != nil {
		logger.Warn("Item store unavailable: %v", err)
	} else {
		itemStore = items
	}

	if err := initPipeline(resolveAPIKey("")); err != nil {
		logger.Debug("Pipeline not built at startup: %v", err)
	}
	return nil
}

// initPipeline builds the batch pipeline with the given API key. It is
// re-run by ensurePipeline when --api-key overrides the stored
// credentials.
func initPipeline(apiKey string) error {
	pipeline, err := buildPipeline(strings.TrimSpace(apiKey))
	pipelineService, pipelineInitErr = pipeline, err
	return err
}

func buildPipeline(apiKey string) (driving.Pipeline, error) {
	if apiKey == "" {
		return nil, domain.ErrMissingAPIKey
	}
	if itemStore == nil {
		return nil, errors.New("item store unavailable")
	}

	batch, err := openai.NewBatchService(openai.Config{
		APIKey:  apiKey,
		BaseURL: configStore.GetString("openai.base_url"),
	})
	if err != nil {
		return nil, fmt.Errorf("initialise batch service: %w", err)
	}

	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data directory: %w", err)
	}
	watermarks, err := storagefile.NewWatermarkStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("initialise watermark store: %w", err)
	}
	jobs, err := storagefile.NewJobStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("initialise job store: %w", err)
	}

	ctx := context.Background()
	return services.NewPipeline(
		services.NewFetcher(itemStore),
		services.NewFormatter(dataDir, promptStore),
		services.NewSubmitter(batch),
		watermarks,
		jobs,
		buildLedger(ctx, dataDir),
		buildArchiver(ctx),
		sourceCatalogue(),
		dataDir,
	), nil
}

// buildLedger selects the bookkeeping backend: a DynamoDB table when
// one is configured, the local SQLite ledger otherwise. Bookkeeping is
// best-effort, so a failed backend disables it rather than blocking
// the run.
func buildLedger(ctx context.Context, dataDir string) driven.Ledger {
	if table := resolveLedgerTable(); table != "" {
		ledger, err := ledgerdynamo.New(ctx, resolveRegion(), table)
		if err != nil {
			logger.Warn("DynamoDB ledger unavailable: %v", err)
			return nil
		}
		return ledger
	}

	ledger, err := ledgersqlite.New(dataDir)
	if err != nil {
		logger.Warn("Local ledger unavailable: %v", err)
		return nil
	}
	return ledger
}

// buildArchiver returns the S3 archiver when a bucket is configured,
// nil otherwise.
func buildArchiver(ctx context.Context) driven.Archiver {
	bucket := configStore.GetString("archive.s3_bucket")
	if bucket == "" {
		return nil
	}

	archiver, err := s3.New(ctx, resolveRegion(), bucket)
	if err != nil {
		logger.Warn("S3 archiver unavailable: %v", err)
		return nil
	}
	return archiver
}

// sourceCatalogue resolves per-source settings for every enabled
// source. Sources named only on the command line fall back to the
// built-in defaults.
func sourceCatalogue() map[string]domain.Source {
	catalogue := make(map[string]domain.Source)
	for _, name := range enabledSources() {
		catalogue[name] = resolveSource(name)
	}
	return catalogue
}

// resolveSource builds the Source for name, applying any per-source
// configuration over the built-in defaults.
func resolveSource(name string) domain.Source {
	src := domain.NewSource(name)
	if v, ok := configStore.Get("source." + name + ".skip_cutoff"); ok {
		if skip, isBool := v.(bool); isBool {
			src.SkipCutoff = skip
		}
	}
	if prompt := configStore.GetString("source." + name + ".prompt"); prompt != "" {
		src.Prompt = prompt
	}
	return src
}

// enabledSources returns the configured source list, or the default
// source when nothing is enabled. The daemon re-reads it every cycle.
func enabledSources() []string {
	if sources := configStore.GetStringSlice("sources.enabled"); len(sources) > 0 {
		return sources
	}
	return []string{domain.DefaultSourceName}
}

// resolveAPIKey applies credential precedence: explicit override, then
// environment, then the config store.
func resolveAPIKey(override string) string {
	if key := strings.TrimSpace(override); key != "" {
		return key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	return configStore.GetString("openai.api_key")
}

// resolveRegion returns the AWS region. Empty means the SDK's own
// resolution (shared config, instance metadata) applies.
func resolveRegion() string {
	if region := os.Getenv("AWS_REGION"); region != "" {
		return region
	}
	return configStore.GetString("aws.region")
}

// resolveLedgerTable returns the DynamoDB ledger table name, or empty
// when runs should be recorded locally.
func resolveLedgerTable() string {
	if table := os.Getenv("TIDEMARK_LEDGER_TABLE"); table != "" {
		return table
	}
	return configStore.GetString("aws.ledger_table")
}

// resolveDataDir returns the directory batch artefacts live under.
func resolveDataDir() (string, error) {
	if dir := configStore.GetString("batch.data_dir"); dir != "" {
		return dir, nil
	}
	return storagefile.DefaultDataDir()
}

// resolveModelKey returns the configured model key, defaulting to the
// cheapest alias.
func resolveModelKey() string {
	if model := configStore.GetString("batch.model"); model != "" {
		return model
	}
	return domain.DefaultModelKey
}
