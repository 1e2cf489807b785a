package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"genstudio/internal/config"
	"genstudio/internal/database"
	"genstudio/internal/encryption"
	"genstudio/internal/gemini"
	"genstudio/internal/imagefile"
	"genstudio/internal/kv"
	"genstudio/internal/studio"
	"genstudio/internal/vault"
)

// Options overrides parts of the wiring NewStudioApp derives from config.
type Options struct {
	// Generator replaces the configured generation endpoint.
	Generator studio.ImageGenerator
	// Passphrase supplies the media key passphrase; defaults to ReadPassphrase.
	Passphrase vault.PassphraseFunc
	// Stderr receives warnings and errors; defaults to os.Stderr.
	Stderr io.Writer
	// Clock defaults to studio.RealClock.
	Clock studio.Clock
}

// StudioApp is the application layer between the CLI and StudioService.
// It constructs all dependencies from config, exposes operations that
// accept raw file paths, and flushes and closes the backends on Close.
type StudioApp struct {
	cfg       *config.Config
	records   *database.SQLiteRecords
	kv        studio.KVBackend
	vault     studio.MediaVault
	encryptor studio.Encryptor
	loader    studio.ImageLoader
	service   *studio.StudioService
	clock     studio.Clock
	op        *Operation
	logger    *slog.Logger
	logFile   *os.File
}

// NewStudioApp creates a fully wired StudioApp from the given config and
// waits for the user's collections to load.
// operation identifies the CLI command being run (e.g. "Generate", "TrainModel").
// The caller must call Close when done.
func NewStudioApp(ctx context.Context, cfg *config.Config, operation string, opts Options) (_ *StudioApp, err error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = studio.RealClock{}
	}
	if opts.Passphrase == nil {
		opts.Passphrase = ReadPassphrase
	}

	a := &StudioApp{
		cfg:    cfg,
		clock:  opts.Clock,
		op:     NewOperation(operation, opts.Clock),
		loader: imagefile.NewLoader(),
	}
	defer func() {
		if err != nil {
			a.closeBackends()
		}
	}()

	a.logger, a.logFile, err = newLogger(cfg.LogDir, a.op.ID, opts.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: a.logger}

	a.records, err = database.NewRecordBackendFromConfig(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("creating record backend: %w", err)
	}
	if err := a.records.CheckMigrations(); err != nil {
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	a.kv, err = kv.NewKVFromConfig(cfg.KV, logger)
	if err != nil {
		return nil, fmt.Errorf("creating key/value backend: %w", err)
	}

	a.encryptor, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	a.vault, err = vault.NewVaultFromConfig(ctx, cfg.Media, vault.Options{
		Encryptor:  a.encryptor,
		Passphrase: opts.Passphrase,
	})
	if err != nil {
		return nil, fmt.Errorf("creating media vault: %w", err)
	}

	generator := opts.Generator
	if generator == nil {
		generator = gemini.NewClient(gemini.Config{
			BaseURL: cfg.Generator.BaseURL,
			Model:   cfg.Generator.Model,
			APIKey:  os.Getenv(cfg.Generator.APIKeyEnv),
			Timeout: time.Duration(cfg.Generator.TimeoutSeconds) * time.Second,
		}, logger)
	}

	store := studio.NewStore(a.kv, a.records, studio.NewRegistry(studio.StructuredCollections), logger)
	builder := studio.NewBuilder(generator, a.vault, logger)
	a.service = studio.NewStudioService(store, cfg.User, builder, a.vault, logger, studio.NewTimeIDGenerator(a.clock))

	if err := a.service.Mount(ctx); err != nil {
		return nil, fmt.Errorf("loading collections: %w", err)
	}

	a.logger.Debug("operation started", "operation", operation, "user", cfg.User)
	return a, nil
}

// track marks the operation failed when err is non-nil and returns err.
func (a *StudioApp) track(err error) error {
	if err != nil {
		a.op.Fail()
	}
	return err
}

// LoadImage reads an image file from disk.
func (a *StudioApp) LoadImage(rawPath string) (studio.Image, error) {
	p, err := filepath.Abs(rawPath)
	if err != nil {
		return studio.Image{}, fmt.Errorf("resolving path: %w", err)
	}
	return a.loader.Load(p)
}

// NoModel as the model of a generate request drops the saved model.
const NoModel = "none"

// Generate runs a text-to-image generation and records it in history.
// Options left empty fall back to the user's saved preferences, and the
// options used are saved for the next run.
func (a *StudioApp) Generate(ctx context.Context, opts studio.GenerateOptions) (studio.HistoryEntry, error) {
	a.op.Parameters = opts.Prompt
	dropModel := opts.ModelID == NoModel
	if dropModel {
		opts.ModelID = ""
	}
	opts = a.service.ApplyPreferences(opts)
	if dropModel {
		opts.ModelID = ""
	}

	entry, err := a.service.Generate(ctx, opts)
	if err != nil {
		return entry, a.track(err)
	}

	prefs := studio.Preferences{
		Style:       entry.Generate.Style,
		AspectRatio: entry.Generate.AspectRatio,
		ModelID:     entry.Generate.ModelID,
	}
	if err := a.service.SavePreferences(prefs); err != nil {
		a.logger.Warn("preferences not saved", "error", err)
	}
	return entry, nil
}

// Preferences returns the generate options used when a request omits them.
func (a *StudioApp) Preferences() studio.Preferences {
	return a.service.Preferences()
}

// ResetPreferences clears the saved generate options.
func (a *StudioApp) ResetPreferences() error {
	return a.track(a.service.SavePreferences(studio.Preferences{}))
}

// Edit edits the image at rawPath and records the result.
func (a *StudioApp) Edit(ctx context.Context, prompt, rawPath string) (studio.HistoryEntry, error) {
	a.op.Parameters = rawPath
	source, err := a.LoadImage(rawPath)
	if err != nil {
		return studio.HistoryEntry{}, a.track(err)
	}
	entry, err := a.service.Edit(ctx, prompt, source)
	return entry, a.track(err)
}

// ContextEdit creates a new image using the image at rawPath as context.
func (a *StudioApp) ContextEdit(ctx context.Context, prompt, rawPath string) (studio.HistoryEntry, error) {
	a.op.Parameters = rawPath
	image, err := a.LoadImage(rawPath)
	if err != nil {
		return studio.HistoryEntry{}, a.track(err)
	}
	entry, err := a.service.ContextEdit(ctx, prompt, image)
	return entry, a.track(err)
}

// Regenerate re-runs the generation recorded under id.
func (a *StudioApp) Regenerate(ctx context.Context, id string) (studio.HistoryEntry, error) {
	a.op.Parameters = id
	entry, err := a.service.Regenerate(ctx, id)
	return entry, a.track(err)
}

// History returns history entries newest first, optionally filtered by variant.
func (a *StudioApp) History(variant string) ([]studio.HistoryEntry, error) {
	v := studio.Variant(variant)
	if v != "" && !v.Valid() {
		return nil, a.track(fmt.Errorf("unknown variant %q", variant))
	}
	return a.service.History(v), nil
}

// DeleteHistory removes a history entry.
func (a *StudioApp) DeleteHistory(id string) error {
	a.op.Parameters = id
	return a.track(a.service.DeleteHistory(id))
}

// SavePrompt stores text for reuse.
func (a *StudioApp) SavePrompt(text string) (bool, error) {
	added, err := a.service.SavePrompt(text)
	return added, a.track(err)
}

// Prompts returns the saved prompts, newest first.
func (a *StudioApp) Prompts() []studio.SavedPrompt {
	return a.service.Prompts()
}

// DeletePrompt removes a saved prompt.
func (a *StudioApp) DeletePrompt(id string) error {
	a.op.Parameters = id
	return a.track(a.service.DeletePrompt(id))
}

// TrainModel creates a custom model from the images at rawPaths. A
// directory contributes every image file beneath it.
func (a *StudioApp) TrainModel(ctx context.Context, name, description string, rawPaths []string) (studio.TrainedModel, error) {
	a.op.Parameters = name
	paths, err := imagefile.Collect(rawPaths)
	if err != nil {
		return studio.TrainedModel{}, a.track(err)
	}
	images := make([]studio.Image, 0, len(paths))
	for _, p := range paths {
		img, err := a.LoadImage(p)
		if err != nil {
			return studio.TrainedModel{}, a.track(err)
		}
		images = append(images, img)
	}
	model, err := a.service.TrainModel(ctx, name, description, images)
	return model, a.track(err)
}

// Models returns the trained models, newest first.
func (a *StudioApp) Models() []studio.TrainedModel {
	return a.service.Models()
}

// UpdateModel renames a model and replaces its description.
func (a *StudioApp) UpdateModel(id, name, description string) (studio.TrainedModel, error) {
	a.op.Parameters = id
	model, err := a.service.UpdateModel(id, name, description)
	return model, a.track(err)
}

// DeleteModel removes a model.
func (a *StudioApp) DeleteModel(id string) error {
	a.op.Parameters = id
	return a.track(a.service.DeleteModel(id))
}

// ExportImage writes image index of history entry id to destPath and
// returns the path written.
func (a *StudioApp) ExportImage(ctx context.Context, id string, index int, destPath string) (string, error) {
	a.op.Parameters = id
	entry, err := a.service.FindHistory(id)
	if err != nil {
		return "", a.track(err)
	}
	if index < 0 || index >= len(entry.Images) {
		return "", a.track(fmt.Errorf("entry %s has %d image(s); index %d out of range", id, len(entry.Images), index))
	}
	ref := entry.Images[index]

	if info, err := os.Stat(destPath); err == nil && info.IsDir() {
		destPath = filepath.Join(destPath, fmt.Sprintf("%s-%d%s", id, index, extensionFor(ref.MimeType)))
	}

	f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", a.track(fmt.Errorf("creating %s: %w", destPath, err))
	}
	if err := a.service.ExportImage(ctx, ref, f); err != nil {
		f.Close()
		os.Remove(destPath)
		return "", a.track(err)
	}
	if err := f.Close(); err != nil {
		return "", a.track(fmt.Errorf("closing %s: %w", destPath, err))
	}
	return destPath, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/svg+xml":
		return ".svg"
	}
	return ".bin"
}

// SetupKeys generates the media encryption key pair.
func (a *StudioApp) SetupKeys(passphrase string) error {
	if a.encryptor == nil {
		return a.track(fmt.Errorf("encryption is disabled (set [encryption] type = \"age\")"))
	}
	return a.track(a.encryptor.Setup(passphrase))
}

// ValidateMedia checks that the media vault is reachable and writable.
func (a *StudioApp) ValidateMedia(ctx context.Context) error {
	return a.track(a.vault.ValidateSetup(ctx))
}

// BackupDatabase writes a snapshot of the record database to destPath.
func (a *StudioApp) BackupDatabase(destPath string) error {
	a.op.Parameters = destPath
	abs, err := filepath.Abs(destPath)
	if err != nil {
		return a.track(fmt.Errorf("resolving path: %w", err))
	}
	return a.track(a.records.BackupTo(abs))
}

// CheckDatabase reports the schema version of the record database and the
// latest version, failing on drift.
func (a *StudioApp) CheckDatabase() (current, latest uint, err error) {
	current, latest, err = a.records.SchemaVersion()
	if err != nil {
		return 0, 0, a.track(err)
	}
	return current, latest, a.track(a.records.CheckMigrations())
}

// Close waits for pending saves, logs the operation summary and closes all resources.
func (a *StudioApp) Close() error {
	if a.service != nil {
		a.service.Flush()
	}
	a.op.Finish(a.clock)
	if a.logger != nil {
		a.logger.Info("operation finished",
			"operation", a.op.Name,
			"parameters", a.op.Parameters,
			"status", a.op.Status,
			"duration", a.op.Duration().Truncate(time.Millisecond))
	}
	return a.closeBackends()
}

func (a *StudioApp) closeBackends() error {
	var firstErr error
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			firstErr = fmt.Errorf("closing key/value backend: %w", err)
		}
	}
	if a.records != nil {
		if err := a.records.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
