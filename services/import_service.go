package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yashrajoria/catalog-seeder/checksum"
	apperrors "github.com/yashrajoria/catalog-seeder/errors"
	"github.com/yashrajoria/catalog-seeder/kv"
	"github.com/yashrajoria/catalog-seeder/loader"
	"github.com/yashrajoria/catalog-seeder/logger"
	"github.com/yashrajoria/catalog-seeder/models"
	"github.com/yashrajoria/catalog-seeder/repository"
)

// DefaultChunkSize caps upserts per atomic batch.
const DefaultChunkSize = 300

// SourceNames names the seed resources for each section.
type SourceNames struct {
	Brands     string
	Categories string
	Products   string
	Extension  string
}

// DefaultSourceNames are brands.json, categories.json and products.json.
var DefaultSourceNames = SourceNames{
	Brands:     models.SectionBrands,
	Categories: models.SectionCategories,
	Products:   models.SectionProducts,
	Extension:  loader.DefaultExtension,
}

func (n SourceNames) withDefaults() SourceNames {
	if n.Brands == "" {
		n.Brands = DefaultSourceNames.Brands
	}
	if n.Categories == "" {
		n.Categories = DefaultSourceNames.Categories
	}
	if n.Products == "" {
		n.Products = DefaultSourceNames.Products
	}
	if n.Extension == "" {
		n.Extension = DefaultSourceNames.Extension
	}
	return n
}

// Collections names the remote collection for each section.
type Collections struct {
	Brands     string
	Categories string
	Products   string
}

var DefaultCollections = Collections{
	Brands:     models.SectionBrands,
	Categories: models.SectionCategories,
	Products:   models.SectionProducts,
}

// ImportRequest parameterizes one ImportSmart call.
type ImportRequest struct {
	Overwrite         bool
	Sources           SourceNames
	ChecksumNamespace string
	DryRun            bool
	PruneMissing      bool
}

// ImportServiceConfig wires an ImportService. Store may be nil, in which
// case the service reports itself as not configured.
type ImportServiceConfig struct {
	Store             repository.DocumentStore
	Source            loader.Source
	Checksums         func(namespace string) *checksum.Store
	Executor          *BatchExecutor
	Collections       Collections
	ChunkSize         int
	LookupConcurrency int
	Logger            *zap.Logger
}

// ImportService loads seed sections and converges the remote store to them.
type ImportService struct {
	store       repository.DocumentStore
	source      loader.Source
	checksums   func(namespace string) *checksum.Store
	executor    *BatchExecutor
	builder     *DryRunBuilder
	collections Collections
	chunkSize   int
	concurrency int
	logger      *zap.Logger
}

func NewImportService(cfg ImportServiceConfig) *ImportService {
	l := logger.OrNop(cfg.Logger)
	if cfg.Collections.Brands == "" {
		cfg.Collections.Brands = DefaultCollections.Brands
	}
	if cfg.Collections.Categories == "" {
		cfg.Collections.Categories = DefaultCollections.Categories
	}
	if cfg.Collections.Products == "" {
		cfg.Collections.Products = DefaultCollections.Products
	}
	if cfg.LookupConcurrency < 1 {
		cfg.LookupConcurrency = DefaultLookupConcurrency
	}

	if cfg.Checksums == nil {
		cfg.Checksums = checksum.Factory(kv.NewMemoryStore())
	}

	chunk := cfg.ChunkSize
	if chunk < 1 {
		chunk = DefaultChunkSize
	}

	s := &ImportService{
		store:       cfg.Store,
		source:      cfg.Source,
		checksums:   cfg.Checksums,
		executor:    cfg.Executor,
		collections: cfg.Collections,
		chunkSize:   chunk,
		concurrency: cfg.LookupConcurrency,
		logger:      l,
	}
	if cfg.Store != nil {
		if limit := repository.MaxBatchSize(cfg.Store); limit > 0 && limit < s.chunkSize {
			s.chunkSize = limit
		}
		if s.executor == nil {
			s.executor = NewBatchExecutor(cfg.Store, WithExecutorLogger(l))
		}
		s.builder = NewDryRunBuilder(cfg.Store, cfg.LookupConcurrency, l)
	}
	return s
}

// Configured reports whether a remote store is available.
func (s *ImportService) Configured() bool {
	return s.store != nil
}

// LoadSections reads and decodes the three seed resources in section order.
func (s *ImportService) LoadSections(ctx context.Context, names SourceNames) ([]models.Section, error) {
	names = names.withDefaults()

	brands, err := loader.LoadRecords[models.Brand](ctx, s.source, names.Brands, names.Extension)
	if err != nil {
		return nil, fmt.Errorf("load brands: %w", err)
	}
	categories, err := loader.LoadRecords[models.Category](ctx, s.source, names.Categories, names.Extension)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	products, err := loader.LoadRecords[models.Product](ctx, s.source, names.Products, names.Extension)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	bs := models.BrandSection(s.collections.Brands, brands.Records)
	bs.Digest = brands.Digest
	cs := models.CategorySection(s.collections.Categories, categories.Records)
	cs.Digest = categories.Digest
	ps := models.ProductSection(s.collections.Products, products.Records)
	ps.Digest = products.Digest

	return []models.Section{bs, cs, ps}, nil
}

// ImportSmart builds a dry-run report and, unless req.DryRun is set, syncs
// every section that changed since its last successful write. Sections whose
// source digest matches the stored checksum and that have nothing pending
// make no remote calls. Any failure aborts the whole call.
func (s *ImportService) ImportSmart(ctx context.Context, req ImportRequest) (*models.DryRunReport, *models.ImportOutcome, error) {
	if !s.Configured() {
		return nil, nil, apperrors.Wrap(apperrors.ErrStoreNotConfigured, nil)
	}

	sections, err := s.LoadSections(ctx, req.Sources)
	if err != nil {
		return nil, nil, err
	}
	sums := s.checksums(req.ChecksumNamespace)

	report, err := s.builder.BuildReport(ctx, sections)
	if err != nil {
		return nil, nil, err
	}

	outcome := models.NewImportOutcome()
	if req.DryRun {
		return report, outcome, nil
	}

	for _, sec := range sections {
		res, _ := report.Section(sec.Key)

		stored, ok, err := sums.Get(ctx, sec.Key)
		if err != nil {
			return report, nil, err
		}
		changed := !ok || stored != sec.Digest

		if !syncNeeded(changed, res, req.PruneMissing) {
			s.logger.Debug("section unchanged, skipping", zap.String("section", sec.Key))
			outcome.Set(sec.Key, models.SectionWriteResult{})
			continue
		}

		start := time.Now()
		wr, err := s.syncSection(ctx, sec, req.Overwrite, req.PruneMissing)
		if err != nil {
			return report, nil, fmt.Errorf("sync %s: %w", sec.Key, err)
		}
		if wr.DidWrite() {
			if err := sums.Set(ctx, sec.Key, sec.Digest); err != nil {
				return report, nil, err
			}
		}
		outcome.Set(sec.Key, wr)

		s.logger.Info("section synced",
			zap.String("section", sec.Key),
			zap.Int("upserted", wr.Upserted),
			zap.Int("deleted", wr.Deleted),
			zap.Duration("took", time.Since(start)),
		)
	}

	return report, outcome, nil
}

func syncNeeded(changed bool, res models.SectionResult, prune bool) bool {
	return changed || res.WillCreate > 0 || res.WillUpdate > 0 || (prune && res.WillDelete > 0)
}

func (s *ImportService) syncSection(ctx context.Context, sec models.Section, overwrite, prune bool) (models.SectionWriteResult, error) {
	var wr models.SectionWriteResult

	if prune {
		deleted, err := s.pruneOrphans(ctx, sec)
		if err != nil {
			return wr, err
		}
		wr.Deleted = deleted
	}

	for start := 0; start < len(sec.Records); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(sec.Records) {
			end = len(sec.Records)
		}
		n, err := s.upsertChunk(ctx, sec, sec.Records[start:end], overwrite)
		if err != nil {
			return wr, err
		}
		wr.Upserted += n
	}
	return wr, nil
}

// pruneOrphans re-lists the collection and deletes ids with no local record.
func (s *ImportService) pruneOrphans(ctx context.Context, sec models.Section) (int, error) {
	remoteIDs, err := s.store.ListIDs(ctx, sec.Collection)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", sec.Collection, err)
	}
	ids := orphans(remoteIDs, sec.IDSet())
	if len(ids) == 0 {
		return 0, nil
	}

	refs := make([]repository.DocRef, len(ids))
	for i, id := range ids {
		refs[i] = repository.DocRef{Collection: sec.Collection, ID: id}
	}

	batch := len(refs)
	if limit := repository.MaxBatchSize(s.store); limit > 0 && limit < batch {
		batch = limit
	}
	for start := 0; start < len(refs); start += batch {
		end := start + batch
		if end > len(refs) {
			end = len(refs)
		}
		if err := s.executor.CommitDeletes(ctx, refs[start:end]); err != nil {
			return start, err
		}
	}
	return len(refs), nil
}

// upsertChunk checks which records exist, then commits the chunk as one batch.
// Existing records are skipped unless overwrite is set.
func (s *ImportService) upsertChunk(ctx context.Context, sec models.Section, records []models.Record, overwrite bool) (int, error) {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.RecordID()
	}
	found, err := lookupAll(ctx, s.store, sec.Collection, ids, s.concurrency)
	if err != nil {
		return 0, err
	}

	ops := make([]repository.Upsert, 0, len(records))
	for i, r := range records {
		exists := found[i].exists
		if exists && !overwrite {
			continue
		}
		ops = append(ops, BuildUpsert(sec.Collection, r, !exists))
	}

	if err := s.executor.CommitUpserts(ctx, ops); err != nil {
		return 0, err
	}
	return len(ops), nil
}

// BuildUpsert maps r to a write with store-set timestamps. New documents
// get createdAt and are written whole; existing ones are merged.
func BuildUpsert(collection string, r models.Record, isNew bool) repository.Upsert {
	data := repository.Document(r.Fields())
	data["updatedAt"] = repository.ServerTimestamp
	if isNew {
		data["createdAt"] = repository.ServerTimestamp
	}
	return repository.Upsert{
		Collection: collection,
		ID:         r.RecordID(),
		Data:       data,
		Merge:      !isNew,
	}
}
