package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yashrajoria/catalog-seeder/logger"
	"github.com/yashrajoria/catalog-seeder/models"
	"github.com/yashrajoria/catalog-seeder/repository"
)

// DryRunBuilder classifies local records against remote state without
// writing anything.
type DryRunBuilder struct {
	store       repository.DocumentStore
	concurrency int
	logger      *zap.Logger
}

func NewDryRunBuilder(store repository.DocumentStore, concurrency int, l *zap.Logger) *DryRunBuilder {
	if concurrency < 1 {
		concurrency = DefaultLookupConcurrency
	}
	return &DryRunBuilder{store: store, concurrency: concurrency, logger: logger.OrNop(l)}
}

// BuildReport returns one result per section, in the given order.
func (b *DryRunBuilder) BuildReport(ctx context.Context, sections []models.Section) (*models.DryRunReport, error) {
	report := &models.DryRunReport{Sections: make([]models.SectionResult, 0, len(sections))}
	for _, s := range sections {
		res, err := b.BuildSection(ctx, s)
		if err != nil {
			return nil, err
		}
		report.Sections = append(report.Sections, res)
	}
	return report, nil
}

// BuildSection looks up every local id and lists remote ids concurrently,
// then counts creates, updates, skips and orphaned remote documents.
func (b *DryRunBuilder) BuildSection(ctx context.Context, s models.Section) (models.SectionResult, error) {
	ids := s.IDs()

	var (
		existing  []lookupResult
		remoteIDs []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		existing, err = lookupAll(gctx, b.store, s.Collection, ids, b.concurrency)
		return err
	})
	g.Go(func() error {
		var err error
		remoteIDs, err = b.store.ListIDs(gctx, s.Collection)
		if err != nil {
			return fmt.Errorf("list %s: %w", s.Collection, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.SectionResult{}, fmt.Errorf("dry-run %s: %w", s.Key, err)
	}

	res := models.SectionResult{Name: s.Key, TotalJSON: len(s.Records)}
	for i, rec := range s.Records {
		found := existing[i]
		if !found.exists {
			res.WillCreate++
			continue
		}
		same, err := SameFields(rec.Fields(), found.doc, s.CompareKeys)
		if err != nil {
			return models.SectionResult{}, fmt.Errorf("compare %s/%s: %w", s.Collection, rec.RecordID(), err)
		}
		if same {
			res.WillSkip++
		} else {
			res.WillUpdate++
		}
	}
	res.WillDelete = len(orphans(remoteIDs, s.IDSet()))

	b.logger.Debug("dry-run section classified",
		zap.String("section", s.Key),
		zap.Int("create", res.WillCreate),
		zap.Int("update", res.WillUpdate),
		zap.Int("skip", res.WillSkip),
		zap.Int("delete", res.WillDelete),
	)
	return res, nil
}

// orphans returns remote ids with no local counterpart, in remote order.
func orphans(remoteIDs []string, local map[string]struct{}) []string {
	var out []string
	for _, id := range remoteIDs {
		if _, ok := local[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Canonical renders the keys of doc that are present as JSON with sorted keys.
func Canonical(doc map[string]interface{}, keys []string) (string, error) {
	projected := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		if v, ok := doc[k]; ok {
			projected[k] = v
		}
	}
	b, err := json.Marshal(projected)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SameFields reports whether local and remote agree on every compare key.
func SameFields(local, remote map[string]interface{}, keys []string) (bool, error) {
	l, err := Canonical(local, keys)
	if err != nil {
		return false, err
	}
	r, err := Canonical(remote, keys)
	if err != nil {
		return false, err
	}
	return l == r, nil
}
