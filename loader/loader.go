package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	apperrors "github.com/yashrajoria/catalog-seeder/errors"
	"github.com/yashrajoria/catalog-seeder/hasher"
	"github.com/yashrajoria/catalog-seeder/models"
)

// DefaultExtension is used when a request names no file extension.
const DefaultExtension = "json"

var validate = validator.New()

// Loaded is one decoded seed file with the raw bytes it came from.
type Loaded[T models.Record] struct {
	Records []T
	Raw     []byte
	Digest  string
}

// LoadRecords reads name.ext from src once, decodes it as a list of T and
// validates every record. Duplicate ids are rejected.
func LoadRecords[T models.Record](ctx context.Context, src Source, name, ext string) (*Loaded[T], error) {
	if ext == "" {
		ext = DefaultExtension
	}

	raw, err := src.Open(ctx, name, ext)
	if err != nil {
		return nil, err
	}

	records, err := decode[T](raw, ext)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrDecodeFailure, err, "decode %s.%s", name, ext)
	}

	if err := Validate(name, records); err != nil {
		return nil, err
	}

	return &Loaded[T]{Records: records, Raw: raw, Digest: hasher.Digest(raw)}, nil
}

func decode[T any](raw []byte, ext string) ([]T, error) {
	var out []T
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
	case "json":
		dec := json.NewDecoder(bytes.NewReader(raw))
		if err := dec.Decode(&out); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported seed format %q", ext)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// Validate runs struct validation on each record and rejects duplicate ids.
func Validate[T models.Record](name string, records []T) error {
	for i := range records {
		if err := validate.Struct(records[i]); err != nil {
			return apperrors.Wrapf(apperrors.ErrValidation, err, "%s[%d] (id %q) is invalid", name, i, records[i].RecordID())
		}
	}

	seen := make(map[string]int, len(records))
	for _, r := range records {
		seen[r.RecordID()]++
	}
	var dups []string
	for id, n := range seen {
		if n > 1 {
			dups = append(dups, id)
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		return apperrors.Wrapf(apperrors.ErrValidation, nil, "%s has duplicate ids: %s", name, strings.Join(dups, ", "))
	}
	return nil
}
