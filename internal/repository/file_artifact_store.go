package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"FinCast/internal/domain/models"
	"FinCast/internal/services/forest"
	applogger "FinCast/pkg/logger"
)

// ArtifactFormat tags the on-disk envelope so incompatible files are rejected.
const ArtifactFormat = "fincast-forest/v1"

const artifactSuffix = ".forest.json"

type artifactEnvelope struct {
	Format     string               `json:"format"`
	Instrument string               `json:"instrument"`
	Schema     models.FeatureSchema `json:"schema"`
	Meta       models.ModelMeta     `json:"meta"`
	Forest     *forest.Forest       `json:"forest"`
}

// FileArtifactStore keeps one JSON artifact per instrument in a directory.
// Writes go through a temp file and rename, so readers never observe a
// partially written artifact.
type FileArtifactStore struct {
	dir string
	l   *applogger.Logger
}

func NewFileArtifactStore(dir string) (*FileArtifactStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileArtifactStore{dir: dir}, nil
}

// SetLogger injects a structured logger.
func (s *FileArtifactStore) SetLogger(l *applogger.Logger) { s.l = l }

// Key maps an instrument symbol to a filesystem-safe artifact id.
func (s *FileArtifactStore) Key(instrument string) models.ArtifactID {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(instrument)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '-', r == '^', r == '=':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return models.ArtifactID(b.String())
}

func (s *FileArtifactStore) path(id models.ArtifactID) string {
	return filepath.Join(s.dir, string(id)+artifactSuffix)
}

func (s *FileArtifactStore) Save(ctx context.Context, m *models.Model) (models.ArtifactID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m == nil || m.Instrument == "" {
		return "", fmt.Errorf("save artifact: model without instrument")
	}
	f, ok := m.Regressor.(*forest.Forest)
	if !ok {
		return "", fmt.Errorf("save artifact %s: unsupported regressor %T", m.Instrument, m.Regressor)
	}
	id := s.Key(m.Instrument)
	raw, err := json.Marshal(artifactEnvelope{
		Format:     ArtifactFormat,
		Instrument: m.Instrument,
		Schema:     m.Schema,
		Meta:       m.Meta,
		Forest:     f,
	})
	if err != nil {
		return "", fmt.Errorf("encode artifact %s: %w", id, err)
	}
	if err := writeAtomic(s.dir, s.path(id), raw); err != nil {
		if s.l != nil {
			s.l.Error("artifact save failed", applogger.String("artifact", string(id)), applogger.Error(err))
		}
		return "", fmt.Errorf("write artifact %s: %w", id, err)
	}
	if s.l != nil {
		s.l.Info("artifact saved",
			applogger.String("artifact", string(id)),
			applogger.Int("bytes", len(raw)),
			applogger.Int("trees", len(f.Trees)),
		)
	}
	return id, nil
}

func (s *FileArtifactStore) Load(ctx context.Context, instrument string) (*models.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := s.Key(instrument)
	raw, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load artifact %s: %w", id, models.ErrModelNotFound)
		}
		return nil, fmt.Errorf("read artifact %s: %w", id, err)
	}
	var env artifactEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", id, err)
	}
	if env.Format != ArtifactFormat {
		return nil, fmt.Errorf("artifact %s: unsupported format %q", id, env.Format)
	}
	if env.Forest == nil {
		return nil, fmt.Errorf("artifact %s: missing forest", id)
	}
	if err := env.Forest.Validate(); err != nil {
		return nil, fmt.Errorf("artifact %s: %w", id, err)
	}
	return &models.Model{
		Instrument: env.Instrument,
		Schema:     env.Schema,
		Meta:       env.Meta,
		Regressor:  env.Forest,
	}, nil
}

func (s *FileArtifactStore) Exists(ctx context.Context, instrument string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(s.Key(instrument)))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Delete removes the artifact for instrument; a missing artifact is not an error.
func (s *FileArtifactStore) Delete(ctx context.Context, instrument string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(s.path(s.Key(instrument)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func writeAtomic(dir, dst string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer os.Remove(name) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(name, dst)
}
