// Package modelstore persists trained models as JSON artifacts with a
// SHA-256 checksum manifest, and refuses to load artifacts that fail it.
package modelstore

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/smartcity/predictor/internal/ml"
)

var (
	// ErrNotFound is returned when no complete artifact set is stored
	ErrNotFound = errors.New("modelstore: model not found")
	// ErrIntegrity is returned when an artifact does not match its checksum
	ErrIntegrity = errors.New("modelstore: checksum mismatch")
)

// Artifact file names
const (
	PollutantFile  = "pollutant_model.json"
	CongestionFile = "congestion_model.json"
	ScalerFile     = "scaler.json"
	MetricsFile    = "metrics.json"
	ManifestFile   = "checksums.txt"
)

// artifactOrder is the order of manifest lines
var artifactOrder = []string{PollutantFile, CongestionFile, ScalerFile, MetricsFile}

// Store reads and writes one model artifact set in a directory
type Store struct {
	dir    string
	logger *zap.Logger
}

// New creates a store rooted at dir
func New(dir string, logger *zap.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Dir returns the artifact directory
func (s *Store) Dir() string {
	return s.dir
}

// Save writes every artifact, then the manifest. Each file is written to a
// temporary name and renamed into place.
func (s *Store) Save(m *ml.Model) error {
	if m == nil || m.Pollutant == nil || m.Congestion == nil || m.Scaler == nil {
		return ml.ErrNotTrained
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("modelstore: failed to create %s: %w", s.dir, err)
	}

	payloads := map[string]any{
		PollutantFile:  m.Pollutant,
		CongestionFile: m.Congestion,
		ScalerFile:     m.Scaler,
		MetricsFile:    m.Metrics,
	}

	var manifest bytes.Buffer
	for _, name := range artifactOrder {
		data, err := json.Marshal(payloads[name])
		if err != nil {
			return fmt.Errorf("modelstore: failed to encode %s: %w", name, err)
		}
		if err := s.writeFile(name, data); err != nil {
			return err
		}
		fmt.Fprintf(&manifest, "%s:%s\n", name, checksum(data))
	}

	if err := s.writeFile(ManifestFile, manifest.Bytes()); err != nil {
		return err
	}

	s.logger.Info("Saved model artifacts", zap.String("dir", s.dir))
	return nil
}

// Load reads and verifies the artifact set. A missing artifact or manifest
// yields ErrNotFound; a checksum mismatch yields ErrIntegrity.
func (s *Store) Load() (*ml.Model, error) {
	manifest, err := s.readManifest()
	if err != nil {
		return nil, err
	}

	blobs := make(map[string][]byte, len(artifactOrder))
	for _, name := range artifactOrder {
		want, ok := manifest[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s missing from manifest", ErrNotFound, name)
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
			}
			return nil, fmt.Errorf("modelstore: failed to read %s: %w", name, err)
		}

		if got := checksum(data); got != want {
			s.logger.Warn("Model artifact failed checksum verification",
				zap.String("artifact", name),
				zap.String("expected", want),
				zap.String("actual", got))
			return nil, fmt.Errorf("%w: %s", ErrIntegrity, name)
		}
		blobs[name] = data
	}

	m := &ml.Model{
		Pollutant:  &ml.GradientBoosting{},
		Congestion: &ml.RandomForest{},
		Scaler:     &ml.Scaler{},
	}
	targets := map[string]any{
		PollutantFile:  m.Pollutant,
		CongestionFile: m.Congestion,
		ScalerFile:     m.Scaler,
		MetricsFile:    &m.Metrics,
	}
	for _, name := range artifactOrder {
		if err := json.Unmarshal(blobs[name], targets[name]); err != nil {
			return nil, fmt.Errorf("modelstore: failed to decode %s: %w", name, err)
		}
	}

	s.logger.Info("Loaded model artifacts",
		zap.String("dir", s.dir),
		zap.Time("trained_at", m.Metrics.TrainedAt))
	return m, nil
}

func (s *Store) readManifest() (map[string]string, error) {
	f, err := os.Open(filepath.Join(s.dir, ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no %s", ErrNotFound, ManifestFile)
		}
		return nil, fmt.Errorf("modelstore: failed to open manifest: %w", err)
	}
	defer f.Close()

	manifest := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		name, hash, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: malformed manifest line %q", ErrIntegrity, line)
		}
		manifest[name] = hash
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("modelstore: failed to read manifest: %w", err)
	}
	return manifest, nil
}

func (s *Store) writeFile(name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("modelstore: failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("modelstore: failed to replace %s: %w", name, err)
	}
	return nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
