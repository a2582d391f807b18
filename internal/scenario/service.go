// Package scenario ingests transformation and validation artifacts: fetch a
// payload by URL, upsert it by name, and for XSLT transformations render the
// payload to disk where the remote compute session can read it.
package scenario

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/tulibraries/combine/internal/config"
	"github.com/tulibraries/combine/internal/store"
	"github.com/tulibraries/combine/pkg/models"
)

// ErrInvalidType means the artifact type is not one of the accepted values.
var ErrInvalidType = errors.New("invalid scenario type")

// maxPayloadBytes caps fetched artifact payloads.
const maxPayloadBytes = 10 << 20

// Service ingests scenario artifacts.
type Service struct {
	store   store.Store
	storage config.StorageConfig
	client  *http.Client
	logger  *slog.Logger
}

// NewService creates a scenario Service.
func NewService(st store.Store, storage config.StorageConfig, client *http.Client, logger *slog.Logger) *Service {
	if client == nil {
		client = http.DefaultClient
	}
	return &Service{store: st, storage: storage, client: client, logger: logger}
}

// IngestTransformation fetches a transformation payload by URL and upserts it
// by name. XSLT payloads are additionally written under the storage root's
// transformations directory; a replaced artifact's old file is removed.
func (s *Service) IngestTransformation(ctx context.Context, name, transformationType, payloadURL string) (*models.Transformation, error) {
	switch transformationType {
	case models.TransformationTypeXSLT, models.TransformationTypePython, models.TransformationTypeOpenRefine:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, transformationType)
	}

	payload, err := s.fetchPayload(ctx, payloadURL)
	if err != nil {
		return nil, err
	}

	t := &models.Transformation{
		Name:    name,
		Payload: payload,
		Type:    transformationType,
	}

	// Remove the previous on-disk rendering when replacing an artifact.
	if existing, err := s.store.GetTransformationByName(ctx, name); err == nil {
		if existing.FilePath != nil {
			if err := os.Remove(*existing.FilePath); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("could not remove previous transformation file",
					"name", name, "file", *existing.FilePath, "error", err)
			}
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking existing transformation: %w", err)
	}

	if transformationType == models.TransformationTypeXSLT {
		path, err := s.writeTransformation(payload)
		if err != nil {
			return nil, err
		}
		t.FilePath = &path
	}

	if err := s.store.UpsertTransformation(ctx, t); err != nil {
		return nil, fmt.Errorf("upserting transformation: %w", err)
	}

	s.logger.Info("ingested transformation",
		"name", t.Name, "type", t.Type, "transformation_id", t.ID)
	return t, nil
}

// IngestValidationScenario fetches a validation payload by URL and upserts it
// by name.
func (s *Service) IngestValidationScenario(ctx context.Context, name, validationType string, defaultRun bool, payloadURL string) (*models.ValidationScenario, error) {
	switch validationType {
	case models.ValidationTypeSchematron, models.ValidationTypePython,
		models.ValidationTypeESQuery, models.ValidationTypeXSD:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, validationType)
	}

	payload, err := s.fetchPayload(ctx, payloadURL)
	if err != nil {
		return nil, err
	}

	v := &models.ValidationScenario{
		Name:       name,
		Payload:    payload,
		Type:       validationType,
		DefaultRun: defaultRun,
	}
	if err := s.store.UpsertValidationScenario(ctx, v); err != nil {
		return nil, fmt.Errorf("upserting validation scenario: %w", err)
	}

	s.logger.Info("ingested validation scenario",
		"name", v.Name, "type", v.Type, "scenario_id", v.ID)
	return v, nil
}

// writeTransformation renders an XSLT payload to disk for the remote session.
func (s *Service) writeTransformation(payload string) (string, error) {
	dir := s.storage.TransformationsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating transformations directory: %w", err)
	}

	u := uuid.New()
	path := filepath.Join(dir, hex.EncodeToString(u[:])+".xsl")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		return "", fmt.Errorf("writing transformation file: %w", err)
	}
	return path, nil
}

func (s *Service) fetchPayload(ctx context.Context, payloadURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("building payload request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching payload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching payload: status %d from %s", resp.StatusCode, payloadURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return "", fmt.Errorf("reading payload: %w", err)
	}
	return string(body), nil
}
