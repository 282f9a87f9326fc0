package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsundqvist/prefect/internal/admission"
	"github.com/rsundqvist/prefect/internal/secrets"
	"github.com/rsundqvist/prefect/internal/store"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newValidateApplier() *Applier {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return &Applier{
		admitter: admission.NewAdmitter(admission.Config{}, logger),
		cfg:      defaultConfig(),
		logger:   logger,
	}
}

func TestLoadManifest_YAML(t *testing.T) {
	path := writeManifest(t, `
work_pools:
  - name: docker-pool
    type: docker
    base_job_template:
      job_configuration:
        command: "{{ image }} run"
      variables:
        properties:
          image:
            type: string
flows:
  - name: nightly-etl
    tags: [prod]
deployments:
  - name: nightly
    flow: nightly-etl
    work_pool: docker-pool
    schedule:
      cron: "0 2 * * *"
    job_variables:
      image: busybox
variables:
  - name: api_url
    value: https://example.test
`)
	m, err := loadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.WorkPools, 1)
	require.Len(t, m.Deployments, 1)
	assert.Equal(t, "0 2 * * *", m.Deployments[0].Schedule.Cron)
	assert.Equal(t, "busybox", m.Deployments[0].JobVariables["image"])
}

func TestLoadManifest_JSON(t *testing.T) {
	path := writeManifest(t, `{"flows": [{"name": "etl"}]}`)
	m, err := loadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Flows, 1)
	assert.Equal(t, "etl", m.Flows[0].Name)
}

func TestLoadManifest_Malformed(t *testing.T) {
	path := writeManifest(t, "work_pools: [unclosed")
	_, err := loadManifest(path)
	assert.Error(t, err)
}

func TestApply_ValidateOnly(t *testing.T) {
	ap := newValidateApplier()
	m := &Manifest{
		WorkPools: []WorkPoolManifest{{
			Name: "pool",
			BaseJobTemplate: map[string]any{
				"job_configuration": map[string]any{"cmd": "{{ image }}"},
				"variables": map[string]any{
					"properties": map[string]any{"image": map[string]any{"type": "string"}},
				},
			},
		}},
		Flows: []FlowManifest{{Name: "etl"}},
		Deployments: []DeploymentManifest{{
			Name: "nightly", Flow: "etl", WorkPool: "pool",
			JobVariables: map[string]any{"image": "busybox"},
		}},
	}
	require.NoError(t, ap.Apply(context.Background(), m))
	assert.Equal(t, "prefect-agent", m.WorkPools[0].Type)
}

func TestApply_RejectsUndeclaredTemplateVariable(t *testing.T) {
	ap := newValidateApplier()
	m := &Manifest{
		WorkPools: []WorkPoolManifest{{
			Name: "pool",
			BaseJobTemplate: map[string]any{
				"job_configuration": map[string]any{"cmd": "{{ image }} {{ cpu }}"},
				"variables": map[string]any{
					"properties": map[string]any{"image": map[string]any{"type": "string"}},
				},
			},
		}},
	}
	err := ap.Apply(context.Background(), m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cpu")
}

func TestApply_RejectsBadJobVariables(t *testing.T) {
	ap := newValidateApplier()
	m := &Manifest{
		WorkPools: []WorkPoolManifest{{
			Name: "pool",
			BaseJobTemplate: map[string]any{
				"job_configuration": map[string]any{"cmd": "{{ image }}"},
				"variables": map[string]any{
					"properties": map[string]any{"image": map[string]any{"type": "string"}},
					"required":   []any{"image"},
				},
			},
		}},
		Deployments: []DeploymentManifest{{
			Name: "nightly", Flow: "etl", WorkPool: "pool",
		}},
	}
	err := ap.Apply(context.Background(), m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image")
}

func newPersistApplier(t *testing.T, sealed bool) *Applier {
	t.Helper()
	s, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "apply.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	ap := newValidateApplier()
	ap.store = s
	if sealed {
		v, err := secrets.NewAESVault(secrets.VaultConfig{MasterKey: make([]byte, 32)})
		require.NoError(t, err)
		ap.docs = secrets.NewSealedDocuments(v, s)
	}
	return ap
}

func TestApply_BlockDocumentSealed(t *testing.T) {
	ap := newPersistApplier(t, true)
	m := &Manifest{Blocks: []BlockManifest{{
		Name:      "aws-creds",
		BlockType: "aws-credentials",
		Data:      map[string]any{"secret_access_key": "shhh"},
	}}}
	require.NoError(t, ap.Apply(context.Background(), m))

	// The persisted row holds only the sealed envelope.
	row, err := ap.store.GetBlockDocumentByName(context.Background(), "aws-creds")
	require.NoError(t, err)
	assert.NotContains(t, string(row.Data), "shhh")
	assert.Contains(t, string(row.Data), "ciphertext")

	opened, err := ap.docs.Get(context.Background(), row.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"secret_access_key":"shhh"}`, string(opened.Data))
}

func TestApply_BlockDocumentPlaintextWithoutVault(t *testing.T) {
	ap := newPersistApplier(t, false)
	m := &Manifest{Blocks: []BlockManifest{{
		Name:      "registry",
		BlockType: "docker-registry",
		Data:      map[string]any{"username": "ci"},
	}}}
	require.NoError(t, ap.Apply(context.Background(), m))

	row, err := ap.store.GetBlockDocumentByName(context.Background(), "registry")
	require.NoError(t, err)
	assert.Contains(t, string(row.Data), "ci")
}

func TestApply_RejectsUnnamedNamedBlock(t *testing.T) {
	ap := newValidateApplier()
	m := &Manifest{Blocks: []BlockManifest{{BlockType: "aws-credentials"}}}
	err := ap.Apply(context.Background(), m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anonymous")
}

func TestApply_DeploymentWithoutPoolSkipsTemplateCheck(t *testing.T) {
	ap := newValidateApplier()
	m := &Manifest{
		Deployments: []DeploymentManifest{{
			Name: "standalone", Flow: "etl",
			JobVariables: map[string]any{"whatever": true},
		}},
	}
	assert.NoError(t, ap.Apply(context.Background(), m))
}
