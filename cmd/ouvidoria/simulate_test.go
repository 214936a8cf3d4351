package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/ouvidoria/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simulationConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Intake:  config.IntakeConfig{Flow: "short", SessionTimeout: "5m", IssueCredentials: true},
		Records: config.RecordsConfig{Path: filepath.Join(t.TempDir(), "records.db"), Table: "denuncias"},
	}
}

func TestRunSimulation_SubmitsReport(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	in := strings.NewReader("oi\n1\nO supervisor ameaçou a equipe do turno da noite\n1\n/sair\n")
	var out bytes.Buffer

	err := runSimulation(ctx, simulationConfig(t), simulationOptions{sender: "+5511912345678", in: in, out: &out})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Escolha uma opção")
	assert.Contains(t, text, "Protocolo: ")
	assert.Contains(t, text, "Senha: ")
}

func TestRunSimulation_PersistWritesRecordsFile(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := simulationConfig(t)
	in := strings.NewReader("oi\n1\nPagamento fora do contrato\n1\n")
	var out bytes.Buffer

	require.NoError(t, runSimulation(ctx, cfg, simulationOptions{sender: "+5511900001111", persist: true, in: in, out: &out}))
	assert.FileExists(t, cfg.Records.Path)
}

func TestOwnAddresses(t *testing.T) {
	saved := cfg
	t.Cleanup(func() { cfg = saved })

	cfg = &config.Config{}
	assert.Empty(t, ownAddresses())

	cfg.Adapters.Twilio = config.TwilioConfig{Enabled: true, From: "+14155238886"}
	assert.Equal(t, []string{"+14155238886", "whatsapp:+14155238886"}, ownAddresses())

	cfg.Adapters.Twilio.From = "whatsapp:+14155238886"
	assert.Equal(t, []string{"whatsapp:+14155238886"}, ownAddresses())
}
