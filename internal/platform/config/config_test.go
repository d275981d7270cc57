package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "atlas-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.ShutdownTimeout != 20*time.Second {
		t.Errorf("unexpected shutdown timeout: %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Firestore.ProjectID != "atlas-dev" {
		t.Errorf("unexpected firestore project: %s", cfg.Firestore.ProjectID)
	}
	if cfg.Events.Enabled {
		t.Error("expected events publishing disabled by default")
	}
	if cfg.Events.ProjectID != "atlas-dev" {
		t.Errorf("expected events project to default to firestore project, got %s", cfg.Events.ProjectID)
	}
	if cfg.Events.TopicID != defaultEventsTopic {
		t.Errorf("unexpected default events topic: %s", cfg.Events.TopicID)
	}
	if cfg.Checkout.Currency != "MAD" {
		t.Errorf("expected default currency MAD, got %s", cfg.Checkout.Currency)
	}
	if cfg.Security.Environment != "local" {
		t.Errorf("expected default security environment local, got %s", cfg.Security.Environment)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":               "9090",
		"API_SERVER_READ_TIMEOUT":       "20s",
		"API_SERVER_WRITE_TIMEOUT":      "25s",
		"API_SERVER_IDLE_TIMEOUT":       "2m",
		"API_FIRESTORE_PROJECT_ID":      "atlas-prod",
		"API_FIRESTORE_EMULATOR_HOST":   "localhost:8200",
		"API_EVENTS_ENABLED":            "true",
		"API_EVENTS_PROJECT_ID":         "atlas-events",
		"API_EVENTS_TOPIC_ID":           "storefront-orders",
		"API_CHECKOUT_CURRENCY":         "mad",
		"API_SECURITY_ENVIRONMENT":      "prod",
		"API_SECURITY_ADMIN_JWT_SECRET": "secret://admin/jwt",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref == "secret://admin/jwt" {
			return "jwt-signing-key", nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 25*time.Second {
		t.Errorf("unexpected write timeout: %s", cfg.Server.WriteTimeout)
	}
	if cfg.Firestore.EmulatorHost != "localhost:8200" {
		t.Errorf("unexpected emulator host: %s", cfg.Firestore.EmulatorHost)
	}
	if !cfg.Events.Enabled {
		t.Error("expected events publishing enabled")
	}
	if cfg.Events.ProjectID != "atlas-events" {
		t.Errorf("unexpected events project: %s", cfg.Events.ProjectID)
	}
	if cfg.Events.TopicID != "storefront-orders" {
		t.Errorf("unexpected events topic: %s", cfg.Events.TopicID)
	}
	if cfg.Checkout.Currency != "MAD" {
		t.Errorf("expected currency upper-cased, got %s", cfg.Checkout.Currency)
	}
	if cfg.Security.AdminJWTSecret != "jwt-signing-key" {
		t.Errorf("expected resolved admin secret, got %q", cfg.Security.AdminJWTSecret)
	}
}

func TestLoadValidationFailures(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error when firestore project missing")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := validation.Fields()
	if len(fields) == 0 || fields[0] != "Firestore.ProjectID" {
		t.Errorf("expected Firestore.ProjectID in missing fields, got %v", fields)
	}
}

func TestLoadRequiresAdminSecretOutsideLocal(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "atlas-prod",
		"API_SECURITY_ENVIRONMENT": "prod",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	found := false
	for _, field := range validation.Fields() {
		if field == "Security.AdminJWTSecret" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected Security.AdminJWTSecret in missing fields, got %v", validation.Fields())
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	contents := "# local overrides\nexport API_SERVER_PORT=7070\nAPI_FIRESTORE_PROJECT_ID=\"atlas-local\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(path))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from env file, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "atlas-local" {
		t.Errorf("expected quoted value trimmed, got %s", cfg.Firestore.ProjectID)
	}
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID":      "atlas-prod",
		"API_SECURITY_ADMIN_JWT_SECRET": "sm://admin/jwt",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if secretErr.Ref != "secret://admin/jwt" {
		t.Errorf("expected sm:// reference normalised, got %s", secretErr.Ref)
	}
}
