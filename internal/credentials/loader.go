// --- File: internal/credentials/loader.go ---
// Package credentials turns the service-account material held in process
// configuration into an initialized FCM messaging client.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/caarlos0/env/v11"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/tinywideclouds/go-notification-bridge/internal/platform/fcm"
	"github.com/tinywideclouds/go-notification-bridge/pkg/dispatch"
)

const googleTokenURI = "https://oauth2.googleapis.com/token"

// Settings is the raw credential material. PrivateKey is a JSON object whose
// "privateKey" field holds the PEM key, as stored by the secrets manager.
type Settings struct {
	ProjectID   string `env:"FIREBASE_PROJECT_ID"`
	PrivateKey  string `env:"FIREBASE_PRIVATE_KEY"`
	ClientEmail string `env:"FIREBASE_CLIENT_EMAIL"`
}

// SettingsSource reads Settings from process configuration.
type SettingsSource func() (Settings, error)

// FromEnv reads Settings from the process environment.
func FromEnv() SettingsSource {
	return func() (Settings, error) {
		return env.ParseAs[Settings]()
	}
}

// ClientFactory creates a messaging client from a service-account JSON document.
type ClientFactory func(ctx context.Context, projectID string, serviceAccountJSON []byte) (fcm.MessagingClient, error)

// NewFirebaseClient is the production ClientFactory.
func NewFirebaseClient(ctx context.Context, projectID string, serviceAccountJSON []byte) (fcm.MessagingClient, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentialsJSON(serviceAccountJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return client, nil
}

type serviceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
	TokenURI    string `json:"token_uri"`
}

// Loader lazily initializes the messaging client once per process.
// Failed attempts cache nothing, so the next trigger tries again.
type Loader struct {
	source  SettingsSource
	factory ClientFactory
	logger  *slog.Logger

	mu     sync.Mutex
	client fcm.MessagingClient
}

func NewLoader(source SettingsSource, factory ClientFactory, logger *slog.Logger) *Loader {
	return &Loader{
		source:  source,
		factory: factory,
		logger:  logger.With("component", "CredentialLoader"),
	}
}

// EnsureInitialized returns the cached client, creating it on the first call.
// Failures are reported as *dispatch.ConfigurationError.
func (l *Loader) EnsureInitialized(ctx context.Context) (fcm.MessagingClient, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.client != nil {
		return l.client, nil
	}

	settings, err := l.source()
	if err != nil {
		return nil, &dispatch.ConfigurationError{Stage: dispatch.StageKeyDecode, Err: fmt.Errorf("failed to read credential settings: %w", err)}
	}

	privateKey, err := decodePrivateKey(settings.PrivateKey)
	if err != nil {
		l.logger.Error("Failed to decode private key", "err", err)
		return nil, &dispatch.ConfigurationError{Stage: dispatch.StageKeyDecode, Err: err}
	}

	if settings.ProjectID == "" || settings.ClientEmail == "" {
		return nil, &dispatch.ConfigurationError{
			Stage: dispatch.StageClientInit,
			Err:   errors.New("project id and client email are required"),
		}
	}

	saJSON, err := json.Marshal(serviceAccount{
		Type:        "service_account",
		ProjectID:   settings.ProjectID,
		PrivateKey:  privateKey,
		ClientEmail: settings.ClientEmail,
		TokenURI:    googleTokenURI,
	})
	if err != nil {
		return nil, &dispatch.ConfigurationError{Stage: dispatch.StageClientInit, Err: err}
	}

	l.logger.Info("Initializing Firebase", "project_id", settings.ProjectID, "client_email", settings.ClientEmail)
	client, err := l.factory(ctx, settings.ProjectID, saJSON)
	if err != nil {
		l.logger.Error("Failed to initialize Firebase", "err", err)
		return nil, &dispatch.ConfigurationError{Stage: dispatch.StageClientInit, Err: err}
	}

	l.client = client
	l.logger.Info("Firebase messaging client initialized")
	return client, nil
}

func decodePrivateKey(blob string) (string, error) {
	if blob == "" {
		return "", errors.New("private key blob is empty")
	}
	var holder struct {
		PrivateKey string `json:"privateKey"`
	}
	if err := json.Unmarshal([]byte(blob), &holder); err != nil {
		return "", fmt.Errorf("failed to decode private key blob: %w", err)
	}
	if holder.PrivateKey == "" {
		return "", errors.New("private key blob has no privateKey field")
	}
	return NormalizePrivateKey(holder.PrivateKey), nil
}
