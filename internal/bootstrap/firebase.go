package bootstrap

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/appforge-labs/appforge-backend/config"
)

// FirebaseClients bundles the Firebase-backed dependencies: the identity
// provider and the document store. Constructed once at startup and
// injected; nothing initializes at import time.
type FirebaseClients struct {
	Auth      *auth.Client
	Firestore *firestore.Client
}

func InitializeFirebase(ctx context.Context, cfg *config.FirebaseConfig) (*FirebaseClients, error) {
	if cfg.CredentialsPath == "" {
		return nil, fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required")
	}

	opt := option.WithCredentialsFile(cfg.CredentialsPath)
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Auth client: %w", err)
	}

	fsClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Firestore client: %w", err)
	}

	return &FirebaseClients{Auth: authClient, Firestore: fsClient}, nil
}

func (f *FirebaseClients) Close() {
	if f != nil && f.Firestore != nil {
		_ = f.Firestore.Close()
	}
}
