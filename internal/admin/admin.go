// Package admin creates accounts, locations and streams. It never updates
// or deletes.
package admin

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"surveybox/internal/docstore"
)

const (
	accountsCollection = "accounts"
	streamsCollection  = "streams"
)

type Admin struct {
	store docstore.Store
	log   *zap.Logger
}

func New(store docstore.Store, log *zap.Logger) *Admin {
	return &Admin{store: store, log: log}
}

func (a *Admin) CreateAccount(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", errors.New("account name is required")
	}
	id, err := a.store.Create(ctx, accountsCollection, map[string]any{"name": name})
	if err != nil {
		return "", fmt.Errorf("create account: %w", err)
	}
	a.log.Info("account created", zap.String("id", id), zap.String("name", name))
	return id, nil
}

func (a *Admin) CreateLocation(ctx context.Context, accountID, name string, lat, lon float64) (string, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", fmt.Errorf("coordinates %v,%v out of range", lat, lon)
	}
	if err := a.exists(ctx, docstore.Join(accountsCollection, accountID)); err != nil {
		return "", err
	}
	id, err := a.store.Create(ctx, locationsOf(accountID), map[string]any{
		"name":   name,
		"coords": docstore.GeoPoint{Lat: lat, Lng: lon},
	})
	if err != nil {
		return "", fmt.Errorf("create location: %w", err)
	}
	a.log.Info("location created", zap.String("account", accountID), zap.String("id", id), zap.String("name", name))
	return id, nil
}

// CreateStream adds a stream whose location field references the location
// document.
func (a *Admin) CreateStream(ctx context.Context, accountID, locationID, name string) (string, error) {
	loc := docstore.Join(locationsOf(accountID), locationID)
	if err := a.exists(ctx, loc); err != nil {
		return "", err
	}
	id, err := a.store.Create(ctx, streamsCollection, map[string]any{
		"name":     name,
		"location": docstore.Ref{Path: loc},
	})
	if err != nil {
		return "", fmt.Errorf("create stream: %w", err)
	}
	a.log.Info("stream created", zap.String("location", loc), zap.String("id", id), zap.String("name", name))
	return id, nil
}

func locationsOf(accountID string) string {
	return docstore.Join(accountsCollection, accountID, "locations")
}

func (a *Admin) exists(ctx context.Context, doc string) error {
	if _, err := docstore.Doc(doc); err != nil {
		return err
	}
	if _, err := a.store.Get(ctx, doc); err != nil {
		return fmt.Errorf("%s: %w", doc, err)
	}
	return nil
}
