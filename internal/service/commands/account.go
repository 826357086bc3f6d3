package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/carnival/internal/catalog"
	"github.com/oshokin/carnival/internal/domain/product"
	"github.com/oshokin/carnival/internal/logger"
)

// Login signs in, stores the session and syncs the library.
func (a *App) Login(ctx context.Context, creds catalog.Credentials) error {
	if creds.Username == "" {
		return errUsernameRequired
	}

	session, err := a.client.Authenticate(ctx, creds)
	if err != nil {
		return err
	}

	if err = a.session.Store(ctx, *session); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	a.hasSession = true

	result, err := a.Sync(ctx)
	if err != nil {
		return err
	}

	a.printf("Signed in as %s\n", result.User.String())

	return nil
}

// Logout forgets the session, the profile and the synced library.
// Installed titles are kept.
func (a *App) Logout(ctx context.Context) error {
	err := errors.Join(
		a.session.Clear(ctx),
		a.user.Clear(ctx),
		a.library.Clear(ctx),
	)
	if err != nil {
		return err
	}

	a.hasSession = false
	a.printf("Signed out\n")

	return nil
}

// Sync refreshes the profile and the library from the storefront.
func (a *App) Sync(ctx context.Context) (*catalog.SyncResult, error) {
	result, err := a.client.Sync(ctx)
	if err != nil {
		return nil, err
	}

	err = errors.Join(
		a.library.Store(ctx, result.Library),
		a.user.Store(ctx, result.User),
		a.session.Store(ctx, result.Session),
	)
	if err != nil {
		return nil, fmt.Errorf("store sync result: %w", err)
	}

	logger.InfoKV(ctx, "Library synced", "products", len(result.Library.Products))

	return result, nil
}

// PrintSync runs Sync and reports its outcome.
func (a *App) PrintSync(ctx context.Context) error {
	result, err := a.Sync(ctx)
	if err != nil {
		return err
	}

	a.printf("Synced %d product(s) for %s\n", len(result.Library.Products), result.User.String())

	return nil
}

// currentLibrary syncs when a session exists and returns the stored library.
// A failed sync falls back to the last synced library.
func (a *App) currentLibrary(ctx context.Context) (product.Library, error) {
	if a.hasSession {
		result, err := a.Sync(ctx)
		if err == nil {
			return result.Library, nil
		}

		logger.WarnKV(ctx, "Sync failed, using the cached library", "error", err)
	}

	lib, err := a.library.Load(ctx)
	if err != nil {
		return product.Library{}, fmt.Errorf("load library: %w", err)
	}

	return lib, nil
}

// findProduct resolves slug in the current library.
func (a *App) findProduct(ctx context.Context, slug string) (*product.Product, error) {
	lib, err := a.currentLibrary(ctx)
	if err != nil {
		return nil, err
	}

	return lib.Find(slug)
}

// Library lists the purchased products.
func (a *App) Library(ctx context.Context) error {
	lib, err := a.currentLibrary(ctx)
	if err != nil {
		return err
	}

	if len(lib.Products) == 0 {
		a.printf("Library is empty; run `carnival login` or `carnival sync`\n")
		return nil
	}

	for i := range lib.Products {
		a.printf("%s\n", lib.Products[i].String())
	}

	return nil
}

// Info describes a product, its builds and its install state.
func (a *App) Info(ctx context.Context, slug string) error {
	p, err := a.findProduct(ctx, slug)
	if err != nil {
		return err
	}

	installed, err := a.loadInstalled(ctx)
	if err != nil {
		return err
	}

	a.printf("%s\nNamespace: %s\n", p.String(), p.Namespace)

	if info, ok := installed.Get(slug); ok {
		a.printf("Installed: %s (%s) at %s\n", info.Version, info.Platform, info.InstallPath)
	} else {
		a.printf("Installed: no\n")
	}

	for _, v := range p.Versions {
		a.printf("\n%s\n", v.String())
	}

	return nil
}
