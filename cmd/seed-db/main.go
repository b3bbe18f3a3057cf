package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/plantshop/internal/domain/auth"
	"github.com/xenking/plantshop/internal/domain/ident"
	"github.com/xenking/plantshop/internal/domain/order"
	"github.com/xenking/plantshop/internal/domain/product"
	"github.com/xenking/plantshop/internal/domain/seller"
	"github.com/xenking/plantshop/internal/domain/user"
	"github.com/xenking/plantshop/internal/storage/postgres"
)

type seedFile struct {
	Admins []struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Username string `json:"username"`
		APIKey   string `json:"apiKey"`
	} `json:"admins"`
	Users []struct {
		ID        string            `json:"id"`
		Email     string            `json:"email"`
		Username  string            `json:"username"`
		Addresses []json.RawMessage `json:"addresses"`
		APIKey    string            `json:"apiKey"`
	} `json:"users"`
	Sellers []struct {
		ID         string `json:"id"`
		Email      string `json:"email"`
		Username   string `json:"username"`
		IsApproved bool   `json:"isApproved"`
		APIKey     string `json:"apiKey"`
	} `json:"sellers"`
	Products []struct {
		ID             string `json:"id"`
		SellerID       string `json:"sellerId"`
		Title          string `json:"title"`
		Subtitle       string `json:"subtitle"`
		Description    string `json:"description"`
		ScientificName string `json:"scientificName"`
		Origin         string `json:"origin"`
		Thumbnail      string `json:"thumbnail"`
		Price          string `json:"price"`
		Stock          int    `json:"stock"`
		Category       string `json:"category"`
	} `json:"products"`
	Orders []struct {
		ID              string          `json:"id"`
		UserID          string          `json:"userId"`
		SellerID        string          `json:"sellerId"`
		Items           []order.Item    `json:"items"`
		Status          string          `json:"status"`
		ShippingAddress json.RawMessage `json:"shippingAddress"`
	} `json:"orders"`
}

const upsertAdminSQL = `INSERT INTO admins (id, email, username) VALUES ($1, $2, $3)
	ON CONFLICT (email) DO NOTHING`

func main() {
	var (
		databaseURL  string
		seedPath     string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/seed.json", "path to the seed JSON file")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or PLANTSHOP_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("PLANTSHOP_API_KEY_PEPPER")
	}
	if apiKeyPepper == "" {
		slog.Error("API key pepper is required: set --api-key-pepper or PLANTSHOP_API_KEY_PEPPER")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath, []byte(apiKeyPepper)); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string, pepper []byte) error {
	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed file")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedAccounts(ctx, pool, &seed); err != nil {
		return errors.Wrap(err, "seed accounts")
	}
	if err := seedProducts(ctx, postgres.NewProductRepository(pool), &seed); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedOrders(ctx, postgres.NewOrderRepository(pool), &seed); err != nil {
		return errors.Wrap(err, "seed orders")
	}
	if err := seedAPIKeys(ctx, postgres.NewAPIKeyRepository(pool), &seed, pepper); err != nil {
		return errors.Wrap(err, "seed api keys")
	}
	return nil
}

func seedAccounts(ctx context.Context, pool *pgxpool.Pool, seed *seedFile) error {
	for _, a := range seed.Admins {
		if _, err := pool.Exec(ctx, upsertAdminSQL, a.ID, a.Email, a.Username); err != nil {
			return errors.Wrapf(err, "upsert admin %s", a.Email)
		}
		slog.Info("upserted admin", slog.String("email", a.Email))
	}

	users := postgres.NewUserRepository(pool)
	for _, u := range seed.Users {
		if err := users.Create(ctx, &user.User{
			ID:        u.ID,
			Email:     u.Email,
			Username:  u.Username,
			Addresses: u.Addresses,
		}); err != nil {
			return err
		}
		slog.Info("upserted user", slog.String("email", u.Email))
	}

	sellers := postgres.NewSellerRepository(pool)
	for _, s := range seed.Sellers {
		if err := sellers.Create(ctx, &seller.Seller{
			ID:         s.ID,
			Email:      s.Email,
			Username:   s.Username,
			IsApproved: s.IsApproved,
		}); err != nil {
			return err
		}
		slog.Info("upserted seller", slog.String("email", s.Email), slog.Bool("approved", s.IsApproved))
	}
	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, seed *seedFile) error {
	slog.Info("inserting products", slog.Int("count", len(seed.Products)))

	for _, p := range seed.Products {
		if _, err := repo.GetByID(ctx, p.ID); err == nil {
			continue
		} else if !errors.Is(err, product.ErrNotFound) {
			return err
		}

		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return errors.Wrapf(err, "price of %s", p.ID)
		}
		category := product.Category(p.Category)
		if category == "" {
			category = product.DefaultCategory
		}
		if err := repo.Create(ctx, &product.Product{
			ID:             p.ID,
			SellerID:       p.SellerID,
			Title:          p.Title,
			Subtitle:       p.Subtitle,
			Description:    p.Description,
			ScientificName: p.ScientificName,
			Origin:         p.Origin,
			Thumbnail:      p.Thumbnail,
			Price:          price,
			Stock:          p.Stock,
			Category:       category,
		}); err != nil {
			return err
		}
		slog.Info("inserted product", slog.String("id", p.ID), slog.String("title", p.Title))
	}
	return nil
}

func seedOrders(ctx context.Context, repo *postgres.OrderRepository, seed *seedFile) error {
	for _, o := range seed.Orders {
		if _, err := repo.GetByID(ctx, o.ID); err == nil {
			continue
		} else if !errors.Is(err, order.ErrNotFound) {
			return err
		}

		status, err := order.ParseStatus(o.Status)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		created := &order.Order{
			ID:              o.ID,
			UserID:          o.UserID,
			SellerID:        o.SellerID,
			Items:           o.Items,
			Status:          status,
			ShippingAddress: o.ShippingAddress,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		created.Recompute()
		if err := repo.Create(ctx, created); err != nil {
			return err
		}
		slog.Info("inserted order",
			slog.String("id", o.ID),
			slog.String("total", created.TotalAmount.StringFixed(2)),
		)
	}
	return nil
}

// seedAPIKeys issues an API key for every seeded principal. Principals
// without a fixed key in the seed file get a random one, printed here only;
// the database stores hashes.
func seedAPIKeys(ctx context.Context, repo auth.Repository, seed *seedFile, pepper []byte) error {
	type principal struct {
		id, name, key string
		scope         auth.Scope
	}
	var principals []principal
	for _, a := range seed.Admins {
		principals = append(principals, principal{a.ID, a.Username, a.APIKey, auth.ScopeAdmin})
	}
	for _, u := range seed.Users {
		principals = append(principals, principal{u.ID, u.Username, u.APIKey, auth.ScopeCustomer})
	}
	for _, s := range seed.Sellers {
		principals = append(principals, principal{s.ID, s.Username, s.APIKey, auth.ScopeSeller})
	}

	for _, p := range principals {
		key := p.key
		if key == "" {
			var err error
			if key, err = auth.GenerateKey(); err != nil {
				return err
			}
		}
		hash := auth.Hash(pepper, key)
		if _, err := repo.FindByHash(ctx, hash); err == nil {
			continue
		} else if !errors.Is(err, auth.ErrNotFound) {
			return err
		}

		if err := repo.Create(ctx, &auth.APIKeyInfo{
			ID:          ident.New(),
			KeyHash:     hash,
			Name:        p.name + " " + string(p.scope),
			Scopes:      []auth.Scope{p.scope},
			PrincipalID: p.id,
		}); err != nil {
			return err
		}
		slog.Info("issued API key",
			slog.String("principal", p.id),
			slog.String("scope", string(p.scope)),
			slog.String("key", key),
		)
	}
	return nil
}
