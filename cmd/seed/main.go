package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ups-sales/api/internal/config"
	"github.com/ups-sales/api/internal/database"
	"github.com/ups-sales/api/internal/enum"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// CLI flags
	email := flag.String("email", "", "Owner email address")
	password := flag.String("password", "", "Owner password")
	name := flag.String("name", "", "Owner full name")
	demo := flag.Bool("demo", false, "Also seed a demo catalog (VAT, a combo product) and a project")
	flag.Parse()

	// Fall back to environment variables
	if *email == "" {
		*email = os.Getenv("SEED_EMAIL")
	}
	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
	}
	if *name == "" {
		*name = os.Getenv("SEED_NAME")
	}

	// Fall back to defaults
	if *email == "" {
		*email = "admin@ups.vn"
	}
	if *password == "" {
		*password = "password123"
		log.Println("WARNING: Using default password 'password123'. Change immediately in production!")
	}
	if *name == "" {
		*name = "Admin UPS"
	}

	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	// Seed in a transaction: everything or nothing
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	userID, err := seedOwner(ctx, tx, *email, *password, *name)
	if err != nil {
		log.Fatalf("Failed to seed owner: %v", err)
	}

	if *demo {
		if err := seedDemo(ctx, database.New(tx)); err != nil {
			log.Fatalf("Failed to seed demo data: %v", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Println("Seed completed successfully")
	log.Printf("Owner ID: %s", userID)
}

// seedOwner creates the owner user if it doesn't exist.
func seedOwner(ctx context.Context, tx pgx.Tx, email, password, fullName string) (uuid.UUID, error) {
	var existingID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM users WHERE email = $1 LIMIT 1`, email).Scan(&existingID)
	if err == nil {
		log.Printf("User '%s' already exists (ID: %s), skipping", email, existingID)
		return existingID, nil
	}
	if err != pgx.ErrNoRows {
		return uuid.Nil, fmt.Errorf("check user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := database.New(tx).CreateUser(ctx, database.CreateUserParams{
		Email:          email,
		HashedPassword: string(hashed),
		FullName:       fullName,
		Role:           enum.UserRoleOwner,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert user: %w", err)
	}

	log.Printf("Created owner user '%s' (ID: %s)", email, user.ID)
	return user.ID, nil
}

// seedDemo creates a 10% VAT, a service category, a combo "UPS installation
// package" with two components, and a three-task project.
func seedDemo(ctx context.Context, q *database.Queries) error {
	vat, err := q.CreateTax(ctx, database.CreateTaxParams{Name: "VAT 10%", Amount: numeric("10")})
	if err != nil {
		return fmt.Errorf("create tax: %w", err)
	}

	cat, err := q.CreateProductCategory(ctx, database.CreateProductCategoryParams{
		Name:          "UPS Systems",
		IncomeAccount: pgtype.Text{String: "511100", Valid: true},
	})
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}

	product := func(name, price string, combo bool) (database.Product, error) {
		return q.CreateProduct(ctx, database.CreateProductParams{
			Name:       name,
			ListPrice:  numeric(price),
			Uom:        "Units",
			CategoryID: pgtype.UUID{Bytes: cat.ID, Valid: true},
			TaxIds:     []uuid.UUID{vat.ID},
			IsCombo:    combo,
		})
	}

	ups, err := product("UPS 10kVA Online", "45000000", false)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	battery, err := product("Battery 12V 100Ah", "3200000", false)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	pkg, err := product("UPS Installation Package", "70000000", true)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	for i, c := range []struct {
		id  uuid.UUID
		qty string
	}{{ups.ID, "1"}, {battery.ID, "8"}} {
		_, err := q.CreateComboLine(ctx, database.CreateComboLineParams{
			ProductID:   pkg.ID,
			ComponentID: c.id,
			Quantity:    numeric(c.qty),
			Sequence:    int32(i+1) * 10,
		})
		if err != nil {
			return fmt.Errorf("create combo line: %w", err)
		}
	}
	log.Printf("Created combo product '%s' (ID: %s)", pkg.Name, pkg.ID)

	projectID := uuid.New()
	start := time.Now().Truncate(24 * time.Hour)
	for i, name := range []string{"Site survey", "Delivery", "Installation"} {
		_, err := q.CreateProjectTask(ctx, database.CreateProjectTaskParams{
			ProjectID:    projectID,
			Name:         name,
			DateStart:    pgtype.Timestamptz{Time: start.AddDate(0, 0, i*3), Valid: true},
			DateDeadline: pgtype.Timestamptz{Time: start.AddDate(0, 0, i*3+2), Valid: true},
		})
		if err != nil {
			return fmt.Errorf("create project task: %w", err)
		}
	}
	log.Printf("Created demo project (ID: %s)", projectID)
	return nil
}

func numeric(s string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(s)
	return n
}
