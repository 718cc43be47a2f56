package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"retail-order-service/config"
	"retail-order-service/internal/auth"
	"retail-order-service/internal/service"
	"retail-order-service/internal/store"
	"retail-order-service/internal/util"
)

func main() {
	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)

	addAdminCmd := flag.NewFlagSet("add-admin", flag.ExitOnError)
	name := addAdminCmd.String("name", "", "Display name of the administrator")
	email := addAdminCmd.String("email", "", "Login email of the administrator")
	phone := addAdminCmd.String("phone", "", "Contact phone number")
	password := addAdminCmd.String("password", "", "Password for the new administrator")

	if len(os.Args) < 2 {
		fmt.Println("expected 'migrate' or 'add-admin' subcommand")
		os.Exit(1)
	}

	cfg := config.Load()
	if err := util.InitLogger(cfg.Server.Env, ""); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	switch os.Args[1] {
	case "migrate":
		migrateCmd.Parse(os.Args[2:])
		db := openStore(cfg)
		defer db.Close()
		fmt.Println("Migrations applied.")

	case "add-admin":
		addAdminCmd.Parse(os.Args[2:])
		if *name == "" || *email == "" || *password == "" {
			fmt.Println("name, email and password are required")
			addAdminCmd.PrintDefaults()
			os.Exit(1)
		}
		db := openStore(cfg)
		defer db.Close()
		createAdmin(cfg, db, *name, *email, *phone, *password)

	default:
		fmt.Println("expected 'migrate' or 'add-admin' subcommand")
		os.Exit(1)
	}
}

// openStore connects to Postgres and applies pending migrations
func openStore(cfg *config.Config) *store.Store {
	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	return db
}

func createAdmin(cfg *config.Config, db *store.Store, name, email, phone, password string) {
	tokens := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	accounts := service.NewAccountService(db, tokens, nil, service.AccountOptions{OTPTTL: cfg.Business.OTPTTL})

	admin, err := accounts.CreateAdmin(context.Background(), &service.SignupRequest{
		Name:            name,
		Email:           email,
		Phone:           phone,
		Password:        password,
		ConfirmPassword: password,
	})
	if err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}

	fmt.Printf("Admin '%s' created with admin id %d.\n", admin.Email, *admin.AdminID)
}
