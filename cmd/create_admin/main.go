package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"realestate/internal/config"
	"realestate/internal/database"
	"realestate/internal/domain"
	"realestate/internal/services"
)

func main() {
	username := flag.String("username", "admin", "admin username")
	email := flag.String("email", "admin@premiumimoveis.com.br", "admin email")
	fullName := flag.String("name", "System Administrator", "admin full name")
	flag.Parse()

	password := os.Getenv("ADMIN_PASSWORD")
	if len(password) < 8 {
		log.Fatalf("ADMIN_PASSWORD must be set to at least 8 characters")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := database.Init(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	db := database.GetDB()

	var existing int64
	if err := db.Model(&domain.User{}).Where("is_admin = ?", true).Count(&existing).Error; err != nil {
		log.Fatalf("Failed to check existing admins: %v", err)
	}
	if existing > 0 {
		fmt.Println("An admin user already exists!")
		return
	}

	authSvc := services.NewAuthService(db, cfg.Auth)
	user, err := authSvc.CreateUser(context.Background(), services.CreateUserInput{
		Username: *username,
		Email:    *email,
		Password: password,
		FullName: fullName,
		IsAdmin:  true,
		IsStaff:  true,
	})
	if err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}

	fmt.Println("Admin user created successfully!")
	fmt.Printf("Username: %s (id=%d)\n", user.Username, user.ID)
}
