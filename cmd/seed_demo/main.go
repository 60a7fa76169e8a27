package main

import (
	"context"
	"fmt"
	"log"

	"github.com/tradefin-io/tradefingo/internal/config"
	"github.com/tradefin-io/tradefingo/internal/database"
	"github.com/tradefin-io/tradefingo/internal/hasher"
	"github.com/tradefin-io/tradefingo/internal/lifecycle"
	"github.com/tradefin-io/tradefingo/internal/models"
	"github.com/tradefin-io/tradefingo/internal/storage"
	"github.com/tradefin-io/tradefingo/internal/utils"
)

func main() {
	fmt.Println("🌱 tradefingo Demo Data Seeder")

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database")

	// Run migrations first
	err = db.AutoMigrate(
		&models.User{},
		&models.Document{},
		&models.LedgerEntry{},
		&models.TradeTransaction{},
		&models.IntegrityLog{},
		&models.IntegrityAlert{},
		&models.IntegrityRun{},
	)
	if err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	// Check if data already exists
	var userCount int64
	db.Model(&models.User{}).Count(&userCount)
	if userCount > 0 {
		fmt.Printf("⚠️  Database already has %d users. Aborting, nothing modified.\n", userCount)
		return
	}

	users := []struct {
		name  string
		email string
		role  models.Role
		org   string
	}{
		{"Alice Chen", "buyer@demo.trade", models.RoleBuyer, "Globex Imports"},
		{"Bob Okafor", "seller@demo.trade", models.RoleSeller, "Meridian Exports"},
		{"Clara Banks", "bank@demo.trade", models.RoleBank, "First Trade Bank"},
		{"Dan Audit", "auditor@demo.trade", models.RoleAuditor, "Veritas Audit"},
		{"Eve Root", "admin@demo.trade", models.RoleAdmin, "Platform Ops"},
	}

	created := map[models.Role]*models.User{}
	for _, u := range users {
		hash, err := utils.HashPassword("demo1234")
		if err != nil {
			log.Fatalf("❌ Failed to hash password: %v", err)
		}
		user := models.User{
			Name:         u.name,
			Email:        u.email,
			PasswordHash: hash,
			Role:         u.role,
			OrgName:      u.org,
		}
		if err := db.Create(&user).Error; err != nil {
			log.Fatalf("❌ Failed to create user %s: %v", u.email, err)
		}
		created[u.role] = &user
		fmt.Printf("👤 Created %-7s %s (password: demo1234)\n", u.role, u.email)
	}

	// Seed one uploaded document so the integrity checker has content to
	// verify, plus a complete PO -> LOC -> BOL flow.
	backend, err := storage.NewFS(cfg.StorageDir)
	if err != nil {
		log.Fatalf("❌ Failed to init storage: %v", err)
	}

	content := []byte("DEMO CERTIFICATE OF ORIGIN\nShipment: CO-2024-001\n")
	location := "certificate_of_origin/demo_co_2024_001.txt"
	if err := backend.Write(location, content); err != nil {
		log.Fatalf("❌ Failed to write demo content: %v", err)
	}

	auditor := created[models.RoleAuditor]
	buyer := created[models.RoleBuyer]
	seller := created[models.RoleSeller]
	bank := created[models.RoleBank]

	coDoc := models.Document{
		DocType:         models.DocTypeCertificateOfOrigin,
		DocNumber:       "CO-2024-001",
		OwnerID:         seller.ID,
		Status:          models.StatusIssued,
		ContentDigest:   hasher.Digest(content),
		ContentLocation: location,
	}
	if err := db.Create(&coDoc).Error; err != nil {
		log.Fatalf("❌ Failed to create demo document: %v", err)
	}
	sellerID := seller.ID
	db.Create(&models.LedgerEntry{
		DocumentID: coDoc.ID,
		Action:     models.ActionIssue,
		ActorID:    &sellerID,
		ActorRole:  seller.Role,
	})
	fmt.Printf("📄 Created %s %s with stored content\n", coDoc.DocType, coDoc.DocNumber)

	// Trade flow: PO issued by buyer, LOC spawned by bank, both verified.
	machine := lifecycle.NewMachine(db.DB, lifecycle.MustTable())
	ctx := context.Background()

	trade := models.TradeTransaction{
		BuyerID:  buyer.ID,
		SellerID: seller.ID,
		Amount:   125000,
		Currency: "USD",
		Status:   models.TxPending,
	}
	if err := db.Create(&trade).Error; err != nil {
		log.Fatalf("❌ Failed to create transaction: %v", err)
	}

	po := models.Document{
		DocType:       models.DocTypePurchaseOrder,
		DocNumber:     "PO-2024-001",
		OwnerID:       buyer.ID,
		Status:        models.StatusIssued,
		ContentDigest: hasher.Digest([]byte("PO-2024-001")),
	}
	if err := db.Create(&po).Error; err != nil {
		log.Fatalf("❌ Failed to create PO: %v", err)
	}
	buyerID := buyer.ID
	db.Create(&models.LedgerEntry{
		DocumentID:    po.ID,
		TransactionID: &trade.ID,
		Action:        models.ActionIssue,
		ActorID:       &buyerID,
		ActorRole:     buyer.Role,
		Metadata:      map[string]interface{}{"amount": trade.Amount, "currency": trade.Currency},
	})

	res, err := machine.Apply(ctx, lifecycle.ApplyInput{
		DocumentID:    po.ID,
		Action:        models.ActionIssueLOC,
		Actor:         models.Actor{ID: bank.ID, Role: bank.Role, OrgName: bank.OrgName},
		TransactionID: &trade.ID,
		Metadata:      map[string]interface{}{"doc_number": "LOC-2024-001"},
	})
	if err != nil {
		log.Fatalf("❌ Failed to issue LOC: %v", err)
	}
	fmt.Printf("💳 Bank issued %s against %s\n", res.Spawned.DocNumber, po.DocNumber)

	auditorActor := models.Actor{ID: auditor.ID, Role: auditor.Role, OrgName: auditor.OrgName}
	for _, docID := range []string{po.ID, res.Spawned.ID} {
		if _, err := machine.Apply(ctx, lifecycle.ApplyInput{
			DocumentID:    docID,
			Action:        models.ActionVerify,
			Actor:         auditorActor,
			TransactionID: &trade.ID,
		}); err != nil {
			log.Fatalf("❌ Failed to verify document: %v", err)
		}
	}
	db.Model(&trade).Updates(map[string]interface{}{"status": models.TxInProgress})
	fmt.Println("🔎 Auditor verified PO and LOC; transaction in progress")

	fmt.Println()
	fmt.Println("✅ Demo data seeded")
}
