package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Seeds one demo store with products, stock, shipping, PIX settings and
// coupons so the API is usable right after boot. Settings and coupons
// upsert; the catalog is skipped when the store already has products.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	storeID := strings.TrimSpace(os.Getenv("DEFAULT_STORE_ID"))
	if storeID == "" {
		storeID = uuid.New().String()
		log.Printf("DEFAULT_STORE_ID not set, seeding store %s", storeID)
	} else {
		log.Printf("Seeding store %s", storeID)
	}

	seedCatalog(db, storeID)
	seedShipping(db, storeID)
	seedPix(db, storeID)
	seedCoupons(db, storeID)

	log.Println("Seeding completed successfully!")
}

type optionSeed struct {
	Name   string
	SKU    string
	Price  int64
	Promo  *int64
	Stock  int32
	Weight int64
}

type productSeed struct {
	Name        string
	Category    string
	Description string
	Variant     string
	Options     []optionSeed
}

func price(v int64) *int64 { return &v }

func seedCatalog(db *sql.DB, storeID string) {
	products := []productSeed{
		{
			Name: "Camiseta Algodão", Category: "Vestuário",
			Description: "Camiseta 100% algodão, malha penteada.",
			Variant:     "Tamanho",
			Options: []optionSeed{
				{Name: "P", SKU: "CAM-ALG-P", Price: 4990, Stock: 40, Weight: 180},
				{Name: "M", SKU: "CAM-ALG-M", Price: 4990, Promo: price(3990), Stock: 55, Weight: 190},
				{Name: "G", SKU: "CAM-ALG-G", Price: 4990, Stock: 35, Weight: 200},
			},
		},
		{
			Name: "Caneca Esmaltada", Category: "Casa",
			Description: "Caneca retrô esmaltada 350ml.",
			Variant:     "Cor",
			Options: []optionSeed{
				{Name: "Azul", SKU: "CAN-ESM-AZ", Price: 2990, Stock: 80, Weight: 320},
				{Name: "Vermelha", SKU: "CAN-ESM-VM", Price: 2990, Stock: 64, Weight: 320},
			},
		},
		{
			Name: "Moletom Capuz", Category: "Vestuário",
			Description: "Moletom com capuz e bolso canguru.",
			Variant:     "Tamanho",
			Options: []optionSeed{
				{Name: "M", SKU: "MOL-CAP-M", Price: 14990, Promo: price(11990), Stock: 18, Weight: 620},
				{Name: "G", SKU: "MOL-CAP-G", Price: 14990, Stock: 12, Weight: 650},
			},
		},
		{
			Name: "Garrafa Térmica 500ml", Category: "Esporte",
			Description: "Inox, mantém a temperatura por 12h.",
			Variant:     "Cor",
			Options: []optionSeed{
				{Name: "Preta", SKU: "GAR-TER-PT", Price: 8990, Stock: 25, Weight: 410},
			},
		},
		{
			Name: "Quadro Decorativo A3", Category: "Casa",
			Description: "Impressão fine art com moldura.",
			Variant:     "Estampa",
			Options: []optionSeed{
				{Name: "Botânica", SKU: "QUA-A3-BOT", Price: 7490, Stock: 9, Weight: 900},
				{Name: "Geométrica", SKU: "QUA-A3-GEO", Price: 7490, Stock: 4, Weight: 900},
			},
		},
	}

	var existing int
	if err := db.QueryRow(`SELECT COUNT(*) FROM products WHERE store_id = $1`, storeID).Scan(&existing); err != nil {
		log.Printf("Failed to check existing catalog: %v", err)
		return
	}
	if existing > 0 {
		log.Println("Catalog already seeded, skipping")
		return
	}

	log.Println("Seeding catalog...")
	for _, p := range products {
		productID := uuid.New().String()
		if _, err := db.Exec(`
			INSERT INTO products (id, store_id, name, category, description, has_variants)
			VALUES ($1, $2, $3, $4, $5, TRUE);
		`, productID, storeID, p.Name, p.Category, p.Description); err != nil {
			log.Printf("Failed to insert product %s: %v", p.Name, err)
			continue
		}

		variantID := uuid.New().String()
		if _, err := db.Exec(`
			INSERT INTO variants (id, product_id, name, position) VALUES ($1, $2, $3, 0);
		`, variantID, productID, p.Variant); err != nil {
			log.Printf("Failed to insert variant for %s: %v", p.Name, err)
			continue
		}

		for _, o := range p.Options {
			optionID := uuid.New().String()
			_, err := db.Exec(`
				INSERT INTO variant_options
					(id, variant_id, product_id, store_id, name, sku, regular_price, promotional_price, stock, weight_grams)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT (store_id, sku) DO UPDATE SET
					regular_price = EXCLUDED.regular_price,
					promotional_price = EXCLUDED.promotional_price,
					stock = EXCLUDED.stock;
			`, optionID, variantID, productID, storeID, o.Name, o.SKU, o.Price, o.Promo, o.Stock, o.Weight)
			if err != nil {
				log.Printf("Failed to upsert option %s: %v", o.SKU, err)
				continue
			}
			if o.Stock > 0 {
				if _, err := db.Exec(`
					INSERT INTO stock_movements (id, store_id, product_id, variant_option_id, type, quantity, reason, created_by)
					VALUES ($1, $2, $3, $4, 'in', $5, 'initial load', 'seeder');
				`, uuid.New().String(), storeID, productID, optionID, o.Stock); err != nil {
					log.Printf("Failed to record opening stock for %s: %v", o.SKU, err)
				}
			}
		}
	}
}

func seedShipping(db *sql.DB, storeID string) {
	log.Println("Seeding shipping settings...")
	regions, _ := json.Marshal([]map[string]any{
		{"name": "Capital", "price": 1200},
		{"name": "Interior", "price": 1900},
		{"name": "Sul e Sudeste", "price": 2400},
	})
	weightRates, _ := json.Marshal([]map[string]any{
		{"maxGrams": 500, "price": 1500},
		{"maxGrams": 2000, "price": 2500},
		{"maxGrams": 10000, "price": 4200},
	})
	_, err := db.Exec(`
		INSERT INTO shipping_settings
			(store_id, enabled, pickup_enabled, pickup_message, free_shipping_threshold, calculation_method, fixed_price, regions, weight_rates)
		VALUES ($1, TRUE, TRUE, 'Retirada na loja, seg a sex 9h-18h', 15000, 'region', 1500, $2, $3)
		ON CONFLICT (store_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			regions = EXCLUDED.regions,
			weight_rates = EXCLUDED.weight_rates,
			free_shipping_threshold = EXCLUDED.free_shipping_threshold;
	`, storeID, regions, weightRates)
	if err != nil {
		log.Printf("Failed to upsert shipping settings: %v", err)
	}
}

func seedPix(db *sql.DB, storeID string) {
	log.Println("Seeding PIX settings...")
	_, err := db.Exec(`
		INSERT INTO pix_settings (store_id, enabled, key_type, key_value, merchant_name, merchant_city)
		VALUES ($1, TRUE, 'random', '6f29c18a-0bd7-4b1e-9d8e-demo-pix-key', 'Loja Demo', 'SAO PAULO')
		ON CONFLICT (store_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			key_value = EXCLUDED.key_value;
	`, storeID)
	if err != nil {
		log.Printf("Failed to upsert pix settings: %v", err)
	}
}

func seedCoupons(db *sql.DB, storeID string) {
	now := time.Now()
	coupons := []struct {
		Code       string
		Desc       string
		Type       string
		Value      int64
		MinOrder   *int64
		MaxDisc    *int64
		UsageLimit *int32
	}{
		{Code: "BEMVINDO10", Desc: "10% para a primeira compra", Type: "percentage", Value: 10, MinOrder: price(5000), MaxDisc: price(3000)},
		{Code: "FRETEGRATIS", Desc: "Frete por nossa conta", Type: "shipping", Value: 0, MinOrder: price(8000)},
		{Code: "VERAO20", Desc: "R$20 na coleção de verão", Type: "fixed", Value: 2000, MinOrder: price(10000), UsageLimit: limit(100)},
	}

	log.Println("Seeding coupons...")
	for _, c := range coupons {
		_, err := db.Exec(`
			INSERT INTO coupons
				(id, store_id, code, description, discount_type, discount_value, min_order_value, max_discount, usage_limit, valid_from, valid_until)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (store_id, code) DO UPDATE SET
				description = EXCLUDED.description,
				discount_value = EXCLUDED.discount_value,
				valid_until = EXCLUDED.valid_until,
				is_active = TRUE;
		`, uuid.New().String(), storeID, c.Code, c.Desc, c.Type, c.Value, c.MinOrder, c.MaxDisc, c.UsageLimit,
			now.Add(-24*time.Hour), now.Add(90*24*time.Hour))
		if err != nil {
			log.Printf("Failed to upsert coupon %s: %v", c.Code, err)
		}
	}
}

func limit(v int32) *int32 { return &v }
