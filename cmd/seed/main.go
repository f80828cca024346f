package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"queue-bot/internal/infra/sqlite3"
	"queue-bot/internal/storage"
	"queue-bot/internal/stories/companies"
	"queue-bot/internal/stories/presence"
	"queue-bot/internal/stories/products"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// seedFile describes companies and their menus:
//
//	companies:
//	  - name: Burger Point
//	    location: {lat: 43.2389, lng: 76.8897}
//	    products:
//	      - {name: Cheeseburger, price: "1500.00", category: burgers}
type seedFile struct {
	Companies []seedCompany `yaml:"companies"`
}

type seedCompany struct {
	ID             string           `yaml:"id"`
	Name           string           `yaml:"name"`
	Accepting      *bool            `yaml:"accepting"`
	Marketing      bool             `yaml:"marketing"`
	Location       *presence.Coords `yaml:"location"`
	AvgPrepMinutes int              `yaml:"avg_prep_minutes"`
	Language       string           `yaml:"language"`
	Products       []seedProduct    `yaml:"products"`
}

type seedProduct struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	Price    string  `yaml:"price"`
	Category string  `yaml:"category"`
	Status   string  `yaml:"status"`
	ImageURL *string `yaml:"image_url"`
}

func main() {
	dbPath := flag.String("db", "./data/queue.db", "path to SQLite database")
	seedPath := flag.String("file", "./seed.yaml", "path to YAML seed file")
	dryRun := flag.Bool("dry-run", false, "show what would be imported without writing to DB")
	flag.Parse()

	seed, err := readSeed(*seedPath)
	if err != nil {
		log.Fatalf("failed to read seed: %v", err)
	}

	ctx := context.Background()

	db, err := sqlite3.New(ctx, sqlite3.WithDSN(*dbPath))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	store := storage.New(db.DB, nil)
	companySvc := companies.NewService(store)
	productSvc := products.NewService(store)

	var totalCompanies, totalProducts int
	for _, sc := range seed.Companies {
		n, err := importCompany(ctx, companySvc, productSvc, sc, *dryRun)
		if err != nil {
			log.Fatalf("company %q: %v", sc.Name, err)
		}
		totalCompanies++
		totalProducts += n
	}

	fmt.Printf("\nTotal: %d companies, %d products\n", totalCompanies, totalProducts)
	if *dryRun {
		fmt.Println("(dry run - nothing was written)")
	}
}

func readSeed(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, errors.Wrap(err, "parse yaml")
	}
	return &seed, nil
}

func importCompany(
	ctx context.Context,
	companySvc *companies.Service,
	productSvc *products.Service,
	sc seedCompany,
	dryRun bool,
) (int, error) {
	items := make([]products.Product, 0, len(sc.Products))
	for _, sp := range sc.Products {
		p, err := toProduct(sp)
		if err != nil {
			return 0, errors.Wrapf(err, "product %q", sp.Name)
		}
		items = append(items, p)
	}

	if dryRun {
		fmt.Printf("[DRY] company %s with %d products\n", sc.Name, len(items))
		return len(items), nil
	}

	accepting := true
	if sc.Accepting != nil {
		accepting = *sc.Accepting
	}
	company, err := companySvc.CreateCompany(ctx, companies.Company{
		ID:                sc.ID,
		Name:              sc.Name,
		IsActive:          true,
		IsAcceptingOrders: accepting,
		MarketingEnabled:  sc.Marketing,
		Location:          sc.Location,
		AvgPrepMinutes:    sc.AvgPrepMinutes,
		Language:          sc.Language,
	})
	if err != nil {
		return 0, errors.Wrap(err, "create company")
	}
	fmt.Printf("OK: company %s (%s)\n", company.Name, company.ID)

	for _, p := range items {
		p.CompanyID = company.ID
		created, err := productSvc.CreateProduct(ctx, p)
		if err != nil {
			return 0, errors.Wrapf(err, "create product %q", p.Name)
		}
		fmt.Printf("  + %s %s\n", created.Name, created.Price.StringFixed(2))
	}
	return len(items), nil
}

func toProduct(sp seedProduct) (products.Product, error) {
	price, err := decimal.NewFromString(sp.Price)
	if err != nil {
		return products.Product{}, errors.Wrap(err, "price")
	}
	p := products.Product{
		ID:       sp.ID,
		Name:     sp.Name,
		Price:    price,
		Category: sp.Category,
		ImageURL: sp.ImageURL,
	}
	if sp.Status != "" {
		status, err := products.ParseStatus(sp.Status)
		if err != nil {
			return products.Product{}, err
		}
		p.Status = status
	}
	return p, nil
}
