package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
	"github.com/aryan0dhankhar/productcatalog/internal/query"
	"github.com/aryan0dhankhar/productcatalog/pkg/catalogclient"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := catalogclient.New(getAPIURL(), catalogclient.WithToken(loadToken()))

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "auth":
		err = handleAuth(ctx, client, args)
	case "products":
		err = handleProducts(ctx, client, args)
	case "users":
		err = handleUsers(ctx, client, args)
	case "upload":
		err = uploadImage(ctx, client, args)
	case "watch":
		err = watch(ctx, client)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %s\n", describe(err))
		os.Exit(1)
	}
}

func handleAuth(ctx context.Context, c *catalogclient.Client, args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: catalog auth <login|logout|who>")
		return nil
	}

	switch args[0] {
	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("email", "", "user email")
		password := fs.String("password", "", "password")
		fs.Parse(args[1:])
		if *email == "" || *password == "" {
			fs.PrintDefaults()
			return errors.New("email and password are required")
		}
		res, err := c.Login(ctx, *email, *password)
		if err != nil {
			return err
		}
		if err := saveToken(res.Token); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
		fmt.Printf("✓ Logged in as %s (%s)\n", res.User.Email, res.User.Role)
	case "logout":
		os.Remove(tokenFile())
		fmt.Println("✓ Logged out")
	case "who":
		token := loadToken()
		if token == "" {
			fmt.Println("Not logged in")
			return nil
		}
		fmt.Printf("✓ Logged in (token: %s...)\n", token[:min(20, len(token))])
	default:
		return fmt.Errorf("unknown auth command: %s", args[0])
	}
	return nil
}

func handleProducts(ctx context.Context, c *catalogclient.Client, args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: catalog products <list|categories|get|create|update|delete>")
		return nil
	}

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		var q query.ProductQuery
		fs.StringVar(&q.Search, "search", "", "case-insensitive title search")
		fs.StringVar(&q.Category, "category", "", "exact category")
		fs.StringVar(&q.MinPrice, "min", "", "minimum price")
		fs.StringVar(&q.MaxPrice, "max", "", "maximum price")
		fs.StringVar(&q.Sort, "sort", "", "PRICE_ASC, PRICE_DESC or TITLE")
		fs.Parse(args[1:])

		products, err := c.ListProducts(ctx, q)
		if err != nil {
			return err
		}
		printProducts(products)
	case "categories":
		cats, err := c.Categories(ctx)
		if err != nil {
			return err
		}
		for _, cat := range cats {
			fmt.Println(cat)
		}
	case "get":
		if len(args) < 2 {
			return errors.New("usage: catalog products get <slug>")
		}
		p, err := c.ProductBySlug(ctx, args[1])
		if err != nil {
			return err
		}
		printProducts([]domain.Product{*p})
	case "create":
		fs := flag.NewFlagSet("create", flag.ExitOnError)
		var in domain.ProductInput
		var category string
		price := fs.Float64("price", -1, "price")
		available := fs.Bool("available", true, "in stock")
		fs.StringVar(&in.Title, "title", "", "title")
		fs.StringVar(&in.Description, "description", "", "description")
		fs.StringVar(&in.Image, "image", "", "image URL")
		fs.StringVar(&category, "category", "", "Clothing, Shoes, Accessories or Electronics")
		fs.Parse(args[1:])

		in.Category = domain.Category(category)
		if *price >= 0 {
			in.Price = price
		}
		in.Availability = available
		p, err := c.CreateProduct(ctx, in)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Created %s (%s)\n", p.Slug, p.ID)
	case "update":
		if len(args) < 2 {
			return errors.New("usage: catalog products update <id> [flags]")
		}
		fs := flag.NewFlagSet("update", flag.ExitOnError)
		title := fs.String("title", "", "title")
		description := fs.String("description", "", "description")
		image := fs.String("image", "", "image URL")
		category := fs.String("category", "", "category")
		price := fs.Float64("price", -1, "price")
		available := fs.String("available", "", "true or false")
		fs.Parse(args[2:])

		var patch domain.ProductPatch
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if set["title"] {
			patch.Title = title
		}
		if set["description"] {
			patch.Description = description
		}
		if set["image"] {
			patch.Image = image
		}
		if set["category"] {
			cat := domain.Category(*category)
			patch.Category = &cat
		}
		if set["price"] {
			patch.Price = price
		}
		if set["available"] {
			v := *available == "true"
			patch.Availability = &v
		}
		p, err := c.UpdateProduct(ctx, args[1], patch)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Updated %s (%s)\n", p.Slug, p.ID)
	case "delete":
		if len(args) < 2 {
			return errors.New("usage: catalog products delete <id>")
		}
		if err := c.DeleteProduct(ctx, args[1]); err != nil {
			return err
		}
		fmt.Println("✓ Deleted")
	default:
		return fmt.Errorf("unknown products command: %s", args[0])
	}
	return nil
}

func handleUsers(ctx context.Context, c *catalogclient.Client, args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: catalog users <register|list|deactivate|delete>")
		return nil
	}

	switch args[0] {
	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		var in domain.UserInput
		var role string
		fs.StringVar(&in.Email, "email", "", "user email")
		fs.StringVar(&in.Name, "name", "", "display name")
		fs.StringVar(&in.Password, "password", "", "password (min 6 characters)")
		fs.StringVar(&role, "role", "", "admin or user (admins only)")
		fs.Parse(args[1:])
		in.Role = domain.Role(role)

		u, err := c.Register(ctx, in)
		if err != nil {
			return err
		}
		fmt.Printf("✓ User registered: %s (%s)\n", u.Email, u.ID)
	case "list":
		users, err := c.ListUsers(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tACTIVE")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", u.ID, u.Email, u.Name, u.Role, u.IsActive)
		}
		w.Flush()
	case "deactivate":
		if len(args) < 2 {
			return errors.New("usage: catalog users deactivate <id>")
		}
		u, err := c.DeactivateUser(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("✓ Deactivated %s\n", u.Email)
	case "delete":
		if len(args) < 2 {
			return errors.New("usage: catalog users delete <id>")
		}
		if err := c.DeleteUser(ctx, args[1]); err != nil {
			return err
		}
		fmt.Println("✓ Deleted")
	default:
		return fmt.Errorf("unknown users command: %s", args[0])
	}
	return nil
}

func uploadImage(ctx context.Context, c *catalogclient.Client, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: catalog upload <file>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	contentType := mime.TypeByExtension(filepath.Ext(args[0]))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	url, err := c.UploadImage(ctx, filepath.Base(args[0]), contentType, data)
	if err != nil {
		return err
	}
	fmt.Println(url)
	return nil
}

func watch(ctx context.Context, c *catalogclient.Client) error {
	ch, cancel := c.Cache().Subscribe(catalogclient.ProductListKey(query.ProductQuery{}))
	defer cancel()

	products, err := c.ListProducts(ctx, query.ProductQuery{})
	if err != nil {
		return err
	}
	printProducts(products)

	errc := make(chan error, 1)
	go func() { errc <- c.Watch(ctx) }()

	for {
		select {
		case err := <-errc:
			return err
		case <-ch:
			products, err := c.ListProducts(ctx, query.ProductQuery{})
			if err != nil {
				return err
			}
			fmt.Println("--- catalog changed ---")
			printProducts(products)
		}
	}
}

func printProducts(products []domain.Product) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSLUG\tTITLE\tCATEGORY\tPRICE\tAVAILABLE")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%t\n", p.ID, p.Slug, p.Title, p.Category, p.Price, p.Availability)
	}
	w.Flush()
}

func describe(err error) string {
	var apiErr *catalogclient.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Fields) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(apiErr.Fields))
	for field, msg := range apiErr.Fields {
		parts = append(parts, field+": "+msg)
	}
	return apiErr.Message + " (" + strings.Join(parts, "; ") + ")"
}

// Helper functions
func getAPIURL() string {
	if url := os.Getenv("PRODUCTCATALOG_API"); url != "" {
		return url
	}
	return catalogclient.DefaultBaseURL
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".productcatalog", "token")
}

func saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(tokenFile()), 0o700); err != nil {
		return err
	}
	return os.WriteFile(tokenFile(), []byte(token), 0o600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return strings.TrimSpace(string(data))
}

func printUsage() {
	fmt.Print(`Product Catalog CLI

Usage:
  catalog <command> [options]

Commands:
  auth       Authentication (login, logout, who)
  products   Catalog operations (list, categories, get, create, update, delete)
  users      Account operations (register, list, deactivate, delete)
  upload     Upload a product image and print its URL
  watch      Print the catalog and reprint it whenever it changes
  help       Show this help message

Environment Variables:
  PRODUCTCATALOG_API    API endpoint (default: http://localhost:4000)

Examples:
  catalog auth login -email admin@example.com -password secret
  catalog products list -search shoes -max 150 -sort PRICE_ASC
  catalog products create -title "Running Shoes" -description "Light trail runners" -image https://img.example.com/shoes.jpg -category Shoes -price 120
  catalog upload ./shoes.png
`)
}
