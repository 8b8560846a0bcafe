package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
)

func main() {
	addr := flag.String("addr", "http://localhost:8082", "Server address")
	company := flag.String("company", "", "Company UUID to ingest for")
	force := flag.Bool("force", false, "Bypass the freshness cache")
	flag.Parse()

	if *company == "" {
		fmt.Println("Please provide a company UUID using -company")
		os.Exit(1)
	}

	url := fmt.Sprintf("%s/api/v1/companies/%s/ingest?force=%t", *addr, *company, *force)
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("Response Status: %s\n%s\n", resp.Status, body)
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
