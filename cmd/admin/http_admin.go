package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

func portsCmd(args []string) {
	fs := flag.NewFlagSet("ports", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "daemon base url")
	_ = fs.Parse(args)

	adminGet(*baseURL, "/admin/v1/ports")
}

func deploymentsCmd(args []string) {
	fs := flag.NewFlagSet("deployments", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "daemon base url")
	limit := fs.Int("limit", 50, "result limit")
	_ = fs.Parse(args)

	adminGet(*baseURL, "/admin/v1/deployments?limit="+strconv.Itoa(*limit))
}

func adminGet(baseURL, path string) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
