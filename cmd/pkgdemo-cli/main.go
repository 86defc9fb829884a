package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultServer     = "http://localhost:8080"
	defaultAPIVersion = "2"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	pos, flags := parseFlags(os.Args[2:])

	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		printUsage()
		return
	}
	run, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err := run(newClient(flags), pos, flags); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var commands = map[string]func(*client, []string, map[string]string) error{
	"list":    cmdList,
	"get":     cmdGet,
	"stats":   cmdStats,
	"put":     cmdPut,
	"patch":   cmdPatch,
	"delete":  cmdDelete,
	"upload":  cmdUpload,
	"status":  cmdStatus,
	"history": cmdHistory,
}

func printUsage() {
	fmt.Println(`Package Demo CLI

Usage:
  pkgdemo list [--skip N] [--take N] [options]
  pkgdemo get <id> [options]
  pkgdemo stats <id> [options]
  pkgdemo put <id> <file.json> [options]
  pkgdemo patch <id> <file.json> [options]
  pkgdemo delete <id> [options]
  pkgdemo upload <file.json> [--poll INTERVAL] [options]
  pkgdemo status <pendingId> [options]
  pkgdemo history <id> [options]

Options:
  --server <url>        Server URL (default: http://localhost:8080)
  --token <token>       Authentication token for put, patch, delete and upload
  --api-version <n>     API version, 1 or 2 (default: 2)`)
}

// parseFlags extracts --key value pairs from args.
func parseFlags(args []string) (positional []string, flags map[string]string) {
	flags = make(map[string]string)
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "--") && i+1 < len(args) {
			flags[strings.TrimPrefix(args[i], "--")] = args[i+1]
			i++
		} else {
			positional = append(positional, args[i])
		}
	}
	return
}

func getFlag(flags map[string]string, key, def string) string {
	if v, ok := flags[key]; ok {
		return v
	}
	return def
}

// client talks to one server through a retrying HTTP client.
type client struct {
	http    *retryablehttp.Client
	server  string
	version string
	token   string
	out     io.Writer
}

func newClient(flags map[string]string) *client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	rc.CheckRetry = checkRetry
	return &client{
		http:    rc,
		server:  strings.TrimRight(getFlag(flags, "server", defaultServer), "/"),
		version: strings.TrimPrefix(getFlag(flags, "api-version", defaultAPIVersion), "v"),
		token:   getFlag(flags, "token", ""),
		out:     os.Stdout,
	}
}

type noRetryKey struct{}

// checkRetry is the default policy, except that requests do marks as
// non-idempotent are sent once.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if noRetry, _ := ctx.Value(noRetryKey{}).(bool); noRetry {
		return false, ctx.Err()
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func idempotent(method string) bool {
	return method != http.MethodPost && method != http.MethodPatch
}

func (c *client) url(path string) string {
	return fmt.Sprintf("%s/api/v%s%s", c.server, c.version, path)
}

func (c *client) do(method, path string, body []byte) (*http.Response, error) {
	var payload interface{}
	if body != nil {
		payload = body
	}
	req, err := retryablehttp.NewRequest(method, c.url(path), payload)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if !idempotent(method) {
		req = req.WithContext(context.WithValue(req.Context(), noRetryKey{}, true))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

// call performs the request and decodes a JSON response into v when the
// status is one of want.
func (c *client) call(method, path string, body []byte, v interface{}, want ...int) (*http.Response, error) {
	resp, err := c.do(method, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	for _, code := range want {
		if resp.StatusCode == code {
			if v != nil {
				if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
					return resp, fmt.Errorf("decoding response: %w", err)
				}
			}
			return resp, nil
		}
	}
	return resp, errors.New(formatHTTPError(resp))
}

func packagePath(id string) string {
	return "/packages/" + url.PathEscape(id)
}

func cmdList(c *client, _ []string, flags map[string]string) error {
	q := url.Values{}
	for _, k := range []string{"skip", "take"} {
		if v, ok := flags[k]; ok {
			if _, err := strconv.Atoi(v); err != nil {
				return fmt.Errorf("--%s must be a number", k)
			}
			q.Set(k, v)
		}
	}
	path := "/packages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var packages []struct {
		ID          string `json:"id"`
		Description string `json:"description"`
	}
	if _, err := c.call(http.MethodGet, path, nil, &packages, http.StatusOK); err != nil {
		return err
	}
	if len(packages) == 0 {
		fmt.Fprintln(c.out, "No packages found.")
		return nil
	}
	fmt.Fprintln(c.out, "Packages:")
	for _, p := range packages {
		if p.Description == "" {
			fmt.Fprintf(c.out, "  - %s\n", p.ID)
			continue
		}
		fmt.Fprintf(c.out, "  - %s: %s\n", p.ID, p.Description)
	}
	return nil
}

func cmdGet(c *client, pos []string, _ map[string]string) error {
	if len(pos) < 1 {
		return fmt.Errorf("usage: pkgdemo get <id>")
	}
	var pkg struct {
		ID       string `json:"id"`
		Versions []struct {
			Version       string `json:"version"`
			Description   string `json:"description"`
			RepositoryURL string `json:"repositoryUrl"`
			Owner         string `json:"owner"`
		} `json:"versions"`
	}
	if _, err := c.call(http.MethodGet, packagePath(pos[0]), nil, &pkg, http.StatusOK); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s (%d versions)\n", pkg.ID, len(pkg.Versions))
	for _, v := range pkg.Versions {
		fmt.Fprintf(c.out, "  %s  %s\n", v.Version, v.Description)
		if v.Owner != "" {
			fmt.Fprintf(c.out, "    Owner:      %s\n", v.Owner)
		}
		if v.RepositoryURL != "" {
			fmt.Fprintf(c.out, "    Repository: %s\n", v.RepositoryURL)
		}
	}
	return nil
}

func cmdStats(c *client, pos []string, _ map[string]string) error {
	if len(pos) < 1 {
		return fmt.Errorf("usage: pkgdemo stats <id>")
	}
	var stats struct {
		ID             string `json:"id"`
		TotalDownloads int64  `json:"totalDownloads"`
	}
	if _, err := c.call(http.MethodGet, packagePath(pos[0])+"/statistics", nil, &stats, http.StatusOK); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s: %d downloads\n", stats.ID, stats.TotalDownloads)
	return nil
}

func cmdPut(c *client, pos []string, _ map[string]string) error {
	if len(pos) < 2 {
		return fmt.Errorf("usage: pkgdemo put <id> <file.json>")
	}
	body, err := readJSONFile(pos[1])
	if err != nil {
		return err
	}
	resp, err := c.call(http.MethodPut, packagePath(pos[0]), body, nil, http.StatusCreated, http.StatusOK)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusCreated {
		fmt.Fprintf(c.out, "Created %s\n", pos[0])
	} else {
		fmt.Fprintf(c.out, "Replaced %s\n", pos[0])
	}
	return nil
}

func cmdPatch(c *client, pos []string, _ map[string]string) error {
	if len(pos) < 2 {
		return fmt.Errorf("usage: pkgdemo patch <id> <file.json>")
	}
	body, err := readJSONFile(pos[1])
	if err != nil {
		return err
	}
	if _, err := c.call(http.MethodPatch, packagePath(pos[0]), body, nil, http.StatusNoContent); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Patched %s\n", pos[0])
	return nil
}

func cmdDelete(c *client, pos []string, _ map[string]string) error {
	if len(pos) < 1 {
		return fmt.Errorf("usage: pkgdemo delete <id>")
	}
	if _, err := c.call(http.MethodDelete, packagePath(pos[0]), nil, nil, http.StatusNoContent); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Deleted %s\n", pos[0])
	return nil
}

func cmdUpload(c *client, pos []string, flags map[string]string) error {
	if len(pos) < 1 {
		return fmt.Errorf("usage: pkgdemo upload <file.json> [--poll INTERVAL]")
	}
	body, err := readJSONFile(pos[0])
	if err != nil {
		return err
	}

	var accepted struct {
		PendingID string `json:"pendingId"`
		Digest    string `json:"digest"`
	}
	if _, err := c.call(http.MethodPost, "/uploads", body, &accepted, http.StatusAccepted); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Upload accepted (%s)\n", formatBytes(int64(len(body))))
	fmt.Fprintf(c.out, "  Pending ID: %s\n", accepted.PendingID)
	if accepted.Digest != "" {
		fmt.Fprintf(c.out, "  Digest:     %s\n", accepted.Digest)
	}

	raw, ok := flags["poll"]
	if !ok {
		return nil
	}
	interval, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid --poll interval: %w", err)
	}
	for {
		status, packageID, err := c.uploadStatus(accepted.PendingID)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "  Status:     %s\n", status)
		if status == "Completed" {
			fmt.Fprintf(c.out, "  Package:    %s\n", packageID)
			return nil
		}
		time.Sleep(interval)
	}
}

func cmdStatus(c *client, pos []string, _ map[string]string) error {
	if len(pos) < 1 {
		return fmt.Errorf("usage: pkgdemo status <pendingId>")
	}
	status, packageID, err := c.uploadStatus(pos[0])
	if err != nil {
		return err
	}
	if packageID != "" {
		fmt.Fprintf(c.out, "%s (%s)\n", status, packageID)
		return nil
	}
	fmt.Fprintln(c.out, status)
	return nil
}

func (c *client) uploadStatus(pendingID string) (string, string, error) {
	var resp struct {
		Status    string `json:"status"`
		PackageID string `json:"packageId"`
	}
	_, err := c.call(http.MethodGet, "/uploads/"+url.PathEscape(pendingID), nil, &resp, http.StatusAccepted, http.StatusOK)
	return resp.Status, resp.PackageID, err
}

func cmdHistory(c *client, pos []string, _ map[string]string) error {
	if len(pos) < 1 {
		return fmt.Errorf("usage: pkgdemo history <id>")
	}
	var events []struct {
		Action     string    `json:"action"`
		Detail     string    `json:"detail"`
		OccurredAt time.Time `json:"occurredAt"`
	}
	if _, err := c.call(http.MethodGet, packagePath(pos[0])+"/history", nil, &events, http.StatusOK); err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintf(c.out, "No history for %s.\n", pos[0])
		return nil
	}
	for _, e := range events {
		line := fmt.Sprintf("%s  %s", e.OccurredAt.Format(time.RFC3339), e.Action)
		if e.Detail != "" {
			line += " (" + e.Detail + ")"
		}
		fmt.Fprintln(c.out, line)
	}
	return nil
}

func readJSONFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !json.Valid(bytes.TrimSpace(data)) {
		return nil, fmt.Errorf("%s does not contain valid JSON", path)
	}
	return data, nil
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func formatHTTPError(resp *http.Response) string {
	body, _ := io.ReadAll(resp.Body)
	if len(body) == 0 {
		return fmt.Sprintf("server responded %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return fmt.Sprintf("server responded %d: %s", resp.StatusCode, payload.Message)
		}
		if payload.Error != "" {
			return fmt.Sprintf("server responded %d: %s", resp.StatusCode, payload.Error)
		}
	}
	return fmt.Sprintf("server responded %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
