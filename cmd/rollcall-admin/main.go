// ABOUTME: Operator CLI for the rollcall dashboard API
// ABOUTME: Manages members, settings, and roster queries over HTTP with a bearer token

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

const banner = `
           _ _           _ _             _           _
  _ __ ___| | | ___ __ _| | |       __ _| |_ __ ___ (_)_ __
 | '__/ _ \ | |/ __/ _' | | | ____ / _' | | '_ ' _ \| | '_ \
 | | | (_) | | | (_| (_| | | |____| (_| | | | | | | | | | | |
 |_|  \___/|_|_|\___\__,_|_|_|     \__,_|_|_| |_| |_|_|_| |_|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "status":
		err = cmdStatus(ctx, cfg)
	case "roster":
		err = cmdRoster(ctx, cfg, args)
	case "members":
		err = cmdMembers(ctx, cfg, args)
	case "settings":
		err = cmdSettings(ctx, cfg, args)
	case "stats":
		err = cmdStats(ctx, cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: rollcall-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  status                               Check server health")
	fmt.Println("  roster <group> [page]                Show today's roster for a group")
	fmt.Println("  members list <group> [filter]        List a group's members")
	fmt.Println("  members add <group> <json-file>      Create or update a member from a JSON file")
	fmt.Println("  members delete <group> <member-id>   Delete a member")
	fmt.Println("  settings <group> <page-size> <reaction> <template>")
	fmt.Println("                                       Update a group's roster settings")
	fmt.Println("  stats <group>                        Show check-in stats for a group")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  ROLLCALL_URL            Dashboard base URL (default: http://localhost:8080)")
	fmt.Println("  ROLLCALL_TOKEN          Dashboard bearer token (from the pairing handshake)")
	fmt.Println("  ROLLCALL_ADMIN_CONFIG   Config file override")
	fmt.Println()
}

// apiCall performs one authenticated request against the dashboard API and
// decodes the JSON response into out.
func apiCall(ctx context.Context, cfg *Config, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, cfg.Server.URL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if cfg.Server.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Server.Token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("forbidden: pair a new session and set ROLLCALL_TOKEN")
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server: %s", apiErr.Error)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func cmdStatus(ctx context.Context, cfg *Config) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Server.URL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	color.Green("healthy")
	return nil
}

type rosterResponse struct {
	Date       string       `json:"date"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages"`
	Members    []memberInfo `json:"members"`
}

type memberInfo struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
	Rank        int    `json:"rank"`
	Area        string `json:"area"`
	ExpiresAt   string `json:"expires_at"`
	Line        string `json:"line"`
}

func cmdRoster(ctx context.Context, cfg *Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: roster <group> [page]")
	}
	group := args[0]

	path := "/api/tenants/" + group + "/roster"
	if len(args) == 2 {
		if _, err := strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("page must be a number")
		}
		path += "?page=" + args[1]
	}

	var resp rosterResponse
	if err := apiCall(ctx, cfg, http.MethodGet, path, nil, &resp); err != nil {
		return err
	}

	color.Cyan("Roster %s (page %d/%d)\n", resp.Date, resp.Page, resp.TotalPages)
	if len(resp.Members) == 0 {
		fmt.Println("  no check-ins")
		return nil
	}
	for _, m := range resp.Members {
		fmt.Printf("  %s\n", m.Line)
	}
	return nil
}

func cmdMembers(ctx context.Context, cfg *Config, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: members <list|add|delete> <group> [args]")
	}
	sub, group := args[0], args[1]

	switch sub {
	case "list":
		path := "/api/tenants/" + group + "/members"
		if len(args) == 3 {
			path += "?filter=" + args[2]
		}
		var resp struct {
			Members []memberInfo `json:"members"`
		}
		if err := apiCall(ctx, cfg, http.MethodGet, path, nil, &resp); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  ID\tNAME\tRANK\tAREA\tEXPIRES")
		fmt.Fprintln(w, "  --\t----\t----\t----\t-------")
		for _, m := range resp.Members {
			expires := m.ExpiresAt
			if expires == "" {
				expires = "-"
			}
			fmt.Fprintf(w, "  %s\t%s\t%d\t%s\t%s\n", m.ExternalID, m.DisplayName, m.Rank, m.Area, expires)
		}
		return w.Flush()

	case "add":
		if len(args) != 3 {
			return fmt.Errorf("usage: members add <group> <json-file>")
		}
		data, err := os.ReadFile(args[2])
		if err != nil {
			return fmt.Errorf("reading member file: %w", err)
		}
		var member map[string]any
		if err := json.Unmarshal(data, &member); err != nil {
			return fmt.Errorf("parsing member file: %w", err)
		}

		var saved memberInfo
		if err := apiCall(ctx, cfg, http.MethodPost, "/api/tenants/"+group+"/members", member, &saved); err != nil {
			return err
		}
		color.Green("saved %s (%s)\n", saved.DisplayName, saved.ExternalID)
		return nil

	case "delete":
		if len(args) != 3 {
			return fmt.Errorf("usage: members delete <group> <member-id>")
		}
		if err := apiCall(ctx, cfg, http.MethodDelete, "/api/tenants/"+group+"/members/"+args[2], nil, nil); err != nil {
			return err
		}
		color.Green("deleted %s\n", args[2])
		return nil

	default:
		return fmt.Errorf("unknown subcommand: %s", sub)
	}
}

func cmdSettings(ctx context.Context, cfg *Config, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: settings <group> <page-size> <reaction> <template>")
	}
	group := args[0]

	pageSize, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("page-size must be a number")
	}

	payload := map[string]any{
		"page_size": pageSize,
		"reaction":  args[2],
		"template":  args[3],
	}
	if err := apiCall(ctx, cfg, http.MethodPost, "/api/tenants/"+group+"/settings", payload, nil); err != nil {
		return err
	}
	color.Green("settings updated\n")
	return nil
}

func cmdStats(ctx context.Context, cfg *Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: stats <group>")
	}

	var resp struct {
		Date         string `json:"date"`
		CheckinCount int    `json:"checkin_count"`
		MemberCount  int    `json:"member_count"`
		Areas        []struct {
			Area  string `json:"area"`
			Count int    `json:"count"`
		} `json:"areas"`
		Recent []struct {
			ExternalID string `json:"external_id"`
			Date       string `json:"date"`
			At         string `json:"at"`
		} `json:"recent"`
	}
	if err := apiCall(ctx, cfg, http.MethodGet, "/api/tenants/"+args[0]+"/stats", nil, &resp); err != nil {
		return err
	}

	color.Cyan("Stats for %s\n", resp.Date)
	fmt.Printf("  check-ins: %d / %d members\n", resp.CheckinCount, resp.MemberCount)

	if len(resp.Areas) > 0 {
		fmt.Println("  by area:")
		for _, a := range resp.Areas {
			fmt.Printf("    %s: %d\n", a.Area, a.Count)
		}
	}

	if len(resp.Recent) > 0 {
		fmt.Println("  recent:")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, r := range resp.Recent {
			at := r.At
			if t, err := time.Parse(time.RFC3339, r.At); err == nil {
				at = t.Format("Jan 02 15:04")
			}
			fmt.Fprintf(w, "    %s\t%s\t%s\n", r.ExternalID, r.Date, at)
		}
		w.Flush()
	}
	return nil
}
